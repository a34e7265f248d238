// Package health reports the state of the service's dependencies.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateUnhealthy HealthState = "unhealthy"
	HealthStateWarning   HealthState = "warning"
)

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Name     string        `json:"name"`
	Status   HealthState   `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// HealthStatus aggregates every component.
type HealthStatus struct {
	Overall    HealthState                `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
}

// Healthy reports whether no component is unhealthy.
func (s HealthStatus) Healthy() bool {
	return s.Overall != HealthStateUnhealthy
}

// HealthCheck probes one dependency. A warning check never makes the service unhealthy.
type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) error
	Warning bool
}

// Checker runs every registered check concurrently.
type Checker struct {
	checks  []HealthCheck
	timeout time.Duration
	version string
	started time.Time
	logger  *logrus.Logger
}

// NewChecker creates a checker that bounds each check by timeout.
func NewChecker(version string, timeout time.Duration, logger *logrus.Logger) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		timeout: timeout,
		version: version,
		started: time.Now(),
		logger:  logger,
	}
}

// Register adds checks.
func (c *Checker) Register(checks ...HealthCheck) {
	c.checks = append(c.checks, checks...)
}

// Names lists the registered checks in order.
func (c *Checker) Names() []string {
	names := make([]string, len(c.checks))
	for i, check := range c.checks {
		names[i] = check.Name
	}
	sort.Strings(names)
	return names
}

// Run executes every check and aggregates the result.
func (c *Checker) Run(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Overall:    HealthStateHealthy,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Components: make(map[string]ComponentHealth, len(c.checks)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, check := range c.checks {
		wg.Add(1)
		go func(check HealthCheck) {
			defer wg.Done()
			result := c.runOne(ctx, check)

			mu.Lock()
			defer mu.Unlock()
			status.Components[check.Name] = result
			switch {
			case result.Status == HealthStateUnhealthy:
				status.Overall = HealthStateUnhealthy
			case result.Status == HealthStateWarning && status.Overall == HealthStateHealthy:
				status.Overall = HealthStateWarning
			}
		}(check)
	}
	wg.Wait()

	return status
}

func (c *Checker) runOne(ctx context.Context, check HealthCheck) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(checkCtx)
	result := ComponentHealth{
		Name:     check.Name,
		Status:   HealthStateHealthy,
		Duration: time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
		result.Status = HealthStateUnhealthy
		if check.Warning {
			result.Status = HealthStateWarning
		}
		c.logger.WithFields(logrus.Fields{
			"component": check.Name,
			"error":     err,
		}).Warn("Health check failed")
	}
	return result
}

// SQLCheck pings a database/sql handle.
func SQLCheck(name string, db *sql.DB) HealthCheck {
	return HealthCheck{Name: name, Check: db.PingContext}
}

// PoolCheck pings a pgx pool.
func PoolCheck(name string, pool *pgxpool.Pool) HealthCheck {
	return HealthCheck{Name: name, Check: pool.Ping}
}

// RedisCheck pings Redis. A cache outage degrades the service without failing it.
func RedisCheck(name string, client *redis.Client) HealthCheck {
	return HealthCheck{
		Name:    name,
		Warning: true,
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

// BreakerCheck warns while a circuit breaker is open.
func BreakerCheck(name string, state func() gobreaker.State) HealthCheck {
	return HealthCheck{
		Name:    name,
		Warning: true,
		Check: func(context.Context) error {
			if s := state(); s == gobreaker.StateOpen {
				return fmt.Errorf("circuit breaker is %s", s)
			}
			return nil
		},
	}
}
