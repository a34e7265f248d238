package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/auth"
	"github.com/livercare-risk-server/internal/domain"
	"github.com/livercare-risk-server/internal/events"
	"github.com/livercare-risk-server/internal/history"
	"github.com/livercare-risk-server/internal/middleware"
	"github.com/livercare-risk-server/internal/report"
)

const eventPublishTimeout = 2 * time.Second

// bindPatientInput reads a JSON object body and parses the ten patient fields.
// It writes the error response itself and reports whether the handler may continue.
func (s *Server) bindPatientInput(c *gin.Context) (map[string]interface{}, *domain.PatientInput, bool) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		middleware.Abort(c, http.StatusBadRequest, domain.ErrInvalidInput, "Request body must be a JSON object")
		return nil, nil, false
	}

	input, err := domain.ParsePatientInput(raw)
	if err != nil {
		s.respondError(c, err, "")
		return nil, nil, false
	}
	return raw, input, true
}

func (s *Server) handlePredict(c *gin.Context) {
	_, input, ok := s.bindPatientInput(c)
	if !ok {
		return
	}

	prediction, err := s.deps.Gateway.ModelOnly(c.Request.Context(), *input)
	if err != nil {
		s.deps.Logger.WithError(err).WithField(middleware.CorrelationIDKey, c.GetString(middleware.CorrelationIDKey)).
			Warn("Model prediction failed")
		middleware.Abort(c, http.StatusInternalServerError, domain.ErrPrediction, "Prediction service failed to process the request.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"probability": prediction.Probability,
		"riskLevel":   prediction.RiskLevel,
	})
}

func (s *Server) handleAssess(c *gin.Context) {
	raw, input, ok := s.bindPatientInput(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	assessment, err := s.deps.Gateway.Assess(ctx, *input)
	if err != nil {
		s.respondError(c, err, "")
		return
	}

	var (
		userID   int64
		recordID int64
		saved    bool
	)
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		userID, _ = claims.UserID()
	}

	if userID > 0 && wantsSave(c, raw) {
		record := history.NewRecord(userID, *input, assessment)
		if err := s.deps.History.Append(ctx, record); err != nil {
			s.deps.Logger.WithError(err).WithField("user_id", userID).Warn("Failed to save assessment")
		} else {
			saved = true
			recordID = record.ID
		}
	}

	s.publishAssessment(ctx, userID, *input, assessment, saved)

	response := gin.H{
		"success":         true,
		"probability":     assessment.Probability,
		"riskLevel":       assessment.RiskLevel,
		"riskLabel":       assessment.RiskLabel,
		"source":          assessment.Source,
		"recommendations": assessment.Recommendations,
		"assessedAt":      assessment.AssessedAt,
		"saved":           saved,
	}
	if recordID > 0 {
		response["id"] = recordID
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleReport(c *gin.Context) {
	_, input, ok := s.bindPatientInput(c)
	if !ok {
		return
	}

	assessment, err := s.deps.Gateway.Assess(c.Request.Context(), *input)
	if err != nil {
		s.respondError(c, err, "")
		return
	}

	pdf, err := report.PDF(*input, assessment, assessment.AssessedAt.Local())
	if err != nil {
		s.respondError(c, err, "")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+report.PDFFilename(assessment.AssessedAt.Local())+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// publishAssessment emits the assessment event. Failures are logged by the
// publisher and never reach the client.
func (s *Server) publishAssessment(ctx context.Context, userID int64, input domain.PatientInput, assessment *domain.RiskAssessment, saved bool) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	event := events.NewAssessmentEvent(userID, input, assessment, saved)
	if err := s.deps.Events.PublishAssessment(pubCtx, event); err != nil {
		s.deps.Logger.WithFields(logrus.Fields{
			"event_id": event.EventID,
			"user_id":  userID,
		}).Debug("Assessment event not delivered")
	}
}

// wantsSave reads the save flag from the query string or the body.
func wantsSave(c *gin.Context, raw map[string]interface{}) bool {
	if strings.EqualFold(c.Query("save"), "true") {
		return true
	}
	switch v := raw["save"].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}
