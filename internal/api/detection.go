package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/livercare-risk-server/internal/auth"
	"github.com/livercare-risk-server/internal/domain"
	"github.com/livercare-risk-server/internal/history"
	"github.com/livercare-risk-server/internal/middleware"
	"github.com/livercare-risk-server/internal/report"
)

var detectionFields = append(append([]string{}, domain.PatientFields...), "probability", "riskLevel")

func (s *Server) handleSaveDetection(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		middleware.Abort(c, http.StatusBadRequest, domain.ErrInvalidInput, "Request body must be a JSON object")
		return
	}

	userID, ok := positiveID(raw["userId"])
	if !ok {
		middleware.Abort(c, http.StatusBadRequest, domain.ErrValidation, "User ID is required")
		return
	}
	if !s.authorizeUser(c, userID) {
		return
	}

	for _, field := range detectionFields {
		if v, present := raw[field]; !present || v == nil || v == "" {
			middleware.Abort(c, http.StatusBadRequest, domain.ErrValidation, "All fields are required")
			return
		}
	}

	input, err := domain.ParsePatientInput(raw)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	probability, err := domain.ParseProbability(raw["probability"])
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	levelText, _ := raw["riskLevel"].(string)
	level, ok := domain.ParseRiskLevel(levelText)
	if !ok {
		middleware.Abort(c, http.StatusBadRequest, domain.ErrValidation, "Unknown risk level")
		return
	}

	record := &history.Record{
		UserID:       userID,
		PatientInput: *input,
		Probability:  probability,
		RiskLevel:    level,
	}
	if err := record.Validate(); err != nil {
		s.respondError(c, err, "")
		return
	}
	if err := s.deps.History.Append(c.Request.Context(), record); err != nil {
		s.respondError(c, err, "")
		return
	}

	// A record buffered by the fallback store has no ID until it is flushed.
	resp := gin.H{
		"success": true,
		"message": "Detection history saved successfully",
	}
	if record.ID > 0 {
		resp["id"] = record.ID
	} else {
		resp["buffered"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c *gin.Context) {
	userID, ok := s.pathUser(c)
	if !ok {
		return
	}

	limit := s.historyLimit(c.Query("limit"))
	records, err := s.deps.History.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	if records == nil {
		records = []*history.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleHistoryExport(c *gin.Context) {
	userID, ok := s.pathUser(c)
	if !ok {
		return
	}

	records, err := history.All(c.Request.Context(), s.deps.History, userID)
	if err != nil {
		s.respondError(c, err, "")
		return
	}

	workbook, err := report.HistoryWorkbook(records)
	if err != nil {
		s.respondError(c, err, "")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+report.HistoryFilename(userID)+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}

// pathUser reads :userId and checks it against the session.
func (s *Server) pathUser(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		middleware.Abort(c, http.StatusBadRequest, domain.ErrValidation, "User ID is required")
		return 0, false
	}
	return userID, s.authorizeUser(c, userID)
}

// authorizeUser rejects access to another user's history.
func (s *Server) authorizeUser(c *gin.Context, userID int64) bool {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		middleware.Abort(c, http.StatusUnauthorized, domain.ErrAuthentication, "missing authorization header")
		return false
	}
	subject, err := claims.UserID()
	if err != nil || subject != userID {
		middleware.Abort(c, http.StatusForbidden, domain.ErrForbidden, "Access to another user's history is not allowed")
		return false
	}
	return true
}

// historyLimit applies the configured default and cap to ?limit=.
func (s *Server) historyLimit(param string) int {
	cfg := s.configManager.GetConfig().History
	defaultLimit, maxLimit := cfg.DefaultLimit, cfg.MaxLimit
	if defaultLimit <= 0 {
		defaultLimit = history.DefaultLimit
	}
	if maxLimit <= 0 || maxLimit > history.MaxLimit {
		maxLimit = history.MaxLimit
	}

	limit, err := strconv.Atoi(param)
	if err != nil || limit <= 0 {
		return min(defaultLimit, maxLimit)
	}
	return min(limit, maxLimit)
}

func positiveID(v interface{}) (int64, bool) {
	switch id := v.(type) {
	case float64:
		if id > 0 && id == float64(int64(id)) {
			return int64(id), true
		}
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}
