package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/domain"
	"github.com/livercare-risk-server/internal/history"
	"github.com/livercare-risk-server/internal/report"
)

// AssessParams defines parameters for the assess_liver_risk tool. The
// patient fields are pointers so an omitted field is rejected rather than
// scored as zero.
type AssessParams struct {
	Age               *float64 `json:"age,omitempty" jsonschema:"age in years"`
	Gender            *float64 `json:"gender,omitempty" jsonschema:"0 for female and 1 for male"`
	BMI               *float64 `json:"bmi,omitempty" jsonschema:"body mass index"`
	Alcohol           *float64 `json:"alcohol,omitempty" jsonschema:"alcohol units per week"`
	Smoking           *float64 `json:"smoking,omitempty" jsonschema:"1 if the patient smokes"`
	GeneticRisk       *float64 `json:"geneticRisk,omitempty" jsonschema:"1 if there is a family history of liver disease"`
	PhysicalActivity  *float64 `json:"physicalActivity,omitempty" jsonschema:"hours of exercise per week"`
	Diabetes          *float64 `json:"diabetes,omitempty" jsonschema:"1 if the patient has diabetes"`
	Hypertension      *float64 `json:"hypertension,omitempty" jsonschema:"1 if the patient has hypertension"`
	LiverFunctionTest *float64 `json:"liverFunctionTest,omitempty" jsonschema:"ALT in IU/L"`
	UserID            int64    `json:"userId,omitempty" jsonschema:"save the assessment to this user's history"`
}

// Input converts the parameters to a patient record. A missing field yields
// a *domain.ValidationError naming it.
func (p AssessParams) Input() (domain.PatientInput, error) {
	fields := map[string]*float64{
		domain.FieldAge:               p.Age,
		domain.FieldGender:            p.Gender,
		domain.FieldBMI:               p.BMI,
		domain.FieldAlcohol:           p.Alcohol,
		domain.FieldSmoking:           p.Smoking,
		domain.FieldGeneticRisk:       p.GeneticRisk,
		domain.FieldPhysicalActivity:  p.PhysicalActivity,
		domain.FieldDiabetes:          p.Diabetes,
		domain.FieldHypertension:      p.Hypertension,
		domain.FieldLiverFunctionTest: p.LiverFunctionTest,
	}

	raw := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		if v != nil {
			raw[name] = *v
		}
	}
	input, err := domain.ParsePatientInput(raw)
	if err != nil {
		return domain.PatientInput{}, err
	}
	return *input, nil
}

// AssessResult is returned by assess_liver_risk. Breakdown explains the
// deterministic part of the local score and is present for every source.
type AssessResult struct {
	Assessment *domain.RiskAssessment `json:"assessment"`
	Breakdown  domain.ScoreBreakdown  `json:"breakdown"`
	RecordID   int64                  `json:"recordId,omitempty"`
}

// HistoryParams defines parameters for the get_detection_history tool
type HistoryParams struct {
	UserID int64 `json:"userId" jsonschema:"owner of the history"`
	Limit  int   `json:"limit,omitempty" jsonschema:"maximum records to return, newest first"`
}

// HistoryResult is returned by get_detection_history
type HistoryResult struct {
	UserID  int64             `json:"userId"`
	Total   int64             `json:"total"`
	Records []*history.Record `json:"records"`
}

// ExportParams defines parameters for the export_detection_history tool
type ExportParams struct {
	UserID int64  `json:"userId" jsonschema:"owner of the history"`
	Format string `json:"format,omitempty" jsonschema:"xlsx (default) or json"`
}

// ExportResult is returned by export_detection_history
type ExportResult struct {
	Path    string `json:"path"`
	Format  string `json:"format"`
	Records int    `json:"records"`
}

// ImportParams defines parameters for the import_detection_history tool
type ImportParams struct {
	Path string `json:"path" jsonschema:"JSON export file written by export_detection_history"`
}

// ImportResult is returned by import_detection_history
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ChatParams defines parameters for the ask_liver_assistant tool
type ChatParams struct {
	Message string `json:"message" jsonschema:"question about liver health"`
}

func (s *Server) registerTools() {
	assess := &mcp.Tool{
		Name:        "assess_liver_risk",
		Description: "Assess liver disease risk from ten self-reported health fields. Returns the probability, risk level, recommendations and the score breakdown.",
	}
	mcp.AddTool(s.mcpServer, assess, s.handleAssess)
	s.registered(assess)

	historyTool := &mcp.Tool{
		Name:        "get_detection_history",
		Description: "List a user's saved assessments, newest first.",
	}
	mcp.AddTool(s.mcpServer, historyTool, s.handleHistory)
	s.registered(historyTool)

	export := &mcp.Tool{
		Name:        "export_detection_history",
		Description: "Write a user's saved assessments to an XLSX or JSON file in the export directory.",
	}
	mcp.AddTool(s.mcpServer, export, s.handleExport)
	s.registered(export)

	importTool := &mcp.Tool{
		Name:        "import_detection_history",
		Description: "Load a JSON history export. Records that already exist are skipped.",
	}
	mcp.AddTool(s.mcpServer, importTool, s.handleImport)
	s.registered(importTool)

	chat := &mcp.Tool{
		Name:        "ask_liver_assistant",
		Description: "Ask the liver health assistant a question about symptoms, risk factors, prevention, test results, alcohol, diet or exercise.",
	}
	mcp.AddTool(s.mcpServer, chat, s.handleChat)
	s.registered(chat)
}

func (s *Server) registered(tool *mcp.Tool) {
	s.tools = append(s.tools, tool.Name)
	s.logger.WithField("tool_name", tool.Name).Debug("Registered MCP tool")
}

func (s *Server) handleAssess(ctx context.Context, _ *mcp.CallToolRequest, params AssessParams) (*mcp.CallToolResult, any, error) {
	input, err := params.Input()
	if err != nil {
		return s.toolError("Invalid parameters", err), nil, nil
	}

	assessment, err := s.gateway.Assess(ctx, input)
	if err != nil {
		return s.toolError("Assessment failed", err), nil, nil
	}

	result := AssessResult{
		Assessment: assessment,
		Breakdown:  s.gateway.Scorer().Breakdown(input),
	}

	if params.UserID > 0 {
		record := history.NewRecord(params.UserID, input, assessment)
		if err := s.history.Append(ctx, record); err != nil {
			return s.toolError("Failed to save assessment", err), nil, nil
		}
		result.RecordID = record.ID
	}

	s.logger.WithFields(logrus.Fields{
		"tool":        "assess_liver_risk",
		"source":      assessment.Source,
		"probability": assessment.Probability,
	}).Info("Tool invoked")

	text := fmt.Sprintf("%s: %.1f%% (%s, source %s)", assessment.RiskLabel, assessment.Probability,
		report.ResultMessage(assessment.Probability, assessment.RiskLevel), assessment.Source)
	return textResult(text), result, nil
}

func (s *Server) handleHistory(ctx context.Context, _ *mcp.CallToolRequest, params HistoryParams) (*mcp.CallToolResult, any, error) {
	if params.UserID <= 0 {
		return s.toolError("Invalid parameters", errors.New("userId is required")), nil, nil
	}

	limit := params.Limit
	if limit <= 0 {
		limit = s.config.HistoryLimit
	}
	records, err := s.history.Recent(ctx, params.UserID, limit)
	if err != nil {
		return s.toolError("Failed to read history", err), nil, nil
	}
	total, err := s.history.Count(ctx, params.UserID)
	if err != nil {
		return s.toolError("Failed to count history", err), nil, nil
	}

	result := HistoryResult{UserID: params.UserID, Total: total, Records: records}
	return textResult(fmt.Sprintf("%d of %d saved assessments", len(records), total)), result, nil
}

func (s *Server) handleExport(ctx context.Context, _ *mcp.CallToolRequest, params ExportParams) (*mcp.CallToolResult, any, error) {
	if params.UserID <= 0 {
		return s.toolError("Invalid parameters", errors.New("userId is required")), nil, nil
	}
	format := strings.ToLower(strings.TrimSpace(params.Format))
	if format == "" {
		format = "xlsx"
	}

	records, err := history.All(ctx, s.history, params.UserID)
	if err != nil {
		return s.toolError("Failed to read history", err), nil, nil
	}

	var path string
	switch format {
	case "xlsx":
		data, err := report.HistoryWorkbook(records)
		if err != nil {
			return s.toolError("Failed to build workbook", err), nil, nil
		}
		path = filepath.Join(s.config.ExportDir(), report.HistoryFilename(params.UserID))
		err = os.WriteFile(path, data, 0644)
		if err != nil {
			return s.toolError("Failed to write export", err), nil, nil
		}
	case "json":
		path = filepath.Join(s.config.ExportDir(), fmt.Sprintf("LiverCare_History_%d.json", params.UserID))
		if err := s.writeJSONExport(ctx, path, params.UserID); err != nil {
			return s.toolError("Failed to write export", err), nil, nil
		}
	default:
		return s.toolError("Invalid parameters", fmt.Errorf("unsupported format %q", params.Format)), nil, nil
	}

	result := ExportResult{Path: path, Format: format, Records: len(records)}
	return textResult(fmt.Sprintf("Exported %d records to %s", len(records), path)), result, nil
}

func (s *Server) writeJSONExport(ctx context.Context, path string, userID int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.history.ExportJSON(ctx, userID, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Server) handleImport(ctx context.Context, _ *mcp.CallToolRequest, params ImportParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Path) == "" {
		return s.toolError("Invalid parameters", errors.New("path is required")), nil, nil
	}

	f, err := os.Open(params.Path)
	if err != nil {
		return s.toolError("Failed to open import file", err), nil, nil
	}
	defer f.Close()

	imported, skipped, err := s.history.ImportJSON(ctx, f)
	if err != nil {
		return s.toolError("Import failed", err), nil, nil
	}

	s.logger.WithFields(logrus.Fields{
		"path":     params.Path,
		"imported": imported,
		"skipped":  skipped,
	}).Info("History imported")

	result := ImportResult{Imported: imported, Skipped: skipped}
	return textResult(fmt.Sprintf("Imported %d records, skipped %d", imported, skipped)), result, nil
}

func (s *Server) handleChat(_ context.Context, _ *mcp.CallToolRequest, params ChatParams) (*mcp.CallToolResult, any, error) {
	reply, err := s.chatbot.Reply(params.Message)
	if err != nil {
		return s.toolError("Invalid parameters", err), nil, nil
	}
	return textResult(reply.Message), reply, nil
}

// toolError reports a failure inside the tool result so the client sees it.
func (s *Server) toolError(message string, err error) *mcp.CallToolResult {
	text := "Error: " + message
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		text += " - " + ve.Message
	case err != nil:
		text += fmt.Sprintf(" - %v", err)
		s.logger.WithError(err).Warn(message)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
