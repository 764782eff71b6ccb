package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ldaengine/adapters/excel"
	"ldaengine/app"
	"ldaengine/domain/roster"
	"ldaengine/domain/run"
	"ldaengine/internal/config"
	"ldaengine/internal/errors"
	"ldaengine/ports"
)

type reportRequest struct {
	Workbook  string          `json:"workbook"`
	Settings  json.RawMessage `json:"settings"`
	SessionID string          `json:"session_id"`
}

type mergeRequest struct {
	Workbook    string          `json:"workbook"`
	ImportPath  string          `json:"import_path"`
	ImportSheet string          `json:"import_sheet"`
	Settings    json.RawMessage `json:"settings"`
	SessionID   string          `json:"session_id"`
}

type reportResponse struct {
	RunID       run.ID   `json:"run_id"`
	Sheet       string   `json:"sheet"`
	PrimaryRows int      `json:"primary_rows"`
	FailingRows int      `json:"failing_rows"`
	Messages    int      `json:"messages"`
	Tables      []string `json:"tables"`
}

type mergeResponse struct {
	RunID        run.ID   `json:"run_id"`
	Sheet        string   `json:"sheet"`
	NewRows      int      `json:"new_rows"`
	ExistingRows int      `json:"existing_rows"`
	ClearedRows  int      `json:"cleared_rows"`
	Created      bool     `json:"created"`
	Columns      []string `json:"columns"`
}

func (s *Server) handleReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.InvalidInput("invalid request body: "+err.Error()))
		return
	}
	settings, err := s.settingsFor(req.Settings)
	if err != nil {
		s.fail(c, err)
		return
	}

	progress := NewSessionProgress(s.hub, req.SessionID)
	out, err := s.svc.GenerateReport(c.Request.Context(), app.ReportRequest{
		Workbook: s.workbookFor(req.Workbook),
		Settings: settings,
		Progress: progress,
	})
	if err != nil {
		s.announce(progress, "", err)
		s.fail(c, err)
		return
	}
	s.announce(progress, out.Run.ID, nil)

	c.JSON(http.StatusOK, reportResponse{
		RunID:       out.Run.ID,
		Sheet:       out.Report.SheetName,
		PrimaryRows: out.Report.PrimaryRows,
		FailingRows: out.Report.FailingRows,
		Messages:    out.Report.Messages,
		Tables:      out.Report.Tables,
	})
}

func (s *Server) handleMerge(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.InvalidInput("invalid request body: "+err.Error()))
		return
	}
	if req.ImportPath == "" {
		s.fail(c, errors.InvalidInput("import_path is required"))
		return
	}
	settings, err := s.settingsFor(req.Settings)
	if err != nil {
		s.fail(c, err)
		return
	}

	snap, err := excel.NewImportReader(req.ImportPath, req.ImportSheet, s.logger).Read(c.Request.Context())
	if err != nil {
		s.fail(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	progress := NewSessionProgress(s.hub, req.SessionID)
	out, err := s.svc.MergeMasterList(c.Request.Context(), app.MergeRequest{
		Workbook: s.workbookFor(req.Workbook),
		Settings: settings,
		Import:   snap,
		Progress: progress,
	})
	if err != nil {
		s.announce(progress, "", err)
		s.fail(c, err)
		return
	}
	s.announce(progress, out.Run.ID, nil)

	c.JSON(http.StatusOK, mergeResponse{
		RunID:        out.Run.ID,
		Sheet:        out.Result.Sheet,
		NewRows:      out.Result.NewRows,
		ExistingRows: out.Result.ExistingRows,
		ClearedRows:  out.Result.ClearedRows,
		Created:      out.Result.Created,
		Columns:      out.Result.Columns,
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	runs, err := s.svc.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	rn, err := s.svc.GetRun(c.Request.Context(), run.ID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rn)
}

func (s *Server) handleRunSummary(c *gin.Context) {
	html, err := s.svc.RunSummaryHTML(c.Request.Context(), run.ID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// settingsFor parses request settings, falling back to the server's.
func (s *Server) settingsFor(raw json.RawMessage) (roster.Settings, error) {
	doc := strings.TrimSpace(string(raw))
	if doc == "" || doc == "null" {
		return s.settings, nil
	}
	return config.ParseSettings(raw)
}

func (s *Server) workbookFor(path string) string {
	if path != "" {
		return path
	}
	return s.workbook
}

// announce sends the terminal run event to the session, if any.
func (s *Server) announce(progress ports.ProgressSink, id run.ID, err error) {
	sp, ok := progress.(*SessionProgress)
	if !ok {
		return
	}
	if err != nil {
		sp.RunFinished(id.String(), string(run.StatusFailed), err.Error())
		return
	}
	sp.RunFinished(id.String(), string(run.StatusCompleted), "")
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	code := errors.GetCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.String("code", code), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

// statusFor maps error codes to HTTP statuses.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeMissingSheet, errors.CodeMissingColumn:
		return http.StatusUnprocessableEntity
	case errors.CodeInvalidInput, errors.CodeConfigInvalid:
		return http.StatusBadRequest
	case errors.CodeRunInProgress:
		return http.StatusConflict
	case errors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.InvalidInput(key + " must be a non-negative integer")
	}
	return n, nil
}
