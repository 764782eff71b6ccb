package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldaengine/adapters/sqlstore"
	"ldaengine/app"
	"ldaengine/domain/roster"
	"ldaengine/internal/errors"
	"ldaengine/internal/testkit"
)

var fixedNow = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, book *testkit.MemorySheets) (*Server, *SSEHub) {
	t.Helper()
	db, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	opts := app.DefaultServiceOptions()
	opts.Now = func() time.Time { return fixedNow }
	opts.LDA.Now = opts.Now
	svc := app.NewRetentionService(testkit.StaticOpener{Book: book}, sqlstore.NewRunRepository(db), opts, nil)

	hub := NewSSEHub(nil)
	t.Cleanup(hub.Close)
	return NewServer(svc, hub, Options{Settings: roster.DefaultSettings(), Workbook: "/data/roster.xlsx", GinMode: gin.TestMode}, nil), hub
}

func masterBook() *testkit.MemorySheets {
	book := testkit.NewMemorySheets()
	book.Put(roster.DefaultMasterSheet, testkit.MasterHeaders, []roster.Row{
		{"Smith, John", "1001", 10.0, 0.91, "555-0001", "john@example.edu", nil, "Reyes", nil},
		{"Doe, Jane", "1002", 7.0, 0.45, "555-0002", "jane@example.edu", nil, "Reyes", nil},
	})
	return book
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestReportEndpoint(t *testing.T) {
	book := masterBook()
	s, _ := newTestServer(t, book)

	rec := do(t, s, http.MethodPost, "/api/reports/lda", map[string]any{
		"settings": map[string]any{"daysOutThreshold": 8},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "LDA 10-14-2026", resp.Sheet)
	assert.Equal(t, 1, resp.PrimaryRows)
	assert.NotEmpty(t, resp.RunID)

	rec = do(t, s, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs  []map[string]any `json:"runs"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "completed", list.Runs[0]["status"])

	rec = do(t, s, http.MethodGet, "/api/runs/"+resp.RunID.String()+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "LDA 10-14-2026")
}

func TestReportEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		book   *testkit.MemorySheets
		body   any
		status int
		code   string
	}{
		{"missing master list", testkit.NewMemorySheets(), map[string]any{}, http.StatusUnprocessableEntity, errors.CodeMissingSheet},
		{"bad settings", masterBook(), map[string]any{"settings": map[string]any{"sheetNamingMode": "weekly"}}, http.StatusBadRequest, errors.CodeInvalidInput},
		{"bad body", masterBook(), "not an object", http.StatusBadRequest, errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.book)
			rec := do(t, s, http.MethodPost, "/api/reports/lda", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestMergeEndpoint(t *testing.T) {
	book := masterBook()
	s, _ := newTestServer(t, book)

	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("Student Name,Student ID,Days Out,Grade\n\"Smith, John\",1001,3,0.9\n\"Park, Min\",1003,0,0.7\n"), 0o600))

	rec := do(t, s, http.MethodPost, "/api/master-list/merge", map[string]any{"import_path": path})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp mergeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, roster.DefaultMasterSheet, resp.Sheet)
	assert.Equal(t, 1, resp.NewRows)
}

func TestMergeEndpointValidation(t *testing.T) {
	s, _ := newTestServer(t, masterBook())

	rec := do(t, s, http.MethodPost, "/api/master-list/merge", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/master-list/merge", map[string]any{"import_path": "/nope/missing.csv"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsEndpoints(t *testing.T) {
	s, _ := newTestServer(t, masterBook())

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/runs/unknown", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/runs/unknown/summary", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/runs?limit=-1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/runs?offset=x", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", nil).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.MissingColumn("Days Out", "Master List"), http.StatusUnprocessableEntity},
		{errors.ConfigInvalid("x"), http.StatusBadRequest},
		{errors.RunInProgress("book"), http.StatusConflict},
		{errors.Wrap(errors.NotFound("run"), "lookup"), http.StatusNotFound},
		{errors.HostWrite("LDA", "value write", context.DeadlineExceeded), http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestEventsRequireSession(t *testing.T) {
	s, _ := newTestServer(t, masterBook())
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/events", nil).Code)
}

func TestEventsStreamProgress(t *testing.T) {
	s, hub := newTestServer(t, masterBook())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?session_id=pane-1", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.GetClientCount("pane-1") == 1 }, time.Second, 5*time.Millisecond)
	NewSessionProgress(hub, "pane-1").Batch(2, 4, "writing", "LDA_Table")

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
			break
		}
	}
	var event ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, EventBatch, event.EventType)
	assert.Equal(t, 2, event.Current)
	assert.Equal(t, 4, event.Total)
	assert.Equal(t, "LDA_Table", event.Table)
}
