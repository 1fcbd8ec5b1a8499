package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/boardsync/internal/config"
	"github.com/JonMunkholm/boardsync/internal/core"
)

const sampleCSV = "Name,Key,Qty,Status,Date\n" +
	"Acme,K1,10,open,2024-01-01\n" +
	"Beta,K2,20,closed,2024-02-01\n"

type memStore struct {
	mu      sync.Mutex
	records []core.RemoteRecord
	failKey string
	nextID  int64
}

func (m *memStore) Records(context.Context, core.CollectionID) ([]core.RemoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.RemoteRecord(nil), m.records...), nil
}

func (m *memStore) Create(_ context.Context, _ core.CollectionID, _ string, values core.FieldValues) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if values["text"] == m.failKey {
		return 0, errors.New("ColumnValueException: invalid value")
	}
	m.nextID++
	return m.nextID, nil
}

func (m *memStore) Update(_ context.Context, _ core.CollectionID, _ int64, values core.FieldValues) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if values["text"] == m.failKey {
		return errors.New("ColumnValueException: invalid value")
	}
	return nil
}

func newTestServer(t *testing.T, store *memStore) (*Server, *core.Orchestrator) {
	t.Helper()
	orch := core.New(core.Options{Store: store, Resolver: core.StaticCollection(42)})
	orch.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		orch.Close(ctx)
	})

	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Upload.MaxFileSize = 1 << 20
	return NewServer(orch, cfg), orch
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mpw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mpw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, mpw.WriteField("other", "x"))
	}
	require.NoError(t, mpw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mpw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestIndex_RendersDropPage(t *testing.T) {
	s, _ := newTestServer(t, &memStore{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Click or drag &amp; drop a CSV file")
	assert.Contains(t, body, `<button id="sync" disabled>Update 0 entries</button>`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestIndex_PartialStatus(t *testing.T) {
	s, _ := newTestServer(t, &memStore{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Partial", "status")
	rec := serve(s, req)

	assert.True(t, strings.HasPrefix(rec.Body.String(), `<section id="status"`))
	assert.NotContains(t, rec.Body.String(), "<html")
}

func TestUpload_StagesRows(t *testing.T) {
	s, orch := newTestServer(t, &memStore{})

	rec := serve(s, uploadRequest(t, "accounts.csv", sampleCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		FileName string `json:"file_name"`
		Rows     int    `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accounts.csv", resp.FileName)
	assert.Equal(t, 2, resp.Rows)
	assert.Equal(t, core.StateDataLoaded, orch.State().State)

	page := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, page.Body.String(), `<button id="sync">Update 2 entries</button>`)
	assert.Contains(t, page.Body.String(), "accounts.csv")
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		content    string
		wantStatus int
		wantCode   string
	}{
		{"no file", "", "", http.StatusBadRequest, "FILE004"},
		{"wrong extension", "notes.txt", sampleCSV, http.StatusBadRequest, "FILE005"},
		{"ragged csv", "bad.csv", "a,b\n1,2,3\n", http.StatusBadRequest, "FILE002"},
		{"empty csv", "empty.csv", "", http.StatusBadRequest, "FILE003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, orch := newTestServer(t, &memStore{})

			rec := serve(s, uploadRequest(t, tt.filename, tt.content))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			assert.Equal(t, core.StateReady, orch.State().State)
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	s, _ := newTestServer(t, &memStore{})
	s.cfg.Upload.MaxFileSize = 64

	rec := serve(s, uploadRequest(t, "big.csv", strings.Repeat("a,b\n", 100)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestSync_WithoutFile(t *testing.T) {
	s, _ := newTestServer(t, &memStore{})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/sync", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SYNC002", decodeError(t, rec).Code)
}

func TestSync_RunAndHistory(t *testing.T) {
	store := &memStore{
		records: []core.RemoteRecord{{ID: 7, NaturalKey: "K1"}},
		failKey: "K2",
		nextID:  100,
	}
	s, orch := newTestServer(t, store)

	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "accounts.csv", sampleCSV)).Code)

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.RunID)

	require.Eventually(t, func() bool {
		return orch.LastReport() != nil && orch.State().State == core.StateReady
	}, 2*time.Second, 10*time.Millisecond)

	last := orch.LastReport()
	assert.Equal(t, started.RunID, last.RunID.String())
	assert.Equal(t, 1, last.Updated)
	assert.Equal(t, 0, last.Created)
	require.Len(t, last.Failed, 1)

	list := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, list.Code)
	var runs []core.RunSummary
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Failed)

	detail := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+started.RunID, nil))
	assert.Equal(t, http.StatusOK, detail.Code)

	failed := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+started.RunID+"/failed-rows", nil))
	require.Equal(t, http.StatusOK, failed.Code)
	assert.Equal(t, "text/csv", failed.Header().Get("Content-Type"))
	assert.Contains(t, failed.Header().Get("Content-Disposition"), "accounts - failed.csv")
	lines := strings.Split(strings.TrimSpace(failed.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "_line,_phase,_error,Name,Key,Qty,Status,Date", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "3,create,"), lines[1])
}

func TestRuns_Lookup(t *testing.T) {
	s, _ := newTestServer(t, &memStore{})

	bad := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	missing := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/7c9e6679-7425-40de-944b-e07fc1f90ae7", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "SYNC005", decodeError(t, missing).Code)
}

func TestState(t *testing.T) {
	s, _ := newTestServer(t, &memStore{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State struct {
			CollectionID int64 `json:"collection_id"`
		} `json:"state"`
		Runs core.RunGateStatus `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.State.CollectionID)
	assert.Contains(t, rec.Body.String(), `"state":"ready"`)
	assert.Equal(t, core.RunGateStatus{Active: 0, Available: 1, Capacity: 1}, resp.Runs)
}

func TestRespondError_HidesUnmappedDetail(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		wantError string
		wantCode  string
	}{
		{"mapped error keeps its text", core.ErrSyncInProgress, http.StatusConflict, "sync already in progress", "SYNC001"},
		{"unmapped error is replaced", errors.New("dial postgres://app:secret@db/runs failed"), http.StatusInternalServerError, "Internal Server Error", "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil), tt.err, tt.status)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotContains(t, rec.Body.String(), "secret")
		})
	}
}

func TestProgressSSE_SendsCurrentSnapshot(t *testing.T) {
	s, _ := newTestServer(t, &memStore{})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/progress", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	var got []string
	for sc.Scan() && len(got) < 3 {
		got = append(got, sc.Text())
	}
	require.Len(t, got, 3)
	assert.Equal(t, "id: 1", got[0])
	assert.Equal(t, "event: progress", got[1])
	assert.Contains(t, got[2], `"state":"ready"`)
}
