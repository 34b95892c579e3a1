package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
	"github.com/yndnr/autosave-go/internal/storage/health"
	"github.com/yndnr/autosave-go/internal/storage/journal"
	"github.com/yndnr/autosave-go/internal/telemetry/status"
)

type call struct {
	op     string
	name   string
	file   string
	method domain.Method
	sched  domain.Schedule
	macros string
	from   domain.RestoreFrom
}

// fakeEngine records calls and answers with res/err.
type fakeEngine struct {
	calls   []call
	res     domain.Result
	err     error
	history []journal.Entry
	known   map[string]bool
}

func (f *fakeEngine) Define(_ context.Context, name string, m domain.Method, sched domain.Schedule, macros string) (domain.Result, error) {
	f.calls = append(f.calls, call{op: "define", name: name, method: m, sched: sched, macros: macros})
	return f.res, f.err
}

func (f *fakeEngine) Remove(_ context.Context, name string) (domain.Result, error) {
	f.calls = append(f.calls, call{op: "remove", name: name})
	return f.res, f.err
}

func (f *fakeEngine) Reload(_ context.Context, name string, m domain.Method, sched domain.Schedule, macros string) (domain.Result, error) {
	f.calls = append(f.calls, call{op: "reload", name: name, method: m, sched: sched, macros: macros})
	return f.res, f.err
}

func (f *fakeEngine) ManualSave(_ context.Context, name, file string) (domain.Result, error) {
	f.calls = append(f.calls, call{op: "save", name: name, file: file})
	return f.res, f.err
}

func (f *fakeEngine) ManualRestore(_ context.Context, file string, from domain.RestoreFrom, macros string) (domain.Result, error) {
	f.calls = append(f.calls, call{op: "restore", file: file, from: from, macros: macros})
	return f.res, f.err
}

func (f *fakeEngine) Trigger(name string) error {
	f.calls = append(f.calls, call{op: "trigger", name: name})
	if !f.known[name] {
		return domain.ErrDefinitionNotFound.WithDetails(name)
	}
	return nil
}

func (f *fakeEngine) History(_ context.Context, name string, limit int) ([]journal.Entry, error) {
	f.calls = append(f.calls, call{op: "history", name: name})
	if len(f.history) > limit {
		return f.history[:limit], nil
	}
	return f.history, nil
}

type fakeStorage struct{ snap health.Snapshot }

func (s fakeStorage) Snapshot() health.Snapshot { return s.snap }

func newTestHandler(eng *fakeEngine, storage StorageHealth) (*Handler, *status.Board) {
	board := status.NewBoard()
	return New(eng, board, storage, slog.New(slog.NewTextHandler(io.Discard, nil))), board
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("X-Request-ID", "req-test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode response: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec, resp
}

func TestHandler_DefineSet(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "periodic",
			body:       DefineSetRequest{Name: "motor.req", Method: "periodic", Period: "30s", Macros: "P=ioc:"},
			wantStatus: http.StatusCreated,
			wantCode:   CodeOK,
		},
		{
			name:       "missing name",
			body:       DefineSetRequest{Method: "periodic"},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
		{
			name:       "missing method",
			body:       DefineSetRequest{Name: "motor.req"},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
		{
			name:       "unknown method",
			body:       DefineSetRequest{Name: "motor.req", Method: "hourly"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "AS-ARG-4000",
		},
		{
			name:       "bad duration",
			body:       DefineSetRequest{Name: "motor.req", Method: "periodic", Period: "soon"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "AS-ARG-4000",
		},
		{
			name:       "definition not found",
			body:       DefineSetRequest{Name: "nope.req", Method: "manual"},
			err:        domain.ErrDefinitionNotFound.WithDetails("nope.req"),
			wantStatus: http.StatusNotFound,
			wantCode:   "AS-DEF-4040",
		},
		{
			name:       "duplicate method",
			body:       DefineSetRequest{Name: "motor.req", Method: "manual"},
			err:        domain.ErrDuplicateTriggerMethod,
			wantStatus: http.StatusConflict,
			wantCode:   "AS-DEF-4090",
		},
		{
			name:       "queue full",
			body:       DefineSetRequest{Name: "motor.req", Method: "manual"},
			err:        domain.ErrCommandQueueFull,
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "AS-CMD-4290",
		},
		{
			name:       "shut down",
			body:       DefineSetRequest{Name: "motor.req", Method: "manual"},
			err:        domain.ErrEngineShutdown,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "AS-CMD-5030",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{err: tt.err, res: domain.Result{Status: domain.StatusInit}}
			h, _ := newTestHandler(eng, nil)
			rec, resp := do(t, h, http.MethodPost, "/sets", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if resp.RequestID != "req-test" {
				t.Errorf("request_id = %q, want req-test", resp.RequestID)
			}
		})
	}
}

func TestHandler_DefineSet_PassesSchedule(t *testing.T) {
	eng := &fakeEngine{}
	h, _ := newTestHandler(eng, nil)
	do(t, h, http.MethodPost, "/sets", DefineSetRequest{
		Name: "motor.req", Method: "monitored|triggered", MonitorPeriod: "5s", Trigger: "ioc:go", Macros: "P=a",
	})

	if len(eng.calls) != 1 {
		t.Fatalf("calls = %+v", eng.calls)
	}
	c := eng.calls[0]
	if c.method != domain.MethodMonitored|domain.MethodTriggered {
		t.Errorf("method = %v", c.method)
	}
	if c.sched.MonitorPeriod != 5*time.Second || c.sched.TriggerPoint != "ioc:go" || c.macros != "P=a" {
		t.Errorf("call = %+v", c)
	}
}

func TestHandler_SetLifecycle(t *testing.T) {
	eng := &fakeEngine{res: domain.Result{Status: domain.StatusOK}, known: map[string]bool{"motor.req": true}}
	h, board := newTestHandler(eng, nil)

	rec, _ := do(t, h, http.MethodPost, "/sets/motor.req/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d", rec.Code)
	}
	if c := eng.calls[0]; c.op != "reload" || c.name != "motor.req" || c.method != 0 {
		t.Errorf("reload call = %+v", c)
	}

	rec, _ = do(t, h, http.MethodPost, "/sets/motor.req/trigger", nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("trigger status = %d", rec.Code)
	}
	rec, resp := do(t, h, http.MethodPost, "/sets/other.req/trigger", nil)
	if rec.Code != http.StatusNotFound || resp.Code != "AS-DEF-4040" {
		t.Errorf("trigger unknown = %d %s", rec.Code, resp.Code)
	}

	rec, _ = do(t, h, http.MethodDelete, "/sets/motor.req", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("remove status = %d", rec.Code)
	}

	rec, _ = do(t, h, http.MethodGet, "/sets/motor.req", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get unpublished set = %d, want 404", rec.Code)
	}
	board.Publish(status.Report{Sets: []status.Set{{Name: "motor.req", Text: "Ok", Points: 4}}})
	rec, resp = do(t, h, http.MethodGet, "/sets/motor.req", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get set = %d", rec.Code)
	}
	data := resp.Data.(map[string]any)
	if data["status"] != "Ok" || data["points"] != float64(4) {
		t.Errorf("set data = %v", data)
	}
}

func TestHandler_Save(t *testing.T) {
	eng := &fakeEngine{res: domain.Result{Status: domain.StatusWarn, Message: "1 point(s) not connected", File: "/data/motor.sav"}}
	h, _ := newTestHandler(eng, nil)

	rec, resp := do(t, h, http.MethodPost, "/save", SaveRequest{Name: "motor.req", File: "snap.sav"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]any)
	if data["status"] != domain.StatusWarn.String() || data["file"] != "/data/motor.sav" {
		t.Errorf("data = %v", data)
	}
	if c := eng.calls[0]; c.name != "motor.req" || c.file != "snap.sav" {
		t.Errorf("call = %+v", c)
	}

	rec, _ = do(t, h, http.MethodPost, "/save", SaveRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("save without name = %d", rec.Code)
	}
}

func TestHandler_SaveFailureCarriesResult(t *testing.T) {
	eng := &fakeEngine{
		res: domain.Result{Status: domain.StatusFail, Message: "disk full", File: "/data/motor.sav"},
		err: domain.ErrIoWriteFailed.WithDetails("disk full"),
	}
	h, _ := newTestHandler(eng, nil)

	rec, resp := do(t, h, http.MethodPost, "/save", SaveRequest{Name: "motor.req"})
	if rec.Code != http.StatusInternalServerError || resp.Code != "AS-IO-5002" {
		t.Fatalf("got %d %s", rec.Code, resp.Code)
	}
	details, ok := resp.Details.(map[string]any)
	if !ok || details["file"] != "/data/motor.sav" {
		t.Errorf("details = %v", resp.Details)
	}
	if rec.Header().Get("X-Error-Code") != "AS-IO-5002" {
		t.Errorf("X-Error-Code = %q", rec.Header().Get("X-Error-Code"))
	}
}

func TestHandler_Restore(t *testing.T) {
	eng := &fakeEngine{res: domain.Result{Status: domain.StatusOK, Message: "3 point(s) restored"}}
	h, _ := newTestHandler(eng, nil)

	rec, _ := do(t, h, http.MethodPost, "/restore", RestoreRequest{File: "motor.sav", From: "file", Macros: "P=b:"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if c := eng.calls[0]; c.from != domain.RestoreFromFile || c.file != "motor.sav" || c.macros != "P=b:" {
		t.Errorf("call = %+v", c)
	}

	rec, _ = do(t, h, http.MethodPost, "/restore", RestoreRequest{File: "motor.req"})
	if rec.Code != http.StatusOK || eng.calls[1].from != domain.RestoreFromPrimary {
		t.Errorf("default source: %d %+v", rec.Code, eng.calls[1])
	}

	rec, _ = do(t, h, http.MethodPost, "/restore", RestoreRequest{File: "x", From: "tape"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad source = %d", rec.Code)
	}
}

func TestHandler_BadBody(t *testing.T) {
	h, _ := newTestHandler(&fakeEngine{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/save", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_History(t *testing.T) {
	eng := &fakeEngine{history: []journal.Entry{
		{ID: "2", Set: "motor.req", Kind: journal.KindPrimary, Status: "Ok"},
		{ID: "1", Set: "motor.req", Kind: journal.KindPrimary, Status: "Fail"},
	}}
	h, _ := newTestHandler(eng, nil)

	rec, resp := do(t, h, http.MethodGet, "/sets/motor.req/history?limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := resp.Data.(map[string]any)
	entries := data["entries"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["id"] != "2" {
		t.Errorf("entries = %v", entries)
	}

	rec, _ = do(t, h, http.MethodGet, "/sets/motor.req/history?limit=zero", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", rec.Code)
	}
}

func TestHandler_HistoryWithoutJournal(t *testing.T) {
	h, _ := newTestHandler(&fakeEngine{}, nil)
	_, resp := do(t, h, http.MethodGet, "/sets/motor.req/history", nil)
	entries, ok := resp.Data.(map[string]any)["entries"].([]any)
	if !ok || len(entries) != 0 {
		t.Errorf("entries = %v, want empty list", resp.Data)
	}
}

func TestHandler_HealthAndStatus(t *testing.T) {
	storage := &fakeStorage{snap: health.Snapshot{Healthy: true, Threshold: 3}}
	h, board := newTestHandler(&fakeEngine{}, storage)
	board.Publish(status.Report{
		Global: status.Global{Text: "Ok", Heartbeat: 7, Sets: 1},
		Sets:   []status.Set{{Name: "motor.req", Text: "Ok"}},
	})

	rec, resp := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	if hb := resp.Data.(map[string]any)["heartbeat"]; hb != float64(7) {
		t.Errorf("heartbeat = %v", hb)
	}

	storage.snap.Healthy = false
	rec, _ = do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy storage = %d, want 503", rec.Code)
	}

	rec, resp = do(t, h, http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := resp.Data.(map[string]any)
	global := data["global"].(map[string]any)
	if global["status"] != "Ok" || len(data["sets"].([]any)) != 1 {
		t.Errorf("status data = %v", data)
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"AS-DEF-4040", http.StatusNotFound},
		{"AS-DEF-4001", http.StatusBadRequest},
		{"AS-DEF-4090", http.StatusConflict},
		{"AS-CMD-4290", http.StatusTooManyRequests},
		{"AS-ARG-4000", http.StatusBadRequest},
		{"AS-AUTH-4010", http.StatusUnauthorized},
		{"AS-AUTH-4011", http.StatusUnauthorized},
		{"AS-CMD-5030", http.StatusServiceUnavailable},
		{"AS-VAL-5040", http.StatusGatewayTimeout},
		{"AS-IO-5002", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorCodeToHTTPStatus(tt.code); got != tt.want {
			t.Errorf("errorCodeToHTTPStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
