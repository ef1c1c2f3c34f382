package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-kiosk/internal/apiclient"
	"attendance-kiosk/internal/auth"
	"attendance-kiosk/internal/camera"
	"attendance-kiosk/internal/config"
	"attendance-kiosk/internal/holidays"
	"attendance-kiosk/internal/journal"
	"attendance-kiosk/internal/kiosk"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "attendance-kiosk"
)

// remoteAPI fakes the attendance API the kiosk talks to.
type remoteAPI struct {
	mu      sync.Mutex
	users   []string
	days    []map[string]any
	deleted []string
}

func (a *remoteAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /check-document/{doc}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"exists": r.PathValue("doc") == "999999999"})
	})
	mux.HandleFunc("GET /grades/levels", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"primaria":[{"id":5,"name":"Quinto"}]}`))
	})
	mux.HandleFunc("POST /users/", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("face_image"); err != nil {
			t.Errorf("missing face image: %v", err)
		}
		a.mu.Lock()
		a.users = append(a.users, r.FormValue("user"))
		a.mu.Unlock()
		w.Write([]byte(`{"id":1}`))
	})
	mux.HandleFunc("GET /attendance/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stats":{"total":3,"present":1,"absent":2},"attendance_by_role":{"3":[{"id":1,"document_number":"111","first_name":"Ana","last_name":"Gómez","email":"ana@example.com","daysAbsent":4,"check_in":null}],"4":[{"id":2,"document_number":"222","first_name":"Luis","last_name":"Pérez","email":"luis@example.com","daysAbsent":6,"check_in":"2024-03-01T07:00:00"}]}}`))
	})
	mux.HandleFunc("GET /non-working-days/", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		json.NewEncoder(w).Encode(a.days)
	})
	mux.HandleFunc("POST /non-working-days/", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.days = append(a.days, map[string]any{
			"id":          len(a.days) + 1,
			"date":        r.FormValue("date"),
			"description": r.FormValue("description"),
			"type":        r.FormValue("type"),
		})
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("DELETE /non-working-days/{id}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.deleted = append(a.deleted, r.PathValue("id"))
		a.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (a *remoteAPI) sentUsers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.users...)
}

func (a *remoteAPI) deletedIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.deleted...)
}

type fakeJournal struct {
	filter journal.Filter
}

func (f *fakeJournal) List(ctx context.Context, filter journal.Filter) ([]journal.Entry, error) {
	f.filter = filter
	return []journal.Entry{{ID: "e1", Kind: "recognized", DocumentNumber: filter.DocumentNumber}}, nil
}

type testEnv struct {
	engine *gin.Engine
	remote *remoteAPI
	token  string
}

func newTestEnv(t *testing.T, jl JournalLister, checks map[string]Check) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	remote := &remoteAPI{}
	srv := httptest.NewServer(remote.handler(t))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "frame.jpg"), []byte{0xff, 0xd8, 0xff}, 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := apiclient.New(srv.URL, 5*time.Second)
	ctrl := kiosk.New(client, camera.NewDirCamera(dir, time.Hour), kiosk.Options{Logger: log})

	cfg := config.App{
		JWTIssuer:       testIssuer,
		JWTSigningKey:   testKey,
		RateLimitPerMin: 1000,
		CORSOrigins:     []string{"*"},
	}
	engine := New(Deps{
		Config:   cfg,
		Logger:   log,
		Kiosk:    ctrl,
		Reports:  client,
		Holidays: holidays.NewManager(client, log),
		Journal:  jl,
		Checks:   checks,
	})

	tok, err := auth.Issue("maria", testIssuer, testKey, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{engine: engine, remote: remote, token: tok.Value}
}

func (e *testEnv) do(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil, map[string]Check{
		"api": func(context.Context) bool { return true },
	})
	w := env.do(t, http.MethodGet, "/healthz", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	env = newTestEnv(t, nil, map[string]Check{
		"api":   func(context.Context) bool { return true },
		"redis": func(context.Context) bool { return false },
	})
	w = env.do(t, http.MethodGet, "/healthz", "", false)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d with a failing check", w.Code)
	}
}

func TestModeAndState(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var s kiosk.State
	decode(t, env.do(t, http.MethodGet, "/v1/state", "", false), &s)
	if s.Mode != "recognize" {
		t.Errorf("initial mode = %q", s.Mode)
	}

	if w := env.do(t, http.MethodPost, "/v1/mode", `{"mode":"sleep"}`, false); w.Code != http.StatusBadRequest {
		t.Errorf("invalid mode status = %d", w.Code)
	}
	if w := env.do(t, http.MethodPatch, "/v1/draft", `{"field":"first_name","value":"Ana"}`, false); w.Code != http.StatusConflict {
		t.Errorf("draft edit in recognize mode status = %d", w.Code)
	}

	w := env.do(t, http.MethodPost, "/v1/mode", `{"mode":"register"}`, false)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	decode(t, w, &s)
	if s.Mode != "register" {
		t.Errorf("mode = %q", s.Mode)
	}
}

func TestRegisterFlow(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.do(t, http.MethodPost, "/v1/mode", `{"mode":"register"}`, false)

	if w := env.do(t, http.MethodPatch, "/v1/draft", `{"field":"password","value":"x"}`, false); w.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/v1/draft/preview", "", false); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("preview of blank draft status = %d", w.Code)
	}

	for _, edit := range []string{
		`{"field":"document_number","value":"100200300"}`,
		`{"field":"first_name","value":"Ana"}`,
		`{"field":"last_name","value":"Gómez"}`,
		`{"field":"email","value":"ana@example.com"}`,
		`{"field":"role_id","value":"3"}`,
		`{"field":"grade_id","value":"5"}`,
	} {
		if w := env.do(t, http.MethodPatch, "/v1/draft", edit, false); w.Code != http.StatusOK {
			t.Fatalf("edit %s: status %d: %s", edit, w.Code, w.Body.String())
		}
	}

	var grades struct {
		Levels []string `json:"levels"`
	}
	decode(t, env.do(t, http.MethodGet, "/v1/grades", "", false), &grades)
	if len(grades.Levels) != 1 || grades.Levels[0] != "primaria" {
		t.Errorf("grades = %+v", grades)
	}

	w := env.do(t, http.MethodPost, "/v1/register", `{"confirm":false}`, false)
	if w.Code != http.StatusPreconditionRequired {
		t.Fatalf("unconfirmed register status = %d", w.Code)
	}
	var pending struct {
		Preview kiosk.Preview `json:"preview"`
	}
	decode(t, w, &pending)
	if pending.Preview.Grade != "Quinto" || pending.Preview.Role != "Student" {
		t.Errorf("preview = %+v", pending.Preview)
	}
	if len(env.remote.sentUsers()) != 0 {
		t.Fatal("unconfirmed registration reached the API")
	}

	w = env.do(t, http.MethodPost, "/v1/register", `{"confirm":true}`, false)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body.String())
	}
	var s kiosk.State
	decode(t, w, &s)
	if s.Draft != (kiosk.Draft{}) || s.Message != kiosk.MsgRegistered {
		t.Errorf("state after register = %+v", s)
	}
	if users := env.remote.sentUsers(); len(users) != 1 || !strings.Contains(users[0], `"grade_id":5`) {
		t.Errorf("users sent = %v", users)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.do(t, http.MethodPost, "/v1/mode", `{"mode":"register"}`, false)
	for _, edit := range []string{
		`{"field":"document_number","value":"999999999"}`,
		`{"field":"first_name","value":"Ana"}`,
		`{"field":"last_name","value":"Gómez"}`,
		`{"field":"email","value":"ana@example.com"}`,
		`{"field":"role_id","value":"4"}`,
	} {
		env.do(t, http.MethodPatch, "/v1/draft", edit, false)
	}

	w := env.do(t, http.MethodPost, "/v1/register", `{"confirm":true}`, false)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	if body.Error != kiosk.MsgDocumentExists {
		t.Errorf("error = %q", body.Error)
	}
	if len(env.remote.sentUsers()) != 0 {
		t.Error("duplicate reached the API")
	}
}

func TestAdminRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	if w := env.do(t, http.MethodGet, "/v1/admin/attendance", "", false); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestAdminAttendanceAndExport(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/v1/admin/attendance?start_date=2024-03-01&end_date=2024-03-08", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var d struct {
		Stats struct {
			Absent int `json:"absent"`
		} `json:"stats"`
		Absences []struct {
			DocumentNumber string `json:"document_number"`
			RoleName       string `json:"roleName"`
		} `json:"absences"`
	}
	decode(t, w, &d)
	if d.Stats.Absent != 2 || len(d.Absences) != 2 || d.Absences[0].DocumentNumber != "222" || d.Absences[0].RoleName != "Teacher" {
		t.Errorf("dashboard = %+v", d)
	}

	if w := env.do(t, http.MethodGet, "/v1/admin/attendance?start_date=2024-03-09&end_date=2024-03-01", "", true); w.Code != http.StatusBadRequest {
		t.Errorf("reversed range status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/admin/attendance/export?start_date=2024-03-01&end_date=2024-03-08", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="absences_2024-03-01_2024-03-08.xlsx"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Error("export is not a zip container")
	}
}

func TestAdminNonWorkingDays(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodPost, "/v1/admin/non-working-days", `{"date":"12/25/2024","description":"Christmas","type":"holiday"}`, true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid day status = %d", w.Code)
	}
	var body struct {
		Banner holidays.Banner  `json:"banner"`
		Groups []holidays.Group `json:"groups"`
	}
	decode(t, w, &body)
	if body.Banner.Message == "" {
		t.Error("banner not raised for invalid day")
	}
	if w := env.do(t, http.MethodDelete, "/v1/admin/banner", "", true); w.Code != http.StatusNoContent {
		t.Errorf("dismiss status = %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/v1/admin/non-working-days", `{"date":"2024-12-25","description":"Christmas","type":"holiday"}`, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", w.Code, w.Body.String())
	}
	body.Banner = holidays.Banner{}
	decode(t, w, &body)
	if len(body.Groups) != 1 || body.Groups[0].Title != "Holidays" || len(body.Groups[0].Days) != 1 {
		t.Errorf("groups = %+v", body.Groups)
	}
	if body.Banner.Visible() {
		t.Errorf("banner = %q after dismiss and success", body.Banner.Message)
	}

	if w := env.do(t, http.MethodDelete, "/v1/admin/non-working-days/abc", "", true); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/v1/admin/non-working-days/1", "", true); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	if ids := env.remote.deletedIDs(); len(ids) != 1 || ids[0] != "1" {
		t.Errorf("deleted = %v", ids)
	}
}

func TestAdminJournal(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	if w := env.do(t, http.MethodGet, "/v1/admin/journal", "", true); w.Code != http.StatusNotFound {
		t.Errorf("disabled journal status = %d", w.Code)
	}

	fj := &fakeJournal{}
	env = newTestEnv(t, fj, nil)
	w := env.do(t, http.MethodGet, "/v1/admin/journal?document=111&kind=recognized&limit=5&offset=10", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if fj.filter.DocumentNumber != "111" || fj.filter.Kind != "recognized" || fj.filter.Limit != 5 || fj.filter.Offset != 10 {
		t.Errorf("filter = %+v", fj.filter)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/state", nil)
	req.Header.Set("Origin", "http://kiosk.local")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Errorf("no CORS headers: %v", w.Header())
	}
}

func TestCORSConfig(t *testing.T) {
	if cfg := corsConfig([]string{"*"}); !cfg.AllowAllOrigins || cfg.AllowCredentials {
		t.Errorf("wildcard config = %+v", cfg)
	}
	cfg := corsConfig([]string{"http://a.local", "http://b.local"})
	if cfg.AllowAllOrigins || len(cfg.AllowOrigins) != 2 || !cfg.AllowCredentials {
		t.Errorf("explicit config = %+v", cfg)
	}
}
