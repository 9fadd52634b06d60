package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"timetable-service/api"
	"timetable-service/internal/auth"
	"timetable-service/internal/config"
	"timetable-service/internal/service"
	"timetable-service/internal/storage/memory"
	"timetable-service/pkg/handlers/slogdiscard"
	"timetable-service/pkg/metrics"
)

type envelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Entry    *api.TimetableEntry   `json:"entry"`
	Entries  []*api.TimetableEntry `json:"entries"`
	Conflict *api.TimetableEntry   `json:"conflict"`
}

func newTestServer(t *testing.T) (*httptest.Server, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		Env:         "local",
		StoragePath: config.StorageMemory,
		Auth:        config.Auth{JWTSecret: "test-secret", Issuer: "test-issuer"},
		Timetable:   config.Timetable{PeriodsPerDay: 8, LockTTL: time.Second},
	}

	m := metrics.New()
	svc := service.NewService(memory.New(), nil,
		service.WithPeriodsPerDay(cfg.Timetable.PeriodsPerDay),
		service.WithObserver(m),
	)

	app := httptest.NewServer(New(slogdiscard.NewDiscardLogger(), cfg, svc, m))
	t.Cleanup(app.Close)

	return app, cfg
}

func mustToken(t *testing.T, cfg *config.Config, userID, role string) string {
	t.Helper()
	token, err := auth.NewAccessToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 15*time.Minute, auth.Claims{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func doReq(t *testing.T, method, url, token string, body any) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp, env
}

func allocation(teacher string, period int, start, end, room string) map[string]any {
	return map[string]any{
		"classId":   "Grade10A",
		"teacherId": teacher,
		"day":       "Monday",
		"period":    period,
		"startTime": start,
		"endTime":   end,
		"roomNo":    room,
	}
}

func TestTimetableScenario(t *testing.T) {
	app, cfg := newTestServer(t)
	admin := mustToken(t, cfg, "admin-1", auth.RoleAdmin)
	teacher := mustToken(t, cfg, "teacher-1", auth.RoleTeacher)
	student := mustToken(t, cfg, "student-1", auth.RoleStudent)

	resp, first := doReq(t, http.MethodPost, app.URL+"/timetable", admin, allocation("T1", 1, "09:00", "09:50", "Room101"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if first.Entry == nil || first.Entry.ID == "" {
		t.Fatalf("expected generated id, got %+v", first.Entry)
	}

	resp, conflict := doReq(t, http.MethodPost, app.URL+"/timetable", teacher, allocation("T2", 1, "09:00", "09:50", "Room102"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for conflict, got %d", resp.StatusCode)
	}
	if conflict.Error == nil || conflict.Error.Code != "SLOT_CONFLICT" {
		t.Fatalf("expected SLOT_CONFLICT, got %+v", conflict.Error)
	}
	if conflict.Conflict == nil || conflict.Conflict.ID != first.Entry.ID {
		t.Fatalf("expected conflict to reference %s, got %+v", first.Entry.ID, conflict.Conflict)
	}

	resp, second := doReq(t, http.MethodPost, app.URL+"/timetable", teacher, allocation("T2", 2, "09:50", "10:40", "Room102"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Students may read the timetable but not change it.
	resp, listed := doReq(t, http.MethodGet, app.URL+"/timetable?classId=Grade10A", student, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(listed.Entries) != 2 || listed.Entries[0].ID != first.Entry.ID || listed.Entries[1].ID != second.Entry.ID {
		t.Fatalf("unexpected list: %+v", listed.Entries)
	}

	resp, _ = doReq(t, http.MethodPost, app.URL+"/timetable", student, allocation("T3", 3, "10:40", "11:30", "Room103"))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", resp.StatusCode)
	}

	resp, updated := doReq(t, http.MethodPatch, app.URL+"/timetable/"+first.Entry.ID, admin, map[string]any{"roomNo": "Room 9"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d", resp.StatusCode)
	}
	if updated.Entry.RoomNo != "Room 9" || updated.Entry.Day != "Monday" || updated.Entry.Period != 1 || updated.Entry.ClassID != "Grade10A" {
		t.Fatalf("unexpected entry after update: %+v", updated.Entry)
	}

	resp, _ = doReq(t, http.MethodDelete, app.URL+"/timetable/"+second.Entry.ID, teacher, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", resp.StatusCode)
	}
	resp, _ = doReq(t, http.MethodDelete, app.URL+"/timetable/"+second.Entry.ID, teacher, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.StatusCode)
	}

	resp, got := doReq(t, http.MethodGet, app.URL+"/timetable/"+first.Entry.ID, student, nil)
	if resp.StatusCode != http.StatusOK || got.Entry == nil || got.Entry.RoomNo != "Room 9" {
		t.Fatalf("expected updated entry, got %d %+v", resp.StatusCode, got.Entry)
	}
}

func TestTimetableRequiresSession(t *testing.T) {
	app, _ := newTestServer(t)

	resp, env := doReq(t, http.MethodGet, app.URL+"/timetable", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %+v", env.Error)
	}

	resp, _ = doReq(t, http.MethodPost, app.URL+"/timetable", "forged", allocation("T1", 1, "09:00", "09:50", "R"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestTimetableValidation(t *testing.T) {
	app, cfg := newTestServer(t)
	admin := mustToken(t, cfg, "admin-1", auth.RoleAdmin)

	cases := map[string]any{
		"end before start": allocation("T1", 1, "10:00", "09:00", "R"),
		"period too high":  allocation("T1", 9, "09:00", "09:50", "R"),
		"unknown field":    `{"classId":"C","teacherId":"T","day":"Monday","period":1,"startTime":"09:00","endTime":"09:50","roomNo":"R","extra":true}`,
		"sunday":           `{"classId":"C","teacherId":"T","day":"Sunday","period":1,"startTime":"09:00","endTime":"09:50","roomNo":"R"}`,
	}
	for name, body := range cases {
		resp, _ := doReq(t, http.MethodPost, app.URL+"/timetable", admin, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}

	resp, listed := doReq(t, http.MethodGet, app.URL+"/timetable", admin, nil)
	if resp.StatusCode != http.StatusOK || len(listed.Entries) != 0 {
		t.Fatalf("expected no entries after rejected allocations, got %d entries", len(listed.Entries))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app, cfg := newTestServer(t)
	admin := mustToken(t, cfg, "admin-1", auth.RoleAdmin)

	resp, _ := doReq(t, http.MethodGet, app.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", resp.StatusCode)
	}

	doReq(t, http.MethodPost, app.URL+"/timetable", admin, allocation("T1", 1, "09:00", "09:50", "R"))

	resp, err := http.Get(app.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `timetable_allocations_total{result="created"} 1`) {
		t.Fatalf("expected allocation counter in metrics output")
	}
	if !strings.Contains(string(body), `timetable_http_requests_total`) {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestDottedPathsAnswerWithJSON(t *testing.T) {
	app, cfg := newTestServer(t)
	admin := mustToken(t, cfg, "admin-1", auth.RoleAdmin)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{"unknown dotted route", http.MethodGet, "/health.json", "", http.StatusNotFound, "NOT_FOUND"},
		{"dotted entry id", http.MethodGet, "/timetable/x.json", admin, http.StatusNotFound, "NOT_FOUND"},
		{"dotted id without session", http.MethodGet, "/timetable/abc.def", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unsupported method", http.MethodPut, "/timetable", admin, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, env := doReq(t, tc.method, app.URL+tc.path, tc.token, nil)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected error code %s, got %+v", tc.code, env.Error)
			}
		})
	}
}

type panickingTimetable struct {
	*service.Service
}

func (panickingTimetable) List(context.Context, *string) ([]*api.TimetableEntry, error) {
	panic("list exploded")
}

func TestHandlerPanicReturnsServerError(t *testing.T) {
	cfg := &config.Config{
		Auth:      config.Auth{JWTSecret: "test-secret", Issuer: "test-issuer"},
		Timetable: config.Timetable{PeriodsPerDay: 8},
	}
	timetable := panickingTimetable{Service: service.NewService(memory.New(), nil)}

	app := httptest.NewServer(New(slogdiscard.NewDiscardLogger(), cfg, timetable, metrics.New()))
	t.Cleanup(app.Close)

	resp, env := doReq(t, http.MethodGet, app.URL+"/timetable", mustToken(t, cfg, "admin-1", auth.RoleAdmin), nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "REQUEST_FAILED" {
		t.Fatalf("expected generic error envelope, got %+v", env.Error)
	}
}

func TestUnmatchedRoutesShareOneMetricSeries(t *testing.T) {
	app, _ := newTestServer(t)

	for _, path := range []string{"/nope-a", "/nope-b"} {
		resp, _ := doReq(t, http.MethodGet, app.URL+path, "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 for %s, got %d", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(app.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `timetable_http_requests_total{method="GET",route="unmatched",status="404"} 2`) {
		t.Fatalf("expected unmatched requests in one series, got:\n%s", body)
	}
	if strings.Contains(string(body), "/nope-") {
		t.Fatalf("raw paths leaked into metric labels")
	}
}
