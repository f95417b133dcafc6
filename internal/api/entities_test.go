package api

import (
	"net/http"
	"testing"

	"github.com/hostbridge/hostbridge-core/internal/session"
)

// ─── Entity Registration Tests ─────────────────────────────────────

func TestRegisterEntity(t *testing.T) {
	srv, registry := testServer(t, "")
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	res := decodeResult(t, w)
	if !res.Success {
		t.Fatalf("expected success, got %q: %s", res.Error, res.Message)
	}

	if _, ok := registry.Get("sync-task"); !ok {
		t.Error("entity not present in registry after register")
	}
}

func TestRegisterEntity_Duplicate(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)
	w := doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)

	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want %d", w.Code, http.StatusConflict)
	}

	// The body is the command result itself, so the caller can tell a
	// duplicate register apart from other conflicts.
	res := decodeResult(t, w)
	if res.Success {
		t.Error("duplicate register reported success")
	}
	if res.Error != session.ErrAlreadyExists {
		t.Errorf("error kind = %q, want %q", res.Error, session.ErrAlreadyExists)
	}
}

func TestRegisterEntity_InvalidConfig(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	// Interval below the minimum.
	body := `{"id":"bad","kind":"task","mode":"efficient","config":{"task":{"interval_ms":10,"triggers":["interval"]}}}`
	w := doRequest(t, router, http.MethodPost, "/api/v1/entities", body)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
	if res := decodeResult(t, w); res.Error != session.ErrInvalidInput {
		t.Errorf("error kind = %q, want %q", res.Error, session.ErrInvalidInput)
	}
}

func TestRegisterEntity_MalformedJSON(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodPost, "/api/v1/entities", "{not json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetEntity_NotFound(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodGet, "/api/v1/entities/ghost", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if res := decodeResult(t, w); res.Error != session.ErrNotFound {
		t.Errorf("error kind = %q, want %q", res.Error, session.ErrNotFound)
	}
}

func TestUnregisterEntity(t *testing.T) {
	srv, registry := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)
	w := doRequest(t, router, http.MethodDelete, "/api/v1/entities/sync-task", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if _, ok := registry.Get("sync-task"); ok {
		t.Error("entity still present after unregister")
	}
}

// ─── Lifecycle Command Tests ───────────────────────────────────────

func TestStartStopEntity(t *testing.T) {
	srv, registry := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)

	w := doRequest(t, router, http.MethodPost, "/api/v1/entities/sync-task/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	e, _ := registry.Get("sync-task")
	if !e.IsRunning {
		t.Error("entity not running after start")
	}

	// Starting a running task conflicts.
	w = doRequest(t, router, http.MethodPost, "/api/v1/entities/sync-task/start", "")
	if w.Code != http.StatusConflict {
		t.Errorf("double start status = %d, want %d", w.Code, http.StatusConflict)
	}
	if res := decodeResult(t, w); res.Error != session.ErrAlreadyRunning {
		t.Errorf("error kind = %q, want %q", res.Error, session.ErrAlreadyRunning)
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/entities/sync-task/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want %d", w.Code, http.StatusOK)
	}

	// Stop is idempotent.
	w = doRequest(t, router, http.MethodPost, "/api/v1/entities/sync-task/stop", "")
	if w.Code != http.StatusOK {
		t.Errorf("repeat stop status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestConnectDisconnectEntity(t *testing.T) {
	srv, registry := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", connBody)

	w := doRequest(t, router, http.MethodPost, "/api/v1/entities/hr-monitor/connect", "")
	if w.Code != http.StatusOK {
		t.Fatalf("connect status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	e, _ := registry.Get("hr-monitor")
	if !e.IsRunning {
		t.Error("entity not connected after connect")
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/entities/hr-monitor/disconnect", "")
	if w.Code != http.StatusOK {
		t.Fatalf("disconnect status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestStartConnection_Rejected(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", connBody)
	w := doRequest(t, router, http.MethodPost, "/api/v1/entities/hr-monitor/start", "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
	if res := decodeResult(t, w); res.Error != session.ErrInvalidInput {
		t.Errorf("error kind = %q, want %q", res.Error, session.ErrInvalidInput)
	}
}

func TestStopAll(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)
	doRequest(t, router, http.MethodPost, "/api/v1/entities/sync-task/start", "")

	w := doRequest(t, router, http.MethodPost, "/api/v1/entities/stop-all", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	res := decodeResult(t, w)
	if got := res.Data["stopped"]; got != float64(1) {
		t.Errorf("stopped = %v, want 1", got)
	}
}

func TestUpdateNotification(t *testing.T) {
	srv, registry := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)

	body := `{"title":"Syncing","body":"3 of 10 items","progress":{"current":3,"max":10}}`
	w := doRequest(t, router, http.MethodPatch, "/api/v1/entities/sync-task/notification", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	e, _ := registry.Get("sync-task")
	if e.Config.Task.Notification == nil || e.Config.Task.Notification.Title != "Syncing" {
		t.Error("notification not updated in registry")
	}
}

func TestUpdateNotification_Invalid(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)

	// Missing body text.
	w := doRequest(t, router, http.MethodPatch, "/api/v1/entities/sync-task/notification", `{"title":"Syncing"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

// ─── Status Tests ──────────────────────────────────────────────────

func TestListEntities(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)
	doRequest(t, router, http.MethodPost, "/api/v1/entities", connBody)

	w := doRequest(t, router, http.MethodGet, "/api/v1/entities", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	res := decodeResult(t, w)
	entities, ok := res.Data["entities"].([]any)
	if !ok {
		t.Fatalf("entities payload missing: %v", res.Data)
	}
	if len(entities) != 2 {
		t.Errorf("entities = %d, want 2", len(entities))
	}
}

func TestGetEntityStatus(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)

	w := doRequest(t, router, http.MethodGet, "/api/v1/entities/sync-task", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	res := decodeResult(t, w)
	if res.Data["id"] != "sync-task" {
		t.Errorf("id = %v, want sync-task", res.Data["id"])
	}
	if res.Data["is_running"] != false {
		t.Errorf("is_running = %v, want false", res.Data["is_running"])
	}
}

// ─── Permission Tests ──────────────────────────────────────────────

func TestCheckPermission(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodGet, "/api/v1/permissions/notifications", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	res := decodeResult(t, w)
	if res.Data["granted"] != true {
		t.Errorf("granted = %v, want true", res.Data["granted"])
	}
}

func TestRequestPermission_Denied(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodPost, "/api/v1/permissions/camera/request", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	res := decodeResult(t, w)
	if res.Data["granted"] != false {
		t.Errorf("granted = %v, want false", res.Data["granted"])
	}
}

// ─── Journal and Teardown Tests ────────────────────────────────────

func TestListEvents_JournalDisabled(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodGet, "/api/v1/events", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDispose_RequiresConfirmation(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	w := doRequest(t, router, http.MethodPost, "/api/v1/dispose", `{"confirm":"yes"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDispose(t *testing.T) {
	srv, registry := testServer(t, "")
	router := srv.buildRouter()

	doRequest(t, router, http.MethodPost, "/api/v1/entities", taskBody)
	doRequest(t, router, http.MethodPost, "/api/v1/entities", connBody)

	w := doRequest(t, router, http.MethodPost, "/api/v1/dispose", `{"confirm":"DISPOSE"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	res := decodeResult(t, w)
	if got := res.Data["unregistered"]; got != float64(2) {
		t.Errorf("unregistered = %v, want 2", got)
	}
	if registry.Count() != 0 {
		t.Errorf("registry count = %d, want 0", registry.Count())
	}
}
