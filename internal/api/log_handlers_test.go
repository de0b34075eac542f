package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
)

func seedLogs(t *testing.T, repo activitylog.Repository, logs ...activitylog.ActivityLog) {
	t.Helper()
	for i := range logs {
		if err := repo.Insert(context.Background(), &logs[i]); err != nil {
			t.Fatalf("failed to seed log: %v", err)
		}
	}
}

// TestLogHandlers_List tests GET /logs.
func TestLogHandlers_List(t *testing.T) {
	repo := activitylog.NewInMemoryRepository()
	seedLogs(t, repo,
		activitylog.ActivityLog{Location: "Dock 3", Status: "completed"},
		activitylog.ActivityLog{Location: "North Yard", Status: "planned"},
	)
	handlers := NewLogHandlers(repo)

	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	w := httptest.NewRecorder()

	handlers.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Logs) != 2 {
		t.Errorf("expected 2 logs, got %d", len(resp.Logs))
	}
}

// TestLogHandlers_List_Sorted tests the sortBy and direction query parameters.
func TestLogHandlers_List_Sorted(t *testing.T) {
	repo := activitylog.NewInMemoryRepository()
	seedLogs(t, repo,
		activitylog.ActivityLog{Location: "Bravo"},
		activitylog.ActivityLog{Location: "Alpha"},
		activitylog.ActivityLog{Location: "Charlie"},
	)
	handlers := NewLogHandlers(repo)

	req := httptest.NewRequest(http.MethodGet, "/logs?sortBy=location&direction=desc", nil)
	w := httptest.NewRecorder()

	handlers.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp ListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := []string{"Charlie", "Bravo", "Alpha"}
	for i, loc := range want {
		if resp.Logs[i].Location != loc {
			t.Errorf("position %d: expected %s, got %s", i, loc, resp.Logs[i].Location)
		}
	}
}

func TestLogHandlers_List_Filtered(t *testing.T) {
	repo := activitylog.NewInMemoryRepository()
	seedLogs(t, repo,
		activitylog.ActivityLog{Location: "Dock 3", ActivityType: "Concrete pour"},
		activitylog.ActivityLog{Location: "North Yard", ActivityType: "Framing"},
		activitylog.ActivityLog{Location: "Dock 5", Notes: "concrete delivery delayed"},
	)
	handlers := NewLogHandlers(repo)

	req := httptest.NewRequest(http.MethodGet, "/logs?q=concrete", nil)
	w := httptest.NewRecorder()

	handlers.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp ListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Logs) != 2 {
		t.Fatalf("expected 2 matching logs, got %d", len(resp.Logs))
	}
	for _, log := range resp.Logs {
		if log.Location == "North Yard" {
			t.Errorf("filter returned non-matching log at %s", log.Location)
		}
	}
}

// TestLogHandlers_Get tests GET /logs/{id}.
func TestLogHandlers_Get(t *testing.T) {
	repo := activitylog.NewInMemoryRepository()
	log := activitylog.ActivityLog{ID: "log-1", Location: "Dock 3"}
	seedLogs(t, repo, log)
	handlers := NewLogHandlers(repo)

	req := httptest.NewRequest(http.MethodGet, "/logs/log-1", nil)
	w := httptest.NewRecorder()

	handlers.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var got activitylog.ActivityLog
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "log-1" || got.Location != "Dock 3" {
		t.Errorf("unexpected log: %+v", got)
	}
}

// TestLogHandlers_Get_NotFound tests GET /logs/{id} for an unknown ID.
func TestLogHandlers_Get_NotFound(t *testing.T) {
	handlers := NewLogHandlers(activitylog.NewInMemoryRepository())

	req := httptest.NewRequest(http.MethodGet, "/logs/nope", nil)
	w := httptest.NewRecorder()

	handlers.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected error code %s, got %s", ErrCodeNotFound, errResp.Error.Code)
	}
}

// TestLogHandlers_Create tests POST /logs with a loose raw record.
func TestLogHandlers_Create(t *testing.T) {
	repo := activitylog.NewInMemoryRepository()
	handlers := NewLogHandlers(repo)

	body := []byte(`{"location":"Dock 3","status":"COMPLETED","coordinates":[-73.98,40.75]}`)
	req := httptest.NewRequest(http.MethodPost, "/logs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handlers.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var created activitylog.ActivityLog
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated ID")
	}
	if created.Status != activitylog.StatusCompleted {
		t.Errorf("expected normalized status, got %s", created.Status)
	}
	if created.Coordinates == nil || created.Coordinates.Longitude != -73.98 {
		t.Errorf("expected coordinates preserved, got %+v", created.Coordinates)
	}

	stored, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("failed to list logs: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("expected 1 stored log, got %d", len(stored))
	}
}

// TestLogHandlers_Create_MissingLocation tests validation of the only
// required field.
func TestLogHandlers_Create_MissingLocation(t *testing.T) {
	handlers := NewLogHandlers(activitylog.NewInMemoryRepository())

	body := []byte(`{"status":"completed"}`)
	req := httptest.NewRequest(http.MethodPost, "/logs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handlers.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Code != ErrCodeValidation {
		t.Errorf("expected error code %s, got %s", ErrCodeValidation, errResp.Error.Code)
	}
}

// TestLogHandlers_Update tests PUT /logs/{id}.
func TestLogHandlers_Update(t *testing.T) {
	repo := activitylog.NewInMemoryRepository()
	seedLogs(t, repo, activitylog.ActivityLog{ID: "log-1", Location: "Dock 3", Status: "planned", Timestamp: time.Now()})
	handlers := NewLogHandlers(repo)

	body := []byte(`{"id":"ignored","location":"Dock 3","status":"Completed"}`)
	req := httptest.NewRequest(http.MethodPut, "/logs/log-1", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handlers.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	got, err := repo.GetByID(context.Background(), "log-1")
	if err != nil {
		t.Fatalf("failed to get updated log: %v", err)
	}
	if got.Status != activitylog.StatusCompleted {
		t.Errorf("expected lowercased status, got %s", got.Status)
	}
}

// TestLogHandlers_Update_InvalidStatus tests status validation on update.
func TestLogHandlers_Update_InvalidStatus(t *testing.T) {
	repo := activitylog.NewInMemoryRepository()
	seedLogs(t, repo, activitylog.ActivityLog{ID: "log-1", Location: "Dock 3"})
	handlers := NewLogHandlers(repo)

	body := []byte(`{"location":"Dock 3","status":"done"}`)
	req := httptest.NewRequest(http.MethodPut, "/logs/log-1", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handlers.Update(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Code != ErrCodeValidation {
		t.Errorf("expected error code %s, got %s", ErrCodeValidation, errResp.Error.Code)
	}
}

// TestLogHandlers_Update_InvalidCoordinates tests range validation on update.
func TestLogHandlers_Update_InvalidCoordinates(t *testing.T) {
	repo := activitylog.NewInMemoryRepository()
	seedLogs(t, repo, activitylog.ActivityLog{ID: "log-1", Location: "Dock 3"})
	handlers := NewLogHandlers(repo)

	body := []byte(`{"location":"Dock 3","coordinates":[200,95]}`)
	req := httptest.NewRequest(http.MethodPut, "/logs/log-1", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handlers.Update(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

// TestLogHandlers_Delete tests DELETE /logs/{id}.
func TestLogHandlers_Delete(t *testing.T) {
	repo := activitylog.NewInMemoryRepository()
	seedLogs(t, repo, activitylog.ActivityLog{ID: "log-1", Location: "Dock 3"})
	handlers := NewLogHandlers(repo)

	req := httptest.NewRequest(http.MethodDelete, "/logs/log-1", nil)
	w := httptest.NewRecorder()

	handlers.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}

	if _, err := repo.GetByID(context.Background(), "log-1"); err != activitylog.ErrLogNotFound {
		t.Errorf("expected log to be deleted, got %v", err)
	}
}

// TestLogHandlers_MethodNotAllowed tests the method routers.
func TestLogHandlers_MethodNotAllowed(t *testing.T) {
	handlers := NewLogHandlers(activitylog.NewInMemoryRepository())

	req := httptest.NewRequest(http.MethodPatch, "/logs", nil)
	w := httptest.NewRecorder()
	handlers.ServeLogs(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("ServeLogs: expected status 405, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/logs/log-1", nil)
	w = httptest.NewRecorder()
	handlers.ServeLog(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("ServeLog: expected status 405, got %d", w.Code)
	}
}
