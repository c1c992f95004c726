package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	_ "github.com/mattn/go-sqlite3"

	apiContext "hookd/internal/api/context"
	"hookd/internal/engine/analytics"
	"hookd/internal/platform/auth"
	"hookd/internal/platform/config"
	"hookd/internal/platform/models"
	"hookd/internal/platform/store"
)

var (
	ownerClaims = &auth.Claims{UserID: "usr_owner", Email: "owner@example.com"}
	otherClaims = &auth.Claims{UserID: "usr_other", Email: "other@example.com"}
	adminClaims = &auth.Claims{UserID: "usr_admin", Email: "admin@example.com", Admin: true}
)

func newTestHandler(t *testing.T) *WebhookHandler {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := store.Schema(db); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	// Unconfigured tracker: Track is a no-op.
	tracker := analytics.NewTracker(config.AnalyticsConfig{})
	return NewWebhookHandler(store.NewSQLiteStore(db), tracker, config.PaginationConfig{})
}

func doRequest(handler http.HandlerFunc, method, target string, body io.Reader, claims *auth.Claims, params httprouter.Params) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)

	ctx := req.Context()
	if claims != nil {
		ctx = context.WithValue(ctx, apiContext.Claims, claims)
	}
	ctx = context.WithValue(ctx, apiContext.Params, params)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func createWebhook(t *testing.T, h *WebhookHandler, claims *auth.Claims, name string) *models.Webhook {
	t.Helper()

	body := bytes.NewBufferString(`{"name":"` + name + `","event":"stream.started","url":"https://example.com/hook"}`)
	rr := doRequest(h.Create, "POST", "/api/v1/webhooks", body, claims, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Create returned %d, want 201: %s", rr.Code, rr.Body.String())
	}

	var webhook models.Webhook
	if err := json.Unmarshal(rr.Body.Bytes(), &webhook); err != nil {
		t.Fatalf("Failed to decode create response: %v", err)
	}
	return &webhook
}

func idParams(id string) httprouter.Params {
	return httprouter.Params{{Key: "id", Value: id}}
}

func assertNotFoundBody(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()

	if rr.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rr.Code)
	}
	var resp struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if len(resp.Errors) != 1 || resp.Errors[0] != "not found" {
		t.Errorf(`got errors %v, want ["not found"]`, resp.Errors)
	}
}

func TestCreateWebhook(t *testing.T) {
	h := newTestHandler(t)

	before := time.Now().UnixMilli()
	webhook := createWebhook(t, h, ownerClaims, "my hook")

	if webhook.ID == "" {
		t.Error("Expected a generated id")
	}
	if webhook.UserID != ownerClaims.UserID {
		t.Errorf("Expected userId %s, got %s", ownerClaims.UserID, webhook.UserID)
	}
	if webhook.Kind != models.WebhookKind {
		t.Errorf("Expected kind webhook, got %s", webhook.Kind)
	}
	if webhook.Deleted {
		t.Error("New webhook must not be deleted")
	}
	if webhook.Timestamp < before || webhook.Timestamp > time.Now().UnixMilli() {
		t.Errorf("Timestamp %d outside expected range", webhook.Timestamp)
	}
}

func TestGetWebhookOwnership(t *testing.T) {
	h := newTestHandler(t)
	webhook := createWebhook(t, h, ownerClaims, "mine")

	rr := doRequest(h.Get, "GET", "/api/v1/webhooks/"+webhook.ID, nil, ownerClaims, idParams(webhook.ID))
	if rr.Code != http.StatusOK {
		t.Errorf("Owner get returned %d, want 200", rr.Code)
	}

	// Another user's webhook must be indistinguishable from a missing one.
	rr = doRequest(h.Get, "GET", "/api/v1/webhooks/"+webhook.ID, nil, otherClaims, idParams(webhook.ID))
	assertNotFoundBody(t, rr)

	rr = doRequest(h.Get, "GET", "/api/v1/webhooks/"+webhook.ID, nil, adminClaims, idParams(webhook.ID))
	if rr.Code != http.StatusOK {
		t.Errorf("Admin get returned %d, want 200", rr.Code)
	}
}

func TestGetMissingWebhook(t *testing.T) {
	h := newTestHandler(t)

	rr := doRequest(h.Get, "GET", "/api/v1/webhooks/nope", nil, ownerClaims, idParams("nope"))
	assertNotFoundBody(t, rr)
}

func TestSoftDelete(t *testing.T) {
	h := newTestHandler(t)
	webhook := createWebhook(t, h, ownerClaims, "doomed")

	rr := doRequest(h.Delete, "DELETE", "/api/v1/webhooks/"+webhook.ID, nil, ownerClaims, idParams(webhook.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("Delete returned %d, want 200", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "{}" {
		t.Errorf("Delete body = %q, want {}", body)
	}

	// Gone for the owner too.
	rr = doRequest(h.Get, "GET", "/api/v1/webhooks/"+webhook.ID, nil, ownerClaims, idParams(webhook.ID))
	assertNotFoundBody(t, rr)

	// A second delete sees a hidden record.
	rr = doRequest(h.Delete, "DELETE", "/api/v1/webhooks/"+webhook.ID, nil, ownerClaims, idParams(webhook.ID))
	assertNotFoundBody(t, rr)
}

func TestDeleteHiddenFromDefaultListing(t *testing.T) {
	h := newTestHandler(t)
	kept := createWebhook(t, h, ownerClaims, "kept")
	doomed := createWebhook(t, h, ownerClaims, "doomed")

	rr := doRequest(h.Delete, "DELETE", "/api/v1/webhooks/"+doomed.ID, nil, ownerClaims, idParams(doomed.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("Delete returned %d, want 200", rr.Code)
	}

	rr = doRequest(h.List, "GET", "/api/v1/webhooks", nil, ownerClaims, nil)
	var listed []*models.Webhook
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != kept.ID {
		t.Errorf("Default listing = %v, want only %s", listed, kept.ID)
	}

	// all=true resurfaces the soft-deleted record.
	rr = doRequest(h.List, "GET", "/api/v1/webhooks?all=true", nil, ownerClaims, nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("all=true listing has %d records, want 2", len(listed))
	}
}

func TestReplaceIsFullOverwrite(t *testing.T) {
	h := newTestHandler(t)
	webhook := createWebhook(t, h, ownerClaims, "before")

	// The url field is omitted on purpose: replace is not a merge, so the
	// stored record loses it.
	body := bytes.NewBufferString(`{"id":"` + webhook.ID + `","userId":"` + ownerClaims.UserID + `","kind":"webhook","name":"after","event":"stream.started"}`)
	rr := doRequest(h.Replace, "PUT", "/api/v1/webhooks/"+webhook.ID, body, ownerClaims, idParams(webhook.ID))
	if rr.Code != http.StatusOK {
		t.Fatalf("Replace returned %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode replace response: %v", err)
	}
	if resp["id"] != webhook.ID {
		t.Errorf("Replace response id = %q, want %q", resp["id"], webhook.ID)
	}

	rr = doRequest(h.Get, "GET", "/api/v1/webhooks/"+webhook.ID, nil, ownerClaims, idParams(webhook.ID))
	var fetched models.Webhook
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("Failed to decode get response: %v", err)
	}
	if fetched.Name != "after" {
		t.Errorf("Name = %q, want %q", fetched.Name, "after")
	}
	if fetched.URL != "" {
		t.Errorf("URL survived a full replace that omitted it: %q", fetched.URL)
	}
}

func TestReplaceOwnershipGate(t *testing.T) {
	h := newTestHandler(t)
	webhook := createWebhook(t, h, ownerClaims, "mine")

	body := `{"id":"` + webhook.ID + `","userId":"` + ownerClaims.UserID + `","kind":"webhook","name":"hijacked","event":"e","url":"https://evil.example.com"}`

	rr := doRequest(h.Replace, "PUT", "/api/v1/webhooks/"+webhook.ID, bytes.NewBufferString(body), otherClaims, idParams(webhook.ID))
	assertNotFoundBody(t, rr)

	// Record is untouched after the rejected replace.
	rr = doRequest(h.Get, "GET", "/api/v1/webhooks/"+webhook.ID, nil, ownerClaims, idParams(webhook.ID))
	var fetched models.Webhook
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("Failed to decode get response: %v", err)
	}
	if fetched.Name != "mine" {
		t.Errorf("Name = %q, want %q", fetched.Name, "mine")
	}

	// Admins pass the same gate.
	rr = doRequest(h.Replace, "PUT", "/api/v1/webhooks/"+webhook.ID, bytes.NewBufferString(body), adminClaims, idParams(webhook.ID))
	if rr.Code != http.StatusOK {
		t.Errorf("Admin replace returned %d, want 200", rr.Code)
	}
}

func TestReplaceMissingWebhook(t *testing.T) {
	h := newTestHandler(t)

	body := bytes.NewBufferString(`{"id":"ghost","name":"n","event":"e","url":"u"}`)
	rr := doRequest(h.Replace, "PUT", "/api/v1/webhooks/ghost", body, ownerClaims, idParams("ghost"))
	assertNotFoundBody(t, rr)
}

func TestListPagination(t *testing.T) {
	h := newTestHandler(t)
	createWebhook(t, h, ownerClaims, "one")
	createWebhook(t, h, ownerClaims, "two")

	rr := doRequest(h.List, "GET", "/api/v1/webhooks?limit=1", nil, ownerClaims, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("List returned %d, want 200", rr.Code)
	}

	var page []*models.Webhook
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("First page has %d records, want 1", len(page))
	}

	link := rr.Header().Get("Link")
	if link == "" {
		t.Fatal("Expected a Link next header on a full page")
	}
	next := strings.TrimSuffix(strings.TrimPrefix(link, "<"), `>; rel="next"`)

	rr = doRequest(h.List, "GET", next, nil, ownerClaims, nil)
	var rest []*models.Webhook
	if err := json.Unmarshal(rr.Body.Bytes(), &rest); err != nil {
		t.Fatalf("Failed to decode second page: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("Second page has %d records, want 1", len(rest))
	}
	if rest[0].ID == page[0].ID {
		t.Error("Second page repeated the first page's record")
	}
}

func TestListEmpty(t *testing.T) {
	h := newTestHandler(t)

	rr := doRequest(h.List, "GET", "/api/v1/webhooks", nil, ownerClaims, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("List returned %d, want 200", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("Empty listing body = %q, want []", body)
	}
	if rr.Header().Get("Link") != "" {
		t.Error("Empty listing must not emit a next link")
	}
}

// raceStore serves both deletes the same live record, the way two
// near-simultaneous requests would each read before either write lands.
type raceStore struct {
	live     []byte
	replaced [][]byte
}

func (s *raceStore) List(ctx context.Context, opts store.ListOptions) (*store.ListResult, error) {
	return &store.ListResult{}, nil
}

func (s *raceStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.live, nil
}

func (s *raceStore) Create(ctx context.Context, key string, value []byte) error {
	return nil
}

func (s *raceStore) Replace(ctx context.Context, key string, value []byte) error {
	s.replaced = append(s.replaced, value)
	return nil
}

func TestConcurrentDeletesBothSucceed(t *testing.T) {
	doc, _ := json.Marshal(&models.Webhook{
		ID:     "wh1",
		UserID: ownerClaims.UserID,
		Kind:   models.WebhookKind,
	})
	rs := &raceStore{live: doc}

	tracker := analytics.NewTracker(config.AnalyticsConfig{})
	h := NewWebhookHandler(rs, tracker, config.PaginationConfig{})

	for i := 0; i < 2; i++ {
		rr := doRequest(h.Delete, "DELETE", "/api/v1/webhooks/wh1", nil, ownerClaims, idParams("wh1"))
		if rr.Code != http.StatusOK {
			t.Errorf("Delete %d returned %d, want 200", i, rr.Code)
		}
	}

	if len(rs.replaced) != 2 {
		t.Fatalf("Expected 2 replace writes, got %d", len(rs.replaced))
	}

	var final models.Webhook
	if err := json.Unmarshal(rs.replaced[len(rs.replaced)-1], &final); err != nil {
		t.Fatalf("Failed to decode final write: %v", err)
	}
	if !final.Deleted {
		t.Error("Final stored state must have deleted == true")
	}
}
