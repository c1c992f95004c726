package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "hookd/internal/api/context"
	"hookd/internal/engine/analytics"
	"hookd/internal/pkg/httperr"
	"hookd/internal/pkg/pagination"
	"hookd/internal/platform/auth"
	"hookd/internal/platform/config"
	"hookd/internal/platform/models"
	"hookd/internal/platform/store"
)

// WebhookHandler exposes CRUD over webhook subscriptions. Deletion is
// logical: records flip their deleted flag and stay in the store.
type WebhookHandler struct {
	store        store.Store
	tracker      *analytics.Tracker
	defaultLimit int
	maxLimit     int
}

func NewWebhookHandler(st store.Store, tracker *analytics.Tracker, cfg config.PaginationConfig) *WebhookHandler {
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 1000
	}
	return &WebhookHandler{
		store:        st,
		tracker:      tracker,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// visibleTo is the single authorization gate shared by Get, Replace, and
// Delete. Soft-deleted records are invisible to everyone, owners see their
// own, admins see the rest. Callers answer a uniform 404 on a false result
// so the existence of another user's webhook is never revealed.
func visibleTo(webhook *models.Webhook, claims *auth.Claims) bool {
	if webhook == nil || webhook.Deleted {
		return false
	}
	return webhook.UserID == claims.UserID || claims.Admin
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cursor := q.Get("cursor")
	all := q.Get("all") != ""

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = h.defaultLimit
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	log.Debug().Str("cursor", cursor).Int("limit", limit).Bool("all", all).Msg("listing webhooks")

	// Two conjunctive filters: drop soft-deleted records unless all is set,
	// and drop anything without an owner (a guard against malformed rows).
	filter := func(rec store.Record) bool {
		var webhook models.Webhook
		if err := json.Unmarshal(rec.Value, &webhook); err != nil {
			return false
		}
		if webhook.UserID == "" {
			return false
		}
		return all || !webhook.Deleted
	}

	resp, err := h.store.List(r.Context(), store.ListOptions{
		Prefix: "webhook/",
		Cursor: cursor,
		Limit:  limit,
		Filter: filter,
	})
	if err != nil {
		log.Error().Err(err).Msg("webhook list failed")
		httperr.Internal(w)
		return
	}

	output := []*models.Webhook{}
	for _, rec := range resp.Records {
		var webhook models.Webhook
		if err := json.Unmarshal(rec.Value, &webhook); err != nil {
			continue
		}
		output = append(output, &webhook)
	}

	if len(output) > 0 && resp.Cursor != "" {
		pagination.SetNextLink(w, r, resp.Cursor)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(output)
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req struct {
		Name  string `json:"name"`
		Event string `json:"event"`
		URL   string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc := &models.Webhook{
		ID:        uuid.NewString(),
		UserID:    claims.UserID,
		Kind:      models.WebhookKind,
		Name:      req.Name,
		Event:     req.Event,
		URL:       req.URL,
		Timestamp: time.Now().UnixMilli(),
		Deleted:   false,
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		httperr.Internal(w)
		return
	}

	if err := h.store.Create(r.Context(), doc.Key(), payload); err != nil {
		log.Error().Err(err).Str("webhook_id", doc.ID).Msg("webhook create failed")
		httperr.Internal(w)
		return
	}

	// Best effort: a tracker outage must never fail the create.
	h.tracker.Track(claims.UserID, claims.Email, "Webhook Created")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("id")

	webhook, err := h.fetch(r, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperr.NotFound(w)
			return
		}
		log.Error().Err(err).Str("webhook_id", id).Msg("webhook fetch failed")
		httperr.Internal(w)
		return
	}

	if !visibleTo(webhook, claims) {
		httperr.NotFound(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(webhook)
}

// Replace is a whole-resource overwrite, not a merge: the caller's body is
// persisted verbatim, and fields it omits are gone after the write.
func (h *WebhookHandler) Replace(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Write(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var req models.Webhook
	if err := json.Unmarshal(body, &req); err != nil {
		httperr.Write(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The record is looked up by the id embedded in the body.
	existing, err := h.fetch(r, req.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperr.NotFound(w)
			return
		}
		log.Error().Err(err).Str("webhook_id", req.ID).Msg("webhook fetch failed")
		httperr.Internal(w)
		return
	}

	if !visibleTo(existing, claims) {
		httperr.NotFound(w)
		return
	}

	if err := h.store.Replace(r.Context(), models.WebhookKey(req.ID), body); err != nil {
		log.Error().Err(err).Str("webhook_id", req.ID).Msg("webhook replace failed")
		httperr.Internal(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"id": req.ID})
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("id")

	webhook, err := h.fetch(r, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperr.NotFound(w)
			return
		}
		log.Error().Err(err).Str("webhook_id", id).Msg("webhook fetch failed")
		httperr.Internal(w)
		return
	}

	if !visibleTo(webhook, claims) {
		httperr.NotFound(w)
		return
	}

	webhook.Deleted = true
	payload, err := json.Marshal(webhook)
	if err != nil {
		httperr.Internal(w)
		return
	}

	if err := h.store.Replace(r.Context(), webhook.Key(), payload); err != nil {
		log.Error().Err(err).Str("webhook_id", id).Msg("webhook soft delete failed")
		httperr.Internal(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{})
}

func (h *WebhookHandler) fetch(r *http.Request, id string) (*models.Webhook, error) {
	value, err := h.store.Get(r.Context(), models.WebhookKey(id))
	if err != nil {
		return nil, err
	}

	var webhook models.Webhook
	if err := json.Unmarshal(value, &webhook); err != nil {
		return nil, err
	}
	return &webhook, nil
}
