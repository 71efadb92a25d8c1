package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	member "github.com/ovaphlow/pitchfork/zippora-client-go/internal/member/entity"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/session"
)

// Handler exposes the cache over the local bridge.
type Handler struct {
	cache  *Cache
	logger *zap.SugaredLogger
}

func NewHandler(cache *Cache, logger *zap.SugaredLogger) *Handler {
	return &Handler{cache: cache, logger: logger}
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Snapshot())
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Refresh(r.Context()); err != nil {
		h.fail(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Snapshot())
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch member.ProfilePatch
	if !h.decode(w, r, &patch) {
		return
	}
	if err := h.cache.UpdateProfile(r.Context(), patch); err != nil {
		h.fail(w, "update profile", err)
		return
	}
	p, _ := h.cache.Profile()
	writeJSON(w, http.StatusOK, p)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) AddHouseholdMember(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.cache.AddHouseholdMember(r.Context(), req.Name); err != nil {
		h.fail(w, "add household member", err)
		return
	}
	p, _ := h.cache.Profile()
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) RemoveHouseholdMember(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.RemoveHouseholdMember(r.Context(), r.PathValue("name")); err != nil {
		h.fail(w, "remove household member", err)
		return
	}
	p, _ := h.cache.Profile()
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) SearchApartments(w http.ResponseWriter, r *http.Request) {
	found, err := h.cache.SearchApartments(r.Context(), r.URL.Query().Get("zipcode"))
	if err != nil {
		h.fail(w, "search apartments", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *Handler) Units(w http.ResponseWriter, r *http.Request) {
	units, err := h.cache.FetchUnits(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "fetch units", err)
		return
	}
	writeJSON(w, http.StatusOK, units)
}

type subscribeRequest struct {
	UnitID string `json:"unitId"`
}

type subscribeResponse struct {
	SubscribeResult
	AddressError string `json:"addressError,omitempty"`
	RefreshError string `json:"refreshError,omitempty"`
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.cache.SubscribeToApartment(r.Context(), r.PathValue("id"), req.UnitID)
	if err != nil {
		h.fail(w, "subscribe", err)
		return
	}
	out := subscribeResponse{SubscribeResult: res}
	if res.AddressErr != nil {
		out.AddressError = res.AddressErr.Error()
	}
	if res.RefreshErr != nil {
		out.RefreshError = session.UserMessage(res.RefreshErr)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.UnsubscribeApartment(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, "unsubscribe", err)
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Apartments())
}

type scanRequest struct {
	Text string `json:"text"`
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.cache.ScanQRCode(r.Context(), req.Text); err != nil {
		h.fail(w, "scan", err)
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Apartments())
}

func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.RefreshLogs(r.Context()); err != nil {
		h.fail(w, "refresh logs", err)
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Logs())
}

// Events streams change events as server-sent events until the client
// disconnects.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, session.ErrorResponse{Error: "streaming unsupported"})
		return
	}
	sub := h.cache.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			b, _ := json.Marshal(ev)
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Topic, b)
			flusher.Flush()
		}
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusBadRequest, session.ErrorResponse{Error: "invalid payload"})
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Debugw(op+" failed", "err", err)
	switch {
	case errors.Is(err, ErrInvalidZipcode), errors.Is(err, ErrEmptyPatch), errors.Is(err, member.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, session.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrQREmpty) && !isBusiness(err):
		writeJSON(w, http.StatusBadRequest, session.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrStale):
		writeJSON(w, http.StatusConflict, session.ErrorResponse{Error: err.Error()})
	default:
		session.WriteError(w, err)
	}
}

func isBusiness(err error) bool {
	return session.StatusCode(err) == http.StatusUnprocessableEntity
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
