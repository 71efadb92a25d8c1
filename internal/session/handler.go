package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
)

// Handler exposes the session over the local bridge. Passwords arrive in
// plain text from the UI shell and are hashed here.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// StateResponse describes the current session.
type StateResponse struct {
	State    string `json:"state"`
	MemberID string `json:"memberId,omitempty"`
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{State: h.svc.State().String(), MemberID: h.svc.MemberID()})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Password = HashPassword(req.Password)
	if err := h.svc.Login(r.Context(), req); err != nil {
		h.fail(w, "login", err)
		return
	}
	h.State(w, r)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) SendRegisterVcode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SendRegisterVcode(r.Context(), req.Email); err != nil {
		h.fail(w, "send vcode", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Password = HashPassword(req.Password)
	req.ConfirmPassword = HashPassword(req.ConfirmPassword)
	if err := h.svc.Register(r.Context(), req); err != nil {
		h.fail(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, StateResponse{State: h.svc.State().String(), MemberID: h.svc.MemberID()})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	memberID, err := h.svc.SendForgotPasswordVcode(r.Context(), req.Email)
	if err != nil {
		h.fail(w, "forgot password", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"memberId": memberID})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Password = HashPassword(req.Password)
	req.ConfirmPassword = HashPassword(req.ConfirmPassword)
	if err := h.svc.ResetPassword(r.Context(), req); err != nil {
		h.fail(w, "reset password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.svc.ChangePassword(r.Context(), HashPassword(req.OldPassword), HashPassword(req.NewPassword), HashPassword(req.ConfirmPassword))
	if err != nil {
		h.fail(w, "change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context()); err != nil {
		// local state is logged out regardless
		h.logger.Warnw("logout", "err", err)
	}
	h.State(w, r)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payload"})
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Debugw(op+" failed", "err", err)
	WriteError(w, err)
}

// ErrorResponse is the bridge's error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Code  int    `json:"code,omitempty"`
}

// StatusCode maps an error from the session or cache to an HTTP status.
func StatusCode(err error) int {
	var ended *SessionEndedError
	switch {
	case errors.As(err, &ended), errors.Is(err, ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMissingIdentifier), errors.Is(err, ErrPasswordMismatch):
		return http.StatusBadRequest
	}
	switch gateway.Kind(err) {
	case gateway.KindBusiness:
		return http.StatusUnprocessableEntity
	default:
		var te *gateway.TransportError
		if errors.As(err, &te) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

// WriteError writes err as an ErrorResponse.
func WriteError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: UserMessage(err)}
	if _, code, ok := gateway.BusinessCode(err); ok {
		resp.Kind = gateway.KindBusiness.String()
		resp.Code = code
	} else if status := StatusCode(err); status == http.StatusBadGateway {
		resp.Kind = gateway.KindTransport.String()
	}
	writeJSON(w, StatusCode(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
