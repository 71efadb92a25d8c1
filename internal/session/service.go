package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/credential"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
)

var (
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrMissingIdentifier = errors.New("email or phone number is required")
	ErrPasswordMismatch  = errors.New("the two passwords are different")
	ErrEmailRegistered   = errors.New("email already registered")
	ErrWrongVcode        = errors.New("wrong verification code")
	ErrPhoneRegistered   = errors.New("phone number already registered")
)

// SessionEndedError is returned when an expired session could not be
// renewed. The local session is gone; the caller has to log in again.
type SessionEndedError struct {
	Reason error
}

func (e *SessionEndedError) Error() string {
	return fmt.Sprintf("session ended: %v", e.Reason)
}

func (e *SessionEndedError) Unwrap() error { return e.Reason }

// Backend is the part of the gateway the session drives.
type Backend interface {
	Login(ctx context.Context, req gateway.LoginRequest) (gateway.LoginResult, error)
	Register(ctx context.Context, req gateway.RegisterRequest) (gateway.LoginResult, error)
	SendVcode(ctx context.Context, email, flag string) error
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, req gateway.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, auth gateway.Auth, req gateway.ChangePasswordRequest) error
	Logout(ctx context.Context, auth gateway.Auth) error
}

// Listener is told when a member session starts or ends. Calls are made
// outside of the session's locks.
type Listener interface {
	SessionStarted(memberID string)
	SessionEnded()
}

// LoginRequest identifies the member by email or phone. Password is hashed
// (see HashPassword).
type LoginRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Vcode           string `json:"vcode"`
}

type ResetPasswordRequest struct {
	MemberID        string `json:"memberId"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Vcode           string `json:"vcode"`
}

// Service is the authentication state machine. It owns the access token and
// is the only writer of the credential keys.
type Service struct {
	backend Backend
	keys    *credential.Keychain
	cfg     Config
	logger  *zap.SugaredLogger
	now     func() time.Time

	// authMu serializes state transitions.
	authMu sync.Mutex

	mu    sync.RWMutex
	state State
	auth  gateway.Auth

	relogin singleflight.Group

	listenersMu sync.Mutex
	listeners   []Listener
}

func NewService(backend Backend, keys *credential.Keychain, cfg Config, logger *zap.SugaredLogger) *Service {
	if cfg.LogoutTimeout <= 0 {
		cfg.LogoutTimeout = DefaultLogoutTimeout
	}
	if cfg.ReLoginTimeout <= 0 {
		cfg.ReLoginTimeout = DefaultReLoginTimeout
	}
	return &Service{
		backend: backend,
		keys:    keys,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		state:   StateLoggedOut,
	}
}

// AddListener registers l for session start/end notifications.
func (s *Service) AddListener(l Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Service) notifyStarted(memberID string) {
	s.listenersMu.Lock()
	ls := append([]Listener(nil), s.listeners...)
	s.listenersMu.Unlock()
	for _, l := range ls {
		l.SessionStarted(memberID)
	}
}

func (s *Service) notifyEnded() {
	s.listenersMu.Lock()
	ls := append([]Listener(nil), s.listeners...)
	s.listenersMu.Unlock()
	for _, l := range ls {
		l.SessionEnded()
	}
}

// State returns the current authentication state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Auth returns the current credentials, if any.
func (s *Service) Auth() (gateway.Auth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth, s.auth.AccessToken != "" && s.auth.MemberID != ""
}

// MemberID returns the logged in member, or "".
func (s *Service) MemberID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.MemberID
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.logger.Debugw("session state", "from", prev.String(), "to", st.String())
	}
}

func (s *Service) setAuth(st State, auth gateway.Auth) {
	s.mu.Lock()
	s.auth = auth
	s.mu.Unlock()
	s.setState(st)
}

// Restore loads persisted credentials at app start.
func (s *Service) Restore(ctx context.Context) (State, error) {
	s.authMu.Lock()
	cred, err := s.keys.LoadSession(ctx)
	if err != nil {
		s.setAuth(StateLoggedOut, gateway.Auth{})
		s.authMu.Unlock()
		if errors.Is(err, credential.ErrNotFound) {
			return StateLoggedOut, nil
		}
		return StateLoggedOut, fmt.Errorf("restore session: %w", err)
	}
	s.setAuth(StateLoggedIn, gateway.Auth{AccessToken: cred.AccessToken, MemberID: cred.MemberID})
	s.authMu.Unlock()

	s.logger.Infow("session restored", "member_id", cred.MemberID)
	s.notifyStarted(cred.MemberID)
	return StateLoggedIn, nil
}

// Login authenticates with email or phone. A rejected attempt leaves any
// previous session as it was; a session that cannot be persisted ends in
// LoggedOut.
func (s *Service) Login(ctx context.Context, req LoginRequest) error {
	if req.Email == "" && req.Phone == "" {
		return ErrMissingIdentifier
	}
	s.authMu.Lock()
	prevState := s.State()
	prevAuth, _ := s.Auth()
	s.setState(StateLoggingIn)

	res, err := s.backend.Login(ctx, gateway.LoginRequest{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		DeviceID: s.keys.DeviceToken(ctx),
	})
	if err != nil {
		s.restoreLocked(prevState, prevAuth)
		s.authMu.Unlock()
		s.logger.Infow("login failed", "kind", gateway.Kind(err).String(), "err", err)
		return err
	}
	if err := s.keys.SaveSession(ctx, res.AccessToken, res.MemberID, req.Password); err != nil {
		s.persistFailedLocked(ctx, prevState, err)
		return err
	}
	s.setAuth(StateLoggedIn, gateway.Auth{AccessToken: res.AccessToken, MemberID: res.MemberID})
	s.authMu.Unlock()

	s.logger.Infow("logged in", "member_id", res.MemberID)
	s.notifyStarted(res.MemberID)
	return nil
}

// persistFailedLocked handles a session the server issued but the keychain
// could not store. The keychain has already dropped the stored token pair,
// so a previous session cannot be kept in memory either. Releases authMu.
func (s *Service) persistFailedLocked(ctx context.Context, prev State, err error) {
	s.hardLogoutLocked(ctx)
	s.authMu.Unlock()
	s.logger.Warnw("session not persisted", "err", err)
	if prev == StateLoggedIn {
		s.notifyEnded()
	}
}

func (s *Service) restoreLocked(st State, auth gateway.Auth) {
	if st != StateLoggedIn {
		s.setAuth(StateLoggedOut, gateway.Auth{})
		return
	}
	s.setAuth(st, auth)
}

// SendRegisterVcode emails the code Register needs.
func (s *Service) SendRegisterVcode(ctx context.Context, email string) error {
	if email == "" {
		return ErrMissingIdentifier
	}
	return s.backend.SendVcode(ctx, email, "")
}

// Register creates an account and logs into it. The documented failure
// codes are reported as ErrEmailRegistered, ErrWrongVcode and
// ErrPhoneRegistered; the gateway error stays in the chain.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	if req.Email == "" {
		return ErrMissingIdentifier
	}
	if req.Password != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	s.authMu.Lock()
	prevState := s.State()
	prevAuth, _ := s.Auth()
	s.setState(StateLoggingIn)

	res, err := s.backend.Register(ctx, gateway.RegisterRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password1: req.Password,
		Password2: req.ConfirmPassword,
		Vcode:     req.Vcode,
	})
	if err != nil {
		s.restoreLocked(prevState, prevAuth)
		s.authMu.Unlock()
		return registerError(err)
	}
	if err := s.keys.SaveSession(ctx, res.AccessToken, res.MemberID, req.Password); err != nil {
		s.persistFailedLocked(ctx, prevState, err)
		return err
	}
	s.setAuth(StateLoggedIn, gateway.Auth{AccessToken: res.AccessToken, MemberID: res.MemberID})
	s.authMu.Unlock()

	s.logger.Infow("registered", "member_id", res.MemberID)
	s.notifyStarted(res.MemberID)
	return nil
}

func registerError(err error) error {
	op, code, ok := gateway.BusinessCode(err)
	if !ok || op != gateway.PathRegister {
		return err
	}
	switch code {
	case gateway.CodeEmailRegistered:
		return fmt.Errorf("%w: %w", ErrEmailRegistered, err)
	case gateway.CodeWrongVcode:
		return fmt.Errorf("%w: %w", ErrWrongVcode, err)
	case gateway.CodePhoneRegistered:
		return fmt.Errorf("%w: %w", ErrPhoneRegistered, err)
	}
	return err
}

// SendForgotPasswordVcode emails a reset code and returns the member id the
// reset must name.
func (s *Service) SendForgotPasswordVcode(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", ErrMissingIdentifier
	}
	return s.backend.ForgotPassword(ctx, email)
}

func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if req.Password != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	err := s.backend.ResetPassword(ctx, gateway.ResetPasswordRequest{
		MemberID:  req.MemberID,
		Password1: req.Password,
		Password2: req.ConfirmPassword,
		Vcode:     req.Vcode,
	})
	if op, code, ok := gateway.BusinessCode(err); ok && op == gateway.PathResetPassword && code == gateway.CodeWrongVcode {
		return fmt.Errorf("%w: %w", ErrWrongVcode, err)
	}
	return err
}

// ChangePassword changes the password of the logged in member and keeps the
// saved password in step so later re-logins use the new one.
func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) error {
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	err := s.Do(ctx, func(ctx context.Context, auth gateway.Auth) error {
		return s.backend.ChangePassword(ctx, auth, gateway.ChangePasswordRequest{
			OldPassword: oldPassword,
			Password1:   newPassword,
			Password2:   confirm,
		})
	})
	if err != nil {
		return err
	}
	if err := s.keys.SavePassword(ctx, newPassword); err != nil {
		return fmt.Errorf("save new password: %w", err)
	}
	return nil
}

// Do runs an authenticated call. When the backend reports the token as
// expired the session logs in again with the saved credentials and the call
// is retried once. A JWT access token whose exp has passed is renewed before
// the first attempt.
func (s *Service) Do(ctx context.Context, call func(ctx context.Context, auth gateway.Auth) error) error {
	auth, ok := s.Auth()
	if !ok {
		return ErrNotLoggedIn
	}
	if credential.TokenExpired(auth.AccessToken, s.now()) {
		s.logger.Debugw("access token past exp, renewing", "member_id", auth.MemberID)
		renewed, err := s.reLogin(ctx, auth.AccessToken)
		if err != nil {
			return err
		}
		auth = renewed
	}

	err := call(ctx, auth)
	if !gateway.IsTokenExpired(err) {
		return err
	}
	renewed, rerr := s.reLogin(ctx, auth.AccessToken)
	if rerr != nil {
		return rerr
	}
	return call(ctx, renewed)
}

// reLogin renews the token that was rejected. Concurrent callers holding the
// same rejected token share one login; a caller whose stale token was already
// replaced gets the current credentials without another login.
func (s *Service) reLogin(ctx context.Context, stale string) (gateway.Auth, error) {
	ch := s.relogin.DoChan("relogin:"+stale, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ReLoginTimeout)
		defer cancel()
		return s.doReLogin(rctx, stale)
	})
	select {
	case <-ctx.Done():
		return gateway.Auth{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return gateway.Auth{}, res.Err
		}
		return res.Val.(gateway.Auth), nil
	}
}

func (s *Service) doReLogin(ctx context.Context, stale string) (gateway.Auth, error) {
	s.authMu.Lock()

	current, ok := s.Auth()
	if !ok {
		s.authMu.Unlock()
		return gateway.Auth{}, &SessionEndedError{Reason: ErrNotLoggedIn}
	}
	if current.AccessToken != stale && s.State() == StateLoggedIn {
		s.authMu.Unlock()
		return current, nil
	}

	s.setState(StateTokenExpired)
	memberID, password, err := s.keys.SavedLogin(ctx)
	if err != nil {
		s.hardLogoutLocked(ctx)
		s.authMu.Unlock()
		s.logger.Warnw("re-login impossible, no saved credentials", "err", err)
		s.notifyEnded()
		return gateway.Auth{}, &SessionEndedError{Reason: err}
	}

	s.setState(StateReLoggingIn)
	res, err := s.backend.Login(ctx, gateway.LoginRequest{
		MemberID: memberID,
		Password: password,
		DeviceID: s.keys.DeviceToken(ctx),
	})
	if err == nil {
		err = s.keys.UpdateToken(ctx, res.AccessToken)
	}
	if err != nil {
		s.hardLogoutLocked(ctx)
		s.authMu.Unlock()
		s.logger.Warnw("re-login failed", "member_id", memberID, "kind", gateway.Kind(err).String(), "err", err)
		s.notifyEnded()
		return gateway.Auth{}, &SessionEndedError{Reason: err}
	}

	renewed := gateway.Auth{AccessToken: res.AccessToken, MemberID: res.MemberID}
	s.setAuth(StateLoggedIn, renewed)
	s.authMu.Unlock()
	s.logger.Infow("re-logged in", "member_id", res.MemberID)
	return renewed, nil
}

// hardLogoutLocked drops the local session. authMu must be held.
func (s *Service) hardLogoutLocked(ctx context.Context) {
	if err := s.keys.Clear(ctx); err != nil {
		s.logger.Warnw("clear credentials failed", "err", err)
	}
	s.setAuth(StateLoggedOut, gateway.Auth{})
}

// Logout ends the session. The server call is best effort and bounded by
// the logout timeout; local credentials are removed regardless of its outcome.
func (s *Service) Logout(ctx context.Context) error {
	s.authMu.Lock()
	auth, ok := s.Auth()
	if ok {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LogoutTimeout)
		if err := s.backend.Logout(lctx, auth); err != nil {
			s.logger.Warnw("server logout failed", "member_id", auth.MemberID, "err", err)
		}
		cancel()
	}
	err := s.keys.Clear(context.WithoutCancel(ctx))
	s.setAuth(StateLoggedOut, gateway.Auth{})
	s.authMu.Unlock()

	if ok {
		s.logger.Infow("logged out", "member_id", auth.MemberID)
	}
	s.notifyEnded()
	if err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
