package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/app"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/credential"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/fakebackend"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/session"
	zippora "github.com/ovaphlow/pitchfork/zippora-client-go/internal/zippora/entity"
)

type bridge struct {
	t  *testing.T
	fb *fakebackend.Server
	h  http.Handler
}

func newBridge(t *testing.T) *bridge {
	fb := fakebackend.New()
	t.Cleanup(fb.Close)
	logger := zap.NewNop().Sugar()
	a, err := app.New(context.Background(), app.Config{
		Gateway:    gateway.Config{BaseURL: fb.BaseURL(), Timeout: 2 * time.Second},
		Credential: credential.Config{Backend: credential.BackendMemory},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	_, err = a.Start(context.Background())
	require.NoError(t, err)
	return &bridge{t: t, fb: fb, h: RegisterRoutes(a, logger)}
}

func (b *bridge) do(method, path string, body any) *httptest.ResponseRecorder {
	b.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(b.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, Prefix+path, &buf)
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndHeaders(t *testing.T) {
	b := newBridge(t)
	rec := b.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestLoginFlowOverBridge(t *testing.T) {
	b := newBridge(t)
	id := b.fb.AddAccount("ann@example.com", "", session.HashPassword("secret1"))

	rec := b.do(http.MethodGet, "/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = b.do(http.MethodPost, "/session/login", map[string]string{"email": "ann@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errBody := decode[session.ErrorResponse](t, rec)
	assert.Equal(t, "Wrong account or password", errBody.Error)
	assert.Equal(t, "business_failure", errBody.Kind)

	rec = b.do(http.MethodPost, "/session/login", map[string]string{"email": "ann@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[session.StateResponse](t, rec)
	assert.Equal(t, "logged_in", st.State)
	assert.Equal(t, id, st.MemberID)

	rec = b.do(http.MethodPost, "/cache/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = b.do(http.MethodPost, "/session/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "logged_out", decode[session.StateResponse](t, rec).State)

	rec = b.do(http.MethodPost, "/cache/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApartmentFlowOverBridge(t *testing.T) {
	b := newBridge(t)
	b.fb.AddAccount("ann@example.com", "", session.HashPassword("secret1"))
	b.fb.AddProperty(fakebackend.Property{
		ApartmentID: "apt-1", ApartmentName: "Riverside Lofts",
		Address: "123 Main St, Austin, TX 78701, USA", Zipcode: "78701",
		Units: []zippora.Unit{{UnitID: "u-4b", UnitName: "4B"}},
	})
	b.fb.SetQRResult("ZIP:OLD", gateway.CodeQRExpired)
	rec := b.do(http.MethodPost, "/session/login", map[string]string{"email": "ann@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = b.do(http.MethodGet, "/apartments/search?zipcode=787", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.do(http.MethodGet, "/apartments/search?zipcode=78701", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]zippora.ApartmentCandidate](t, rec), 1)

	rec = b.do(http.MethodGet, "/apartments/apt-1/units", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = b.do(http.MethodPost, "/apartments/apt-1/subscription", map[string]string{"unitId": "u-4b"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[map[string]any](t, rec)
	assert.Equal(t, "4B", out["unitName"])
	assert.NotContains(t, out, "addressError")

	rec = b.do(http.MethodGet, "/cache", nil)
	snap := decode[map[string]any](t, rec)
	profile := snap["profile"].(map[string]any)
	assert.Equal(t, "Apt 4B", profile["addressLine2"])

	rec = b.do(http.MethodPost, "/scan", map[string]string{"text": "ZIP:OLD"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, gateway.CodeQRExpired, decode[session.ErrorResponse](t, rec).Code)

	rec = b.do(http.MethodPatch, "/profile", map[string]string{"nickName": "annie"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Annie", decode[map[string]any](t, rec)["nickName"])

	rec = b.do(http.MethodPost, "/profile/household", map[string]string{"name": "Lee, Bo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.do(http.MethodDelete, "/apartments/apt-1/subscription", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBridgeCallsAreTaggedAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core).Sugar()
	h := LoggingMiddleware(logger, func() string { return "1001" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

	req := httptest.NewRequest(http.MethodGet, Prefix+"/cache", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	generated := rec.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)

	req = httptest.NewRequest(http.MethodGet, Prefix+"/cache", nil)
	req.Header.Set(RequestIDHeader, "shell-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "shell-42", rec.Header().Get(RequestIDHeader))

	entries := logs.FilterMessage("bridge call").All()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.Equal(t, generated, first["request_id"])
	assert.Equal(t, "1001", first["member_id"])
	assert.EqualValues(t, http.StatusBadGateway, first["status"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "shell-42", entries[1].ContextMap()["request_id"])
}

func TestBridgeRoutesSetRequestID(t *testing.T) {
	b := newBridge(t)
	rec := b.do(http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}
