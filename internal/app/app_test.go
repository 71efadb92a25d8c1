package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/credential"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/fakebackend"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/session"
)

func testConfig(t *testing.T, baseURL string) Config {
	dir := t.TempDir()
	return Config{
		Gateway: gateway.Config{BaseURL: baseURL, Timeout: 2 * time.Second},
		Credential: credential.Config{
			Backend:  credential.BackendFile,
			FilePath: filepath.Join(dir, "credentials.json"),
			KeyPath:  filepath.Join(dir, "credentials.key"),
		},
		ReviewEvery: 2,
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	fb := fakebackend.New()
	t.Cleanup(fb.Close)
	pw := session.HashPassword("secret1")
	id := fb.AddAccount("ann@example.com", "", pw)
	fb.SetProfileField(id, "nickName", "Annie")

	ctx := context.Background()
	cfg := testConfig(t, fb.BaseURL())
	logger := zap.NewNop().Sugar()

	first, err := New(ctx, cfg, logger)
	require.NoError(t, err)
	res, err := first.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateLoggedOut, res.State)
	assert.False(t, res.PromptReview)
	require.NoError(t, first.Session.Login(ctx, session.LoginRequest{Email: "ann@example.com", Password: pw}))
	require.NoError(t, first.Close())

	second, err := New(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	res, err = second.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StateLoggedIn, res.State)
	assert.True(t, res.PromptReview)

	assert.Equal(t, id, second.Cache.Snapshot().MemberID)
	require.NoError(t, second.Cache.RefreshProfile(ctx))
	p, _ := second.Cache.Profile()
	assert.Equal(t, "Annie", p.NickName)
	assert.Equal(t, 1, fb.Calls(gateway.PathLogin))
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/zpi/")
	cfg.Credential.Backend = "floppy"
	_, err := New(context.Background(), cfg, zap.NewNop().Sugar())
	require.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REVIEW_PROMPT_EVERY", "7")
	t.Setenv("CREDENTIAL_BACKEND", "memory")
	t.Setenv("ZIPPORA_API_BASE_URL", "")
	t.Setenv("ZIPPORA_API_TEST", "1")
	cfg := ConfigFromEnv()
	assert.Equal(t, 7, cfg.ReviewEvery)
	assert.Equal(t, credential.BackendMemory, cfg.Credential.Backend)
	assert.Equal(t, gateway.TestBaseURL, cfg.Gateway.BaseURL)
}
