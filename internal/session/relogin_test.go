package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/credential"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
)

type countingBackend struct {
	Backend
	logins atomic.Int32
}

func (b *countingBackend) Login(ctx context.Context, req gateway.LoginRequest) (gateway.LoginResult, error) {
	b.logins.Add(1)
	return gateway.LoginResult{AccessToken: "T3", MemberID: req.MemberID}, nil
}

// A caller holding an older rejected token must not hand its result to a
// caller whose newer token was rejected too.
func TestReLoginFlightsAreKeyedByRejectedToken(t *testing.T) {
	ctx := context.Background()
	keys := credential.NewKeychain(credential.NewMemoryStore())
	require.NoError(t, keys.SaveSession(ctx, "T2", "1001", "hash"))
	backend := &countingBackend{}
	s := NewService(backend, keys, Config{}, zap.NewNop().Sugar())
	s.setAuth(StateLoggedIn, gateway.Auth{AccessToken: "T2", MemberID: "1001"})

	// hold transitions so both flights are pending at once
	s.authMu.Lock()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = s.reLogin(ctx, "T1")
	}()
	time.Sleep(20 * time.Millisecond)

	var newer gateway.Auth
	var newerErr error
	go func() {
		defer wg.Done()
		newer, newerErr = s.reLogin(ctx, "T2")
	}()
	time.Sleep(20 * time.Millisecond)
	s.authMu.Unlock()
	wg.Wait()

	require.NoError(t, newerErr)
	assert.Equal(t, "T3", newer.AccessToken)
	assert.Equal(t, int32(1), backend.logins.Load())
}
