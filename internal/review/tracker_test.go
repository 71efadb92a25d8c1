package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/credential"
)

func TestRecordLaunchPromptsEveryFifth(t *testing.T) {
	ctx := context.Background()
	store := credential.NewMemoryStore()
	tr := NewTracker(store, 0, zap.NewNop().Sugar())

	var prompts []int
	for i := 1; i <= 12; i++ {
		prompt, err := tr.RecordLaunch(ctx)
		require.NoError(t, err)
		if prompt {
			prompts = append(prompts, i)
		}
	}
	assert.Equal(t, []int{5, 10}, prompts)

	v, err := store.Read(ctx, credential.KeyLaunchCount)
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestRecordLaunchRecoversFromGarbage(t *testing.T) {
	ctx := context.Background()
	store := credential.NewMemoryStore()
	require.NoError(t, store.Save(ctx, credential.KeyLaunchCount, "lots"))
	tr := NewTracker(store, 2, zap.NewNop().Sugar())

	prompt, err := tr.RecordLaunch(ctx)
	require.NoError(t, err)
	assert.False(t, prompt)
	prompt, err = tr.RecordLaunch(ctx)
	require.NoError(t, err)
	assert.True(t, prompt)
}

func TestCounterSurvivesLogout(t *testing.T) {
	ctx := context.Background()
	store := credential.NewMemoryStore()
	tr := NewTracker(store, 5, zap.NewNop().Sugar())
	for i := 0; i < 3; i++ {
		_, err := tr.RecordLaunch(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, credential.NewKeychain(store).Clear(ctx))

	v, err := store.Read(ctx, credential.KeyLaunchCount)
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}
