// Package review decides when to ask the member to rate the app.
package review

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/credential"
)

// DefaultEvery is the launch interval between review prompts.
const DefaultEvery = 5

// Tracker counts launches in the credential store under appLaunchCount.
type Tracker struct {
	mu     sync.Mutex
	store  credential.Store
	every  int
	logger *zap.SugaredLogger
}

func NewTracker(store credential.Store, every int, logger *zap.SugaredLogger) *Tracker {
	if every <= 0 {
		every = DefaultEvery
	}
	return &Tracker{store: store, every: every, logger: logger}
}

// RecordLaunch counts one launch and reports whether to prompt now. The
// counter starts over after each prompt. An unreadable counter is treated
// as zero.
func (t *Tracker) RecordLaunch(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	raw, err := t.store.Read(ctx, credential.KeyLaunchCount)
	switch {
	case err == nil:
		if n, perr := strconv.Atoi(raw); perr == nil && n > 0 {
			count = n
		} else {
			t.logger.Debugw("resetting unreadable launch count", "value", raw)
		}
	case !errors.Is(err, credential.ErrNotFound):
		return false, fmt.Errorf("read launch count: %w", err)
	}

	count++
	prompt := count >= t.every
	if prompt {
		count = 0
	}
	if err := t.store.Save(ctx, credential.KeyLaunchCount, strconv.Itoa(count)); err != nil {
		return false, fmt.Errorf("save launch count: %w", err)
	}
	return prompt, nil
}
