// Package sweep runs the periodic revalidation pass over the profile list:
// orphan cleanup, credential re-probing with eviction of confirmed-invalid
// bindings, and score refresh for everyone else.
package sweep

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/ticker"

	"github.com/dmitrijs2005/typerank/internal/common"
	"github.com/dmitrijs2005/typerank/internal/logging"
	"github.com/dmitrijs2005/typerank/internal/server/profiles"
	"github.com/dmitrijs2005/typerank/internal/server/store"
	"github.com/dmitrijs2005/typerank/internal/server/upstream"
)

// Sweeper drives the revalidation loop off a ticker. Sweeps self-exclude:
// a tick that arrives while a sweep is still running is dropped, never
// queued.
type Sweeper struct {
	manager   store.RepositoryManager
	validator upstream.Validator
	source    upstream.ResultSource
	tick      ticker.Ticker
	pacing    time.Duration
	logger    logging.Logger

	// afterSweep, when set, runs after every completed sweep. The snapshot
	// uploader hooks in here.
	afterSweep func(ctx context.Context)

	mu      sync.Mutex
	running bool

	started bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper constructs a Sweeper. pacing is the delay inserted between
// per-user upstream calls within one sweep.
func NewSweeper(m store.RepositoryManager, v upstream.Validator, src upstream.ResultSource, t ticker.Ticker, pacing time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{
		manager:   m,
		validator: v,
		source:    src,
		tick:      t,
		pacing:    pacing,
		logger:    logger,
		quit:      make(chan struct{}),
	}
}

// SetAfterSweep registers a hook invoked after each completed sweep. Must
// be called before Start.
func (s *Sweeper) SetAfterSweep(fn func(ctx context.Context)) {
	s.afterSweep = fn
}

// Start launches the background loop. Safe to call once.
func (s *Sweeper) Start() {
	if s.started {
		return
	}
	s.started = true
	s.tick.Resume()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.tick.Ticks():
				s.runOnce()
			case <-s.quit:
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if !s.started {
		return
	}
	close(s.quit)
	s.tick.Stop()
	s.wg.Wait()
}

// runOnce executes one sweep unless another is still in flight.
func (s *Sweeper) runOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn(context.Background(), "sweep still in flight, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx := context.Background()
	if err := s.Sweep(ctx); err != nil {
		s.logger.Error(ctx, "sweep failed", "error", err)
		return
	}
	if s.afterSweep != nil {
		s.afterSweep(ctx)
	}
}

// Sweep runs one full revalidation pass and persists the surviving profile
// list as one atomic overwrite.
func (s *Sweeper) Sweep(ctx context.Context) error {
	list, err := s.manager.Profiles().LoadAll(ctx)
	if err != nil {
		return err
	}

	kept := make([]profiles.Profile, 0, len(list))
	var evicted, orphaned, refreshed int

	for i, p := range list {
		if i > 0 {
			s.pause(ctx)
		}

		credential, err := s.manager.Bindings().GetCredential(ctx, p.Username)
		if errors.Is(err, common.ErrNotFound) {
			orphaned++
			s.logger.Info(ctx, "dropping orphaned profile", "username", p.Username)
			continue
		}
		if err != nil {
			// Store trouble is not the user's fault; keep the row.
			s.logger.Error(ctx, "binding lookup failed", "username", p.Username, "error", err)
			kept = append(kept, p)
			continue
		}

		outcome, err := s.validator.Probe(ctx, credential)
		if err != nil {
			s.logger.Error(ctx, "probe failed", "username", p.Username, "error", err)
			kept = append(kept, p)
			continue
		}
		switch outcome {
		case upstream.ProbeInvalid:
			evicted++
			s.logger.Info(ctx, "evicting invalid credential", "username", p.Username)
			if err := s.manager.Bindings().Delete(ctx, p.Username); err != nil && !errors.Is(err, common.ErrNotFound) {
				s.logger.Error(ctx, "binding delete failed", "username", p.Username, "error", err)
			}
			continue
		case upstream.ProbeIndeterminate:
			// Do not refresh and do not evict during an upstream wobble.
			kept = append(kept, p)
			continue
		}

		res, err := s.source.BestQualifyingResult(ctx, p.Username, credential)
		if err != nil {
			s.logger.Warn(ctx, "score refresh failed, keeping previous values", "username", p.Username, "error", err)
			kept = append(kept, p)
			continue
		}
		p.Score = res.Score
		p.Accuracy = res.Accuracy
		p.Timestamp = time.Now().UTC()
		refreshed++
		kept = append(kept, p)
	}

	if err := s.manager.Profiles().SaveAll(ctx, kept); err != nil {
		return err
	}

	s.logger.Info(ctx, "sweep finished",
		"total", len(list), "kept", len(kept),
		"refreshed", refreshed, "evicted", evicted, "orphaned", orphaned)
	return nil
}

func (s *Sweeper) pause(ctx context.Context) {
	if s.pacing <= 0 {
		return
	}
	select {
	case <-time.After(s.pacing):
	case <-ctx.Done():
	}
}
