package sweep

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/typerank/internal/common"
	"github.com/dmitrijs2005/typerank/internal/logging"
	"github.com/dmitrijs2005/typerank/internal/server/profiles"
	"github.com/dmitrijs2005/typerank/internal/server/store"
	"github.com/dmitrijs2005/typerank/internal/server/upstream"
)

type fakeUpstream struct {
	// probes maps credential to outcome; missing entries are valid.
	probes  map[string]upstream.ProbeOutcome
	results map[string]*upstream.Result
}

func (f *fakeUpstream) Probe(ctx context.Context, credential string) (upstream.ProbeOutcome, error) {
	if o, ok := f.probes[credential]; ok {
		return o, nil
	}
	return upstream.ProbeValid, nil
}

func (f *fakeUpstream) BestQualifyingResult(ctx context.Context, username, credential string) (*upstream.Result, error) {
	if r, ok := f.results[credential]; ok {
		return r, nil
	}
	return nil, common.ErrNoQualifyingResult
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seed(t *testing.T, m store.RepositoryManager, username, credential string, score int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.Bindings().Upsert(ctx, username, credential))
	require.NoError(t, m.Profiles().Upsert(ctx, profiles.Profile{
		Username:  username,
		Score:     score,
		Accuracy:  90,
		Timestamp: time.Now().UTC(),
		Region:    "LV",
	}))
}

func TestSweep_EvictsInvalidCredential(t *testing.T) {
	ctx := context.Background()
	m, err := store.NewFileRepositoryManager(t.TempDir())
	require.NoError(t, err)

	seed(t, m, "alice", "good-key", 80)
	seed(t, m, "mallory", "revoked-key", 95)

	up := &fakeUpstream{
		probes:  map[string]upstream.ProbeOutcome{"revoked-key": upstream.ProbeInvalid},
		results: map[string]*upstream.Result{"good-key": {Score: 85, Accuracy: 97}},
	}
	s := NewSweeper(m, up, up, ticker.New(time.Hour), 0, testLogger())

	require.NoError(t, s.Sweep(ctx))

	list, err := m.Profiles().LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, 85, list[0].Score)

	_, err = m.Bindings().GetCredential(ctx, "mallory")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSweep_PreservesProfilesDuringOutage(t *testing.T) {
	ctx := context.Background()
	m, err := store.NewFileRepositoryManager(t.TempDir())
	require.NoError(t, err)

	seed(t, m, "alice", "key-a", 80)
	seed(t, m, "bob", "key-b", 95)

	before, err := m.Profiles().LoadAll(ctx)
	require.NoError(t, err)

	up := &fakeUpstream{probes: map[string]upstream.ProbeOutcome{
		"key-a": upstream.ProbeIndeterminate,
		"key-b": upstream.ProbeIndeterminate,
	}}
	s := NewSweeper(m, up, up, ticker.New(time.Hour), 0, testLogger())

	require.NoError(t, s.Sweep(ctx))

	after, err := m.Profiles().LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "indeterminate probes must leave every profile untouched")
}

func TestSweep_DropsOrphanedProfiles(t *testing.T) {
	ctx := context.Background()
	m, err := store.NewFileRepositoryManager(t.TempDir())
	require.NoError(t, err)

	seed(t, m, "alice", "key-a", 80)
	// bob has a profile but no binding.
	require.NoError(t, m.Profiles().Upsert(ctx, profiles.Profile{Username: "bob", Score: 99}))

	up := &fakeUpstream{results: map[string]*upstream.Result{"key-a": {Score: 81, Accuracy: 95}}}
	s := NewSweeper(m, up, up, ticker.New(time.Hour), 0, testLogger())

	require.NoError(t, s.Sweep(ctx))

	list, err := m.Profiles().LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Username)
}

func TestSweep_KeepsValuesOnFetchFailure(t *testing.T) {
	ctx := context.Background()
	m, err := store.NewFileRepositoryManager(t.TempDir())
	require.NoError(t, err)

	seed(t, m, "alice", "key-a", 80)

	// Probe succeeds, fetch has no qualifying result.
	up := &fakeUpstream{}
	s := NewSweeper(m, up, up, ticker.New(time.Hour), 0, testLogger())

	require.NoError(t, s.Sweep(ctx))

	list, err := m.Profiles().LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 80, list[0].Score, "a scoring failure must not change stored values")
}

func TestSweeper_ForcedTickRunsSweep(t *testing.T) {
	ctx := context.Background()
	m, err := store.NewFileRepositoryManager(t.TempDir())
	require.NoError(t, err)

	seed(t, m, "alice", "key-a", 80)

	up := &fakeUpstream{results: map[string]*upstream.Result{"key-a": {Score: 90, Accuracy: 98}}}
	mock := ticker.NewForce(time.Hour)
	s := NewSweeper(m, up, up, mock, 0, testLogger())

	done := make(chan struct{})
	s.SetAfterSweep(func(context.Context) { close(done) })

	s.Start()
	defer s.Stop()

	mock.Force <- time.Now()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("forced tick did not trigger a sweep")
	}

	list, err := m.Profiles().LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 90, list[0].Score)
}
