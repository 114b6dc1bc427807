package join

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/typerank/internal/common"
	"github.com/dmitrijs2005/typerank/internal/cryptox"
	"github.com/dmitrijs2005/typerank/internal/logging"
	"github.com/dmitrijs2005/typerank/internal/server/store"
	"github.com/dmitrijs2005/typerank/internal/server/upstream"
)

type fakeUpstream struct {
	probe      upstream.ProbeOutcome
	probeErr   error
	probeCalls int

	result     *upstream.Result
	resultErr  error
	fetchCalls int
}

func (f *fakeUpstream) Probe(ctx context.Context, credential string) (upstream.ProbeOutcome, error) {
	f.probeCalls++
	return f.probe, f.probeErr
}

func (f *fakeUpstream) BestQualifyingResult(ctx context.Context, username, credential string) (*upstream.Result, error) {
	f.fetchCalls++
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	return f.result, nil
}

func newTestService(t *testing.T, up *fakeUpstream) (*Service, store.RepositoryManager) {
	t.Helper()
	m, err := store.NewFileRepositoryManager(t.TempDir())
	require.NoError(t, err)
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewService(m, up, up, "LV", logger), m
}

func okUpstream() *fakeUpstream {
	return &fakeUpstream{
		probe:  upstream.ProbeValid,
		result: &upstream.Result{Score: 87, Accuracy: 96.5},
	}
}

func TestJoin_NewRegistration(t *testing.T) {
	up := okUpstream()
	svc, m := newTestService(t, up)

	res, err := svc.Join(context.Background(), "Alice", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Username)
	assert.Equal(t, OutcomeCreated, res.Outcome)

	cred, err := m.Bindings().GetCredential(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "key-1", cred)

	list, err := m.Profiles().LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 87, list[0].Score)
	assert.Equal(t, 96.5, list[0].Accuracy)
	assert.Equal(t, "LV", list[0].Region)
}

func TestJoin_BadInputSkipsStores(t *testing.T) {
	up := okUpstream()
	svc, _ := newTestService(t, up)

	cases := []struct {
		name       string
		username   string
		credential string
	}{
		{"short username", "ab", "key-1"},
		{"bad charset", "al!ce", "key-1"},
		{"empty credential", "alice", ""},
		{"oversized credential", "alice", string(make([]byte, 200))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Join(context.Background(), tc.username, tc.credential)
			assert.ErrorIs(t, err, common.ErrBadInput)
		})
	}
	assert.Zero(t, up.probeCalls, "shape violations must not reach the upstream")
}

func TestJoin_InvalidCredentialRejected(t *testing.T) {
	up := okUpstream()
	up.probe = upstream.ProbeInvalid
	svc, m := newTestService(t, up)

	_, err := svc.Join(context.Background(), "alice", "bad-key")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = m.Bindings().GetCredential(context.Background(), "alice")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestJoin_IndeterminateProbeFailsOpen(t *testing.T) {
	up := okUpstream()
	up.probe = upstream.ProbeIndeterminate
	svc, m := newTestService(t, up)

	res, err := svc.Join(context.Background(), "alice", "key-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)

	_, err = m.Bindings().GetCredential(context.Background(), "alice")
	assert.NoError(t, err)
}

func TestJoin_AntiSquatting(t *testing.T) {
	up := okUpstream()
	svc, m := newTestService(t, up)

	_, err := svc.Join(context.Background(), "alice", "key-1")
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), "alice", "key-2")
	assert.ErrorIs(t, err, common.ErrConflict)

	// The original binding must be untouched.
	cred, err := m.Bindings().GetCredential(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "key-1", cred)
	_, err = m.Bindings().FindUsernameByDigest(context.Background(), cryptox.CredentialDigest("key-2"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestJoin_CredentialAnchoredIdentity(t *testing.T) {
	up := okUpstream()
	svc, m := newTestService(t, up)

	_, err := svc.Join(context.Background(), "alice", "key-1")
	require.NoError(t, err)

	// Same credential, different typed username: re-login as alice.
	res, err := svc.Join(context.Background(), "bob", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Username)
	assert.Equal(t, OutcomeRelogin, res.Outcome)

	_, err = m.Bindings().GetCredential(context.Background(), "bob")
	assert.ErrorIs(t, err, common.ErrNotFound, "no binding may be created for the typed name")
}

func TestJoin_ForwardRelogin(t *testing.T) {
	up := okUpstream()
	svc, m := newTestService(t, up)

	_, err := svc.Join(context.Background(), "alice", "key-1")
	require.NoError(t, err)

	up.result = &upstream.Result{Score: 120, Accuracy: 99.0}
	res, err := svc.Join(context.Background(), "alice", "key-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRelogin, res.Outcome)

	list, err := m.Profiles().LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 120, list[0].Score)
}

func TestJoin_FailedRefreshKeepsBinding(t *testing.T) {
	up := okUpstream()
	up.resultErr = common.ErrNoQualifyingResult
	svc, m := newTestService(t, up)

	_, err := svc.Join(context.Background(), "alice", "key-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoQualifyingResult)

	// The binding is durable; the next sweep or retried join repairs the
	// missing profile.
	cred, err := m.Bindings().GetCredential(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "key-1", cred)

	list, err := m.Profiles().LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestJoin_ProbeErrorIsServerError(t *testing.T) {
	up := okUpstream()
	up.probeErr = errors.New("boom")
	svc, _ := newTestService(t, up)

	_, err := svc.Join(context.Background(), "alice", "key-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrBadInput)
	assert.NotErrorIs(t, err, common.ErrUnauthorized)
	assert.NotErrorIs(t, err, common.ErrConflict)
}
