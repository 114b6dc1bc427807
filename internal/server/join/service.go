// Package join implements the join workflow: the ordered decision chain
// that turns a proposed username and an upstream credential into either a
// fresh registration or a re-login to the identity the credential is
// already bound to.
package join

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/typerank/internal/common"
	"github.com/dmitrijs2005/typerank/internal/cryptox"
	"github.com/dmitrijs2005/typerank/internal/logging"
	"github.com/dmitrijs2005/typerank/internal/server/bindings"
	"github.com/dmitrijs2005/typerank/internal/server/profiles"
	"github.com/dmitrijs2005/typerank/internal/server/store"
	"github.com/dmitrijs2005/typerank/internal/server/upstream"
)

// Outcome reports how a successful join terminated.
type Outcome int

const (
	// OutcomeCreated means a brand new binding and profile were written.
	OutcomeCreated Outcome = iota

	// OutcomeRelogin means the credential or username resolved to an
	// existing binding and the stored profile was refreshed.
	OutcomeRelogin
)

func (o Outcome) String() string {
	if o == OutcomeCreated {
		return "created"
	}
	return "relogin"
}

// Result is the terminal state of one accepted join: the authenticated
// username (which may differ from the typed one) and how it was resolved.
type Result struct {
	Username string
	Outcome  Outcome
}

// Service runs the join workflow. The credential, not the username, is the
// identity anchor: whoever presents a bound credential is that binding's
// user, whatever name they typed.
type Service struct {
	manager   store.RepositoryManager
	validator upstream.Validator
	source    upstream.ResultSource
	region    string
	logger    logging.Logger
}

// NewService constructs a join Service over the given backends. region is
// stamped onto every profile the service writes.
func NewService(m store.RepositoryManager, v upstream.Validator, src upstream.ResultSource, region string, logger logging.Logger) *Service {
	return &Service{
		manager:   m,
		validator: v,
		source:    src,
		region:    region,
		logger:    logger,
	}
}

// Join runs the workflow for one request. The returned error is one of the
// sentinel values in common (ErrBadInput, ErrUnauthorized, ErrConflict) or
// a wrapped internal error; on success the Result names the authenticated
// username.
//
// Region admission is the caller's concern and must be decided before this
// method is invoked, so a denied request never touches either store.
func (s *Service) Join(ctx context.Context, username, credential string) (*Result, error) {
	username = bindings.NormalizeUsername(username)
	if !bindings.ValidUsername(username) || !bindings.ValidCredential(credential) {
		return nil, common.ErrBadInput
	}

	outcome, err := s.validator.Probe(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("probing credential: %w", err)
	}
	if outcome == upstream.ProbeInvalid {
		return nil, common.ErrUnauthorized
	}
	// Indeterminate probes fall through: an upstream hiccup must not lock
	// legitimate users out.

	digest := cryptox.CredentialDigest(credential)

	// The credential already belongs to someone: re-login as that user and
	// ignore the typed username entirely.
	bound, err := s.manager.Bindings().FindUsernameByDigest(ctx, digest)
	if err == nil {
		s.logger.Info(ctx, "relogin via bound credential", "username", bound, "digest", digest)
		if err := s.refreshProfile(ctx, bound, credential); err != nil {
			return nil, err
		}
		return &Result{Username: bound, Outcome: OutcomeRelogin}, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("reverse binding lookup: %w", err)
	}

	// The username already belongs to someone: only the exact credential it
	// is bound to may reuse it.
	stored, err := s.manager.Bindings().GetCredential(ctx, username)
	if err == nil {
		if !cryptox.SecretsEqual(stored, credential) {
			return nil, common.ErrConflict
		}
		s.logger.Info(ctx, "relogin via forward binding", "username", username)
		if err := s.refreshProfile(ctx, username, credential); err != nil {
			return nil, err
		}
		return &Result{Username: username, Outcome: OutcomeRelogin}, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("forward binding lookup: %w", err)
	}

	// Brand new username, brand new credential. Bind first so the identity
	// survives a failed refresh; the sweep or a retried join repairs the
	// missing score.
	if err := s.manager.Bindings().Upsert(ctx, username, credential); err != nil {
		return nil, fmt.Errorf("writing binding: %w", err)
	}
	s.logger.Info(ctx, "registered new user", "username", username, "digest", digest)
	if err := s.refreshProfile(ctx, username, credential); err != nil {
		return nil, err
	}
	return &Result{Username: username, Outcome: OutcomeCreated}, nil
}

// refreshProfile fetches the best qualifying result and overwrites the
// stored profile row for username.
func (s *Service) refreshProfile(ctx context.Context, username, credential string) error {
	res, err := s.source.BestQualifyingResult(ctx, username, credential)
	if err != nil {
		return fmt.Errorf("refreshing profile for %s: %w", username, err)
	}
	p := profiles.Profile{
		Username:  username,
		Score:     res.Score,
		Accuracy:  res.Accuracy,
		Timestamp: time.Now().UTC(),
		Region:    s.region,
	}
	if err := s.manager.Profiles().Upsert(ctx, p); err != nil {
		return fmt.Errorf("writing profile for %s: %w", username, err)
	}
	return nil
}
