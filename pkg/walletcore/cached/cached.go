/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package cached decorates a wallet core with a read-through credential cache.
package cached

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/walletkit/holder-agent-go/pkg/common/log"
	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
	"github.com/walletkit/holder-agent-go/spi/walletcore"
)

var logger = log.New("holder-agent/walletcore/cached")

const (
	defaultSize        = 256
	defaultConcurrency = 8
)

// Service is a wallet core whose credential reads go through an LRU cache. Any call that may change
// what the core holds drops the affected entries.
type Service struct {
	walletcore.Service

	cache       gcache.Cache
	loads       singleflight.Group
	concurrency int
}

type options struct {
	size        int
	expiration  time.Duration
	concurrency int
}

// Option configures the cache.
type Option func(opts *options)

// WithSize sets the maximum number of cached credentials.
func WithSize(size int) Option {
	return func(opts *options) {
		opts.size = size
	}
}

// WithExpiration drops cached credentials after d.
func WithExpiration(d time.Duration) Option {
	return func(opts *options) {
		opts.expiration = d
	}
}

// WithConcurrency bounds the number of concurrent misses loaded by Credentials.
func WithConcurrency(n int) Option {
	return func(opts *options) {
		opts.concurrency = n
	}
}

// New wraps svc.
func New(svc walletcore.Service, opts ...Option) *Service {
	o := &options{size: defaultSize, concurrency: defaultConcurrency}

	for _, opt := range opts {
		opt(o)
	}

	if o.size <= 0 {
		o.size = defaultSize
	}

	if o.concurrency <= 0 {
		o.concurrency = defaultConcurrency
	}

	builder := gcache.New(o.size).LRU()
	if o.expiration > 0 {
		builder = builder.Expiration(o.expiration)
	}

	return &Service{
		Service:     svc,
		cache:       builder.Build(),
		concurrency: o.concurrency,
	}
}

// GetCredential returns a credential from the cache, loading it once on a miss.
func (s *Service) GetCredential(ctx context.Context, credentialID string) (*presentation.Credential, error) {
	if v, err := s.cache.Get(credentialID); err == nil {
		return v.(*presentation.Credential), nil //nolint:forcetypeassert
	}

	v, err, _ := s.loads.Do(credentialID, func() (interface{}, error) {
		credential, err := s.Service.GetCredential(ctx, credentialID)
		if err != nil {
			return nil, err
		}

		s.store(credential)

		return credential, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*presentation.Credential), nil //nolint:forcetypeassert
}

// Credentials returns the credentials with the given ids in the given order. Misses are loaded
// concurrently. Ids unknown to the core are skipped.
func (s *Service) Credentials(ctx context.Context, ids []string) ([]*presentation.Credential, error) {
	found := make([]*presentation.Credential, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		i, id := i, id

		g.Go(func() error {
			credential, err := s.GetCredential(gctx, id)
			if walletcore.IsNotFound(err) {
				logger.Debugf("credential %s not found in wallet core", id)

				return nil
			}

			if err != nil {
				return fmt.Errorf("load credential %s: %w", id, err)
			}

			found[i] = credential

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]*presentation.Credential, 0, len(found))

	for _, c := range found {
		if c != nil {
			result = append(result, c)
		}
	}

	return result, nil
}

// ListCredentials always asks the core and refreshes the cache with the result.
func (s *Service) ListCredentials(ctx context.Context,
	query *presentation.CredentialListQuery) ([]*presentation.Credential, error) {
	credentials, err := s.Service.ListCredentials(ctx, query)
	if err != nil {
		return nil, err
	}

	for _, c := range credentials {
		s.store(c)
	}

	return credentials, nil
}

// CheckRevocation drops the checked credentials from the cache.
func (s *Service) CheckRevocation(ctx context.Context,
	credentialIDs []string) ([]*presentation.RevocationCheckResult, error) {
	defer s.remove(credentialIDs...)

	return s.Service.CheckRevocation(ctx, credentialIDs)
}

// SubmitProof drops the submitted credentials from the cache.
func (s *Service) SubmitProof(ctx context.Context, req *walletcore.SubmitProofRequest) error {
	defer s.remove(submittedIDs(req)...)

	return s.Service.SubmitProof(ctx, req)
}

// RejectProof purges the cache.
func (s *Service) RejectProof(ctx context.Context, interactionID string) error {
	defer s.cache.Purge()

	return s.Service.RejectProof(ctx, interactionID)
}

func (s *Service) store(c *presentation.Credential) {
	if c == nil || c.ID == "" {
		return
	}

	if err := s.cache.Set(c.ID, c); err != nil {
		logger.Warnf("failed to cache credential %s: %v", c.ID, err)
	}
}

func (s *Service) remove(ids ...string) {
	for _, id := range ids {
		s.cache.Remove(id)
	}
}

func submittedIDs(req *walletcore.SubmitProofRequest) []string {
	if req == nil {
		return nil
	}

	var ids []string

	for _, c := range req.Credentials {
		if c != nil {
			ids = append(ids, c.CredentialID)
		}
	}

	for _, entries := range req.CredentialsV2 {
		for _, c := range entries {
			if c != nil {
				ids = append(ids, c.CredentialID)
			}
		}
	}

	return ids
}

// ErrNotCached is returned by Peek for credentials not in the cache.
var ErrNotCached = errors.New("credential not cached")

// Peek returns a cached credential without loading it. It is used to learn the state a credential
// had before a revocation check.
func (s *Service) Peek(credentialID string) (*presentation.Credential, error) {
	v, err := s.cache.GetIFPresent(credentialID)
	if err != nil {
		return nil, ErrNotCached
	}

	return v.(*presentation.Credential), nil //nolint:forcetypeassert
}
