/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/walletkit/holder-agent-go/pkg/common/log"
	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
	"github.com/walletkit/holder-agent-go/internal/metrics"
	"github.com/walletkit/holder-agent-go/pkg/proofshare"
	"github.com/walletkit/holder-agent-go/spi/walletcore"
)

var logger = log.New("holder-agent/client/proofshare")

// Load stages reported in metrics.
const (
	stageDefinition  = "definition"
	stageCredentials = "credentials"
	stageNormalize   = "normalize"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("proof sharing session not found")
	// ErrStaleLoad is returned by a load superseded by a newer load of the same session.
	ErrStaleLoad = errors.New("load superseded by a newer load")
	// ErrNotLoaded is returned by session operations before a load succeeded.
	ErrNotLoaded = errors.New("proof request not loaded")
	// ErrSessionClosed is returned by edits after the proof was submitted or rejected.
	ErrSessionClosed = errors.New("proof sharing session closed")
	// ErrChangePending is returned by edits while a multi-set change awaits confirmation.
	ErrChangePending = errors.New("a change is awaiting confirmation")
	// ErrNoPendingChange is returned by Confirm when there is nothing to confirm.
	ErrNoPendingChange = errors.New("no pending change")
	// ErrSubmitInProgress is returned while the wallet core handles a submission of the session.
	ErrSubmitInProgress = errors.New("proof submission in progress")
)

// Context identifies the holder a proof is shared for. It is passed explicitly instead of being
// read from process wide state.
type Context struct {
	OrganisationID string `json:"organisationId"`
	DidID          string `json:"didId,omitempty"`
	KeyID          string `json:"keyId,omitempty"`
}

// LoadRequest identifies the proof request to load.
type LoadRequest struct {
	ProofID string `json:"proofId"`
	// InteractionID defaults to ProofID.
	InteractionID string `json:"interactionId,omitempty"`
	// Version selects the definition endpoint. Zero asks for v2 and falls back to v1 when the core
	// does not support v2 for the proof.
	Version presentation.Version `json:"version,omitempty"`
	// Definition is a request the caller already received. It is used instead of fetching the
	// request from the core, also on reload.
	Definition *proofshare.Definition `json:"-"`
}

func (r *LoadRequest) interactionID() string {
	if r.InteractionID != "" {
		return r.InteractionID
	}

	return r.ProofID
}

// credentialResolver is implemented by cores able to fetch single credentials efficiently.
type credentialResolver interface {
	Credentials(ctx context.Context, ids []string) ([]*presentation.Credential, error)
}

// credentialPeeker is implemented by cores that keep previously read credentials around.
type credentialPeeker interface {
	Peek(credentialID string) (*presentation.Credential, error)
}

// Client runs proof sharing sessions against a wallet core.
type Client struct {
	core            walletcore.Service
	metrics         *metrics.Metrics
	revocationCheck bool

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures the client.
type Option func(c *Client)

// WithMetrics records load, submission and confirmation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRevocationCheck enables or disables the revocation refresh before preselection. It is
// enabled by default.
func WithRevocationCheck(enabled bool) Option {
	return func(c *Client) {
		c.revocationCheck = enabled
	}
}

// New returns a proof sharing client.
func New(core walletcore.Service, opts ...Option) *Client {
	c := &Client{
		core:            core,
		revocationCheck: true,
		sessions:        map[string]*Session{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Open starts a session and loads the proof request into it. The session is registered only when
// the load succeeds.
func (c *Client) Open(ctx context.Context, pctx Context, req *LoadRequest) (*Session, error) {
	if req == nil || req.ProofID == "" {
		return nil, fmt.Errorf("proof id is mandatory")
	}

	s := &Session{
		id:     uuid.New().String(),
		client: c,
		pctx:   pctx,
		req:    *req,
		phase:  PhaseLoading,
	}

	if err := s.Load(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sessions[s.id] = s
	c.mu.Unlock()

	logger.Debugf("opened proof sharing session %s for proof %s", s.id, req.ProofID)

	return s, nil
}

// Session returns an open session.
func (c *Client) Session(id string) (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return s, nil
}

// SessionIDs returns the ids of the open sessions.
func (c *Client) SessionIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Close discards a session. It returns false for unknown sessions.
func (c *Client) Close(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[id]; !ok {
		return false
	}

	delete(c.sessions, id)

	return true
}

type loaded struct {
	graph   *proofshare.Graph
	state   *proofshare.State
	changed []string
}

// load runs definition fetch, revocation refresh, credential refresh, normalization and
// preselection in that order.
func (c *Client) load(ctx context.Context, pctx Context, req *LoadRequest) (*loaded, error) {
	start := time.Now()

	defer func() {
		c.metrics.ObserveLoadLatency(time.Since(start))
	}()

	def, err := c.definition(ctx, req)
	if err != nil {
		c.metrics.IncrementLoadFailure(stageDefinition)

		return nil, err
	}

	embedded := embeddedCredentials(def)
	changed := c.refreshRevocation(ctx, def.CandidateCredentialIDs(), embedded)

	credentials, err := c.credentials(ctx, pctx, referencedCredentialIDs(def))
	if err != nil {
		c.metrics.IncrementLoadFailure(stageCredentials)

		return nil, err
	}

	graph, err := proofshare.Normalize(def, append(embedded, credentials...))
	if err != nil {
		c.metrics.IncrementLoadFailure(stageNormalize)

		return nil, err
	}

	c.metrics.IncrementLoad(strconv.Itoa(int(graph.Version)))

	return &loaded{graph: graph, state: proofshare.Preselect(graph), changed: changed}, nil
}

func (c *Client) definition(ctx context.Context, req *LoadRequest) (proofshare.Definition, error) {
	if req.Definition != nil {
		return *req.Definition, nil
	}

	switch req.Version {
	case presentation.V1:
		def, err := c.core.GetPresentationDefinition(ctx, req.ProofID)

		return proofshare.Definition{V1: def}, err
	case presentation.V2:
		def, err := c.core.GetPresentationDefinitionV2(ctx, req.ProofID)

		return proofshare.Definition{V2: def}, err
	}

	def, err := c.core.GetPresentationDefinitionV2(ctx, req.ProofID)
	if walletcore.IsNotSupported(err) {
		logger.Debugf("v2 definition not supported for proof %s, falling back to v1", req.ProofID)

		return c.definition(ctx, &LoadRequest{ProofID: req.ProofID, Version: presentation.V1})
	}

	return proofshare.Definition{V2: def}, err
}

// refreshRevocation asks the core to recheck candidate credentials. A failure is logged and the
// last known states are used.
func (c *Client) refreshRevocation(ctx context.Context, ids []string,
	embedded []*presentation.Credential) []string {
	if !c.revocationCheck || len(ids) == 0 {
		return nil
	}

	known := c.knownStates(ids, embedded)

	results, err := c.core.CheckRevocation(ctx, ids)
	if err != nil {
		c.metrics.IncrementRevocationCheckFailure()
		logger.Warnf("revocation check failed, using last known credential states: %v", err)

		return nil
	}

	for _, r := range results {
		if r != nil && !r.Success {
			logger.Infof("revocation check of credential %s failed: %s", r.CredentialID, r.Reason)
		}
	}

	return walletcore.ChangedCredentials(known, results)
}

// knownStates collects the states held before the revocation check. Request embedded records win
// over records the core read earlier.
func (c *Client) knownStates(ids []string,
	embedded []*presentation.Credential) map[string]presentation.CredentialState {
	known := make(map[string]presentation.CredentialState, len(ids))

	for _, cred := range embedded {
		known[cred.ID] = cred.State
	}

	peeker, ok := c.core.(credentialPeeker)
	if !ok {
		return known
	}

	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}

		if cred, err := peeker.Peek(id); err == nil {
			known[id] = cred.State
		}
	}

	return known
}

// credentials refreshes the records of every referenced credential. Records missing from the
// listing are fetched one by one when the core supports it.
func (c *Client) credentials(ctx context.Context, pctx Context, ids []string) ([]*presentation.Credential, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	listed, err := c.core.ListCredentials(ctx, &presentation.CredentialListQuery{
		OrganisationID: pctx.OrganisationID,
		IDs:            ids,
	})
	if err != nil {
		return nil, err
	}

	resolver, ok := c.core.(credentialResolver)
	if !ok {
		return listed, nil
	}

	found := make(map[string]struct{}, len(listed))
	for _, cred := range listed {
		found[cred.ID] = struct{}{}
	}

	var missing []string

	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return listed, nil
	}

	fetched, err := resolver.Credentials(ctx, missing)
	if err != nil {
		return nil, err
	}

	return append(listed, fetched...), nil
}

// embeddedCredentials returns the credential records carried by the request itself.
func embeddedCredentials(def proofshare.Definition) []*presentation.Credential {
	var credentials []*presentation.Credential

	if def.V1 != nil {
		for _, cred := range def.V1.Credentials {
			if cred != nil {
				credentials = append(credentials, cred)
			}
		}
	}

	if def.V2 != nil {
		ids := make([]string, 0, len(def.V2.CredentialQueries))
		for id := range def.V2.CredentialQueries {
			ids = append(ids, id)
		}

		sort.Strings(ids)

		for _, id := range ids {
			q := def.V2.CredentialQueries[id]
			if q == nil {
				continue
			}

			for _, cred := range q.ApplicableCredentials {
				if cred != nil {
					credentials = append(credentials, cred)
				}
			}
		}
	}

	return credentials
}

// referencedCredentialIDs returns the candidate ids plus the inapplicable ids listed by v1 requests.
func referencedCredentialIDs(def proofshare.Definition) []string {
	ids := def.CandidateCredentialIDs()

	if def.V1 == nil {
		return ids
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	for _, g := range def.V1.RequestGroups {
		if g == nil {
			continue
		}

		for _, rc := range g.RequestedCredentials {
			if rc == nil {
				continue
			}

			for _, id := range rc.InapplicableCredentials {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
	}

	return ids
}
