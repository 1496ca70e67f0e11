/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
	"github.com/walletkit/holder-agent-go/internal/metrics"
	"github.com/walletkit/holder-agent-go/pkg/proofshare"
	"github.com/walletkit/holder-agent-go/spi/walletcore"
)

// Phase is the lifecycle phase of a session.
type Phase string

// Session phases. Incomplete and Ready are derived from the current selection.
const (
	PhaseLoading    Phase = "loading"
	PhaseIncomplete Phase = "incomplete"
	PhaseReady      Phase = "ready"
	PhaseSubmitting Phase = "submitting"
	PhaseSubmitted  Phase = "submitted"
	PhaseRejected   Phase = "rejected"
)

// PendingChange is an edit touching several sets that waits for the holder's confirmation.
type PendingChange struct {
	ID               string `json:"id"`
	Operation        string `json:"operation"`
	AffectedSetCount int    `json:"affectedSetCount"`

	state *proofshare.State
}

// Snapshot is a consistent view of a session.
type Snapshot struct {
	SessionID          string               `json:"sessionId"`
	ProofID            string               `json:"proofId"`
	InteractionID      string               `json:"interactionId"`
	Version            presentation.Version `json:"version,omitempty"`
	Phase              Phase                `json:"phase"`
	State              *proofshare.State    `json:"state,omitempty"`
	Problems           []proofshare.Problem `json:"problems,omitempty"`
	Pending            *PendingChange       `json:"pending,omitempty"`
	ChangedCredentials []string             `json:"changedCredentials,omitempty"`
	Graph              *proofshare.Graph    `json:"-"`
}

// Ready reports whether the snapshot can be submitted.
func (s *Snapshot) Ready() bool {
	return s.Phase == PhaseReady
}

// Session holds the selection of one proof request. Its methods are safe for concurrent use.
type Session struct {
	id     string
	client *Client
	pctx   Context
	req    LoadRequest

	mu         sync.Mutex
	generation uint64
	phase      Phase
	graph      *proofshare.Graph
	state      *proofshare.State
	pending    *PendingChange
	changed    []string
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Load fetches the proof request again and replaces the selection with a fresh preselection. Only
// the most recent of concurrent loads applies its result; older ones return ErrStaleLoad. A failed
// or cancelled load leaves the session as it was.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	req := s.req
	s.mu.Unlock()

	result, err := s.client.load(ctx, s.pctx, &req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrStaleLoad
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if err != nil {
		return err
	}

	if s.closed() {
		return ErrSessionClosed
	}

	if s.phase == PhaseSubmitting {
		return ErrSubmitInProgress
	}

	s.graph = result.graph
	s.state = result.state
	s.changed = result.changed
	s.pending = nil
	s.phase = s.derivedPhase()

	return nil
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

func (s *Session) snapshot() *Snapshot {
	snap := &Snapshot{
		SessionID:          s.id,
		ProofID:            s.req.ProofID,
		InteractionID:      s.req.interactionID(),
		Phase:              s.phase,
		State:              s.state,
		Pending:            s.pending,
		ChangedCredentials: append([]string(nil), s.changed...),
		Graph:              s.graph,
	}

	if s.graph != nil {
		snap.Version = s.graph.Version

		if !s.closed() {
			snap.Problems = proofshare.Validate(s.graph, s.state)
		}
	}

	return snap
}

// Graph returns the requirement graph of the loaded request.
func (s *Session) Graph() (*proofshare.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, ErrNotLoaded
	}

	return s.graph, nil
}

// SelectCredentials chooses the credentials of a slot. When the slot is selected in several sets the
// change is held as pending until confirmed.
func (s *Session) SelectCredentials(slotID string, credentialIDs ...string) (*Snapshot, error) {
	return s.edit("selectCredentials", func(g *proofshare.Graph, st *proofshare.State) (*proofshare.Change, error) {
		return proofshare.SelectCredentials(g, st, slotID, credentialIDs...)
	})
}

// ToggleField adds or removes an optional field from the disclosure.
func (s *Session) ToggleField(t proofshare.FieldToggle) (*Snapshot, error) {
	return s.edit("toggleField", func(g *proofshare.Graph, st *proofshare.State) (*proofshare.Change, error) {
		return proofshare.ToggleField(g, st, t)
	})
}

// ToggleOptionGroup selects or deselects an option group of a set.
func (s *Session) ToggleOptionGroup(setID string, slotIDs []string, selected bool) (*Snapshot, error) {
	return s.edit("toggleOptionGroup", func(g *proofshare.Graph, st *proofshare.State) (*proofshare.Change, error) {
		return proofshare.ToggleOptionGroup(g, st, setID, slotIDs, selected)
	})
}

func (s *Session) edit(operation string,
	fn func(g *proofshare.Graph, st *proofshare.State) (*proofshare.Change, error)) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return nil, err
	}

	change, err := fn(s.graph, s.state)
	if err != nil {
		return nil, err
	}

	if change.RequiresConfirmation() {
		s.pending = &PendingChange{
			ID:               uuid.New().String(),
			Operation:        operation,
			AffectedSetCount: change.AffectedSetCount,
			state:            change.State,
		}

		return s.snapshot(), nil
	}

	s.commit(change.State)

	return s.snapshot(), nil
}

// Confirm commits (accept) or drops the pending change. An empty changeID matches any pending change.
func (s *Session) Confirm(changeID string, accept bool) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || (changeID != "" && changeID != s.pending.ID) {
		return nil, ErrNoPendingChange
	}

	pending := s.pending
	s.pending = nil

	if accept {
		s.client.metrics.IncrementConfirmation(metrics.DecisionAccepted)
		s.commit(pending.state)
	} else {
		s.client.metrics.IncrementConfirmation(metrics.DecisionDeclined)
	}

	return s.snapshot(), nil
}

// Preview returns the claim values the current selection would share.
func (s *Session) Preview() ([]*proofshare.DisclosedClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph == nil {
		return nil, ErrNotLoaded
	}

	payload, err := proofshare.Serialize(s.graph, s.state)
	if err != nil {
		return nil, err
	}

	return proofshare.Preview(s.graph, payload)
}

// Submit sends the current selection to the wallet core. On failure the selection is kept so the
// holder can retry.
func (s *Session) Submit(ctx context.Context) error {
	req, err := s.beginSubmit()
	if err != nil {
		return err
	}

	err = s.client.core.SubmitProof(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.client.metrics.IncrementSubmission(metrics.ResultFailed)
		logger.Errorf("proof submission for interaction %s failed: %v", req.InteractionID, err)

		s.phase = s.derivedPhase()

		return err
	}

	s.client.metrics.IncrementSubmission(metrics.ResultSubmitted)
	s.phase = PhaseSubmitted

	return nil
}

// beginSubmit serializes the selection and marks the session as submitting. Edits, loads and
// rejections are refused until the core answers.
func (s *Session) beginSubmit() (*walletcore.SubmitProofRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return nil, err
	}

	payload, err := proofshare.Serialize(s.graph, s.state)
	if err != nil {
		return nil, err
	}

	req := &walletcore.SubmitProofRequest{
		InteractionID: s.req.interactionID(),
		DidID:         s.pctx.DidID,
		KeyID:         s.pctx.KeyID,
	}

	switch payload.Version {
	case presentation.V2:
		req.CredentialsV2 = proofshare.WireV2(s.graph, payload)
	default:
		req.Credentials = proofshare.WireV1(s.graph, payload)
	}

	s.phase = PhaseSubmitting

	return req, nil
}

// Reject declines the proof request. A core that does not support rejection is treated as having
// rejected it.
func (s *Session) Reject(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed() {
		return ErrSessionClosed
	}

	if s.phase == PhaseSubmitting {
		return ErrSubmitInProgress
	}

	err := s.client.core.RejectProof(ctx, s.req.interactionID())
	if err != nil && !walletcore.IsNotSupported(err) {
		return fmt.Errorf("reject proof: %w", err)
	}

	if err != nil {
		logger.Debugf("wallet core does not support rejection of interaction %s", s.req.interactionID())
	}

	s.client.metrics.IncrementSubmission(metrics.ResultRejected)
	s.pending = nil
	s.phase = PhaseRejected

	return nil
}

func (s *Session) editable() error {
	switch {
	case s.closed():
		return ErrSessionClosed
	case s.phase == PhaseSubmitting:
		return ErrSubmitInProgress
	case s.graph == nil:
		return ErrNotLoaded
	case s.pending != nil:
		return ErrChangePending
	}

	return nil
}

func (s *Session) closed() bool {
	return s.phase == PhaseSubmitted || s.phase == PhaseRejected
}

func (s *Session) commit(st *proofshare.State) {
	s.state = st
	s.phase = s.derivedPhase()
}

func (s *Session) derivedPhase() Phase {
	if proofshare.IsReadyToSubmit(s.graph, s.state) {
		return PhaseReady
	}

	return PhaseIncomplete
}
