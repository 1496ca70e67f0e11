/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
	"github.com/walletkit/holder-agent-go/internal/metrics"
	mockcore "github.com/walletkit/holder-agent-go/pkg/mock/walletcore"
	"github.com/walletkit/holder-agent-go/pkg/walletcore/cached"
	"github.com/walletkit/holder-agent-go/pkg/proofshare"
	"github.com/walletkit/holder-agent-go/spi/walletcore"
)

var holder = Context{OrganisationID: "org-1", DidID: "did-1", KeyID: "key-1"}

func claim(path string, value interface{}, required bool) *presentation.Claim {
	return &presentation.Claim{
		Path:          path,
		Key:           presentation.LastSegment(path),
		Value:         value,
		Required:      required,
		UserSelection: !required,
	}
}

func credential(id string, state presentation.CredentialState, issued time.Time,
	claims ...*presentation.Claim) *presentation.Credential {
	return &presentation.Credential{ID: id, State: state, IssuanceDate: issued, Claims: claims}
}

// sharedQueryDefinition has two required sets that both consist of query Q1.
func sharedQueryDefinition() *presentation.DefinitionV2 {
	return &presentation.DefinitionV2{
		CredentialQueries: map[string]*presentation.CredentialQuery{
			"Q1": {ApplicableCredentials: []*presentation.Credential{
				credential("credB", presentation.StateAccepted, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
					claim("name", "Bob", true),
					claim("email", "bob@example.com", false)),
				credential("credA", presentation.StateAccepted, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
					claim("name", "Alice", true),
					claim("email", "alice@example.com", false)),
			}},
		},
		CredentialSets: []*presentation.CredentialSet{
			{Required: true, Options: [][]string{{"Q1"}}},
			{Required: true, Options: [][]string{{"Q1"}}},
		},
	}
}

func newCore() *mockcore.MockService {
	def := sharedQueryDefinition()

	return &mockcore.MockService{
		DefinitionV2Value: def,
		Credentials:       def.CredentialQueries["Q1"].ApplicableCredentials,
	}
}

func TestClient_Open(t *testing.T) {
	t.Run("test success", func(t *testing.T) {
		core := newCore()
		c := New(core)

		s, err := c.Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)

		snap := s.Snapshot()
		require.Equal(t, PhaseReady, snap.Phase)
		require.True(t, snap.Ready())
		require.Equal(t, presentation.V2, snap.Version)
		require.Equal(t, "proof-1", snap.InteractionID)
		require.Empty(t, snap.Problems)
		require.Equal(t, []string{"0", "1"}, snap.State.SelectedSetIDs())
		require.Equal(t, "credA", snap.State.Entries("0", "Q1")[0].CredentialID)

		require.Equal(t, 1, core.Calls("CheckRevocation"))
		require.Equal(t, 1, core.Calls("ListCredentials"))

		found, err := c.Session(s.ID())
		require.NoError(t, err)
		require.Same(t, s, found)
		require.Equal(t, []string{s.ID()}, c.SessionIDs())

		require.True(t, c.Close(s.ID()))
		require.False(t, c.Close(s.ID()))

		_, err = c.Session(s.ID())
		require.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("test definition failure", func(t *testing.T) {
		core := newCore()
		core.DefinitionV2Err = walletcore.NewError(walletcore.ErrorCodeUnavailable, "down")

		c := New(core)

		_, err := c.Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.Equal(t, walletcore.ErrorCodeUnavailable, walletcore.CodeOf(err))
		require.Empty(t, c.SessionIDs())
		require.Zero(t, core.Calls("ListCredentials"))
	})

	t.Run("test missing proof id", func(t *testing.T) {
		_, err := New(newCore()).Open(context.Background(), holder, &LoadRequest{})
		require.EqualError(t, err, "proof id is mandatory")
	})

	t.Run("test v1 fallback", func(t *testing.T) {
		core := newCore()
		core.DefinitionV2Err = walletcore.NewError(walletcore.ErrorCodeNotSupported, "")
		core.DefinitionValue = &presentation.DefinitionV1{
			RequestGroups: []*presentation.RequestGroup{{
				ID: "group-1",
				RequestedCredentials: []*presentation.RequestedCredential{{
					ID:                    "input_0",
					Fields:                []*presentation.Field{{ID: "f-name", Required: true, KeyMap: map[string]string{"credA": "name"}}},
					ApplicableCredentials: []string{"credA"},
				}},
			}},
		}

		s, err := New(core).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)
		require.Equal(t, presentation.V1, s.Snapshot().Version)
		require.True(t, s.Snapshot().Ready())
	})
}

func TestClient_RevocationRefresh(t *testing.T) {
	t.Run("test revoked credential is not preselected", func(t *testing.T) {
		core := newCore()
		revoked := *core.Credentials[1]
		revoked.State = presentation.StateRevoked
		core.Credentials = []*presentation.Credential{core.Credentials[0], &revoked}

		s, err := New(core).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)

		snap := s.Snapshot()
		require.Equal(t, []string{"credA"}, snap.ChangedCredentials)
		require.Equal(t, "credB", snap.State.Entries("0", "Q1")[0].CredentialID)
		require.True(t, snap.Ready())
	})

	t.Run("test failed check is not fatal", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)

		core := newCore()
		core.RevocationErr = errors.New("revocation registry unreachable")

		s, err := New(core, WithMetrics(m)).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)
		require.True(t, s.Snapshot().Ready())
		require.Equal(t, float64(1), testutil.ToFloat64(m.RevocationCheckFailures))
	})

	t.Run("test states read earlier through the cache are compared", func(t *testing.T) {
		core := newCore()
		core.DefinitionValue = &presentation.DefinitionV1{
			RequestGroups: []*presentation.RequestGroup{{
				ID: "group-1",
				RequestedCredentials: []*presentation.RequestedCredential{{
					ID:                    "input_0",
					Fields:                []*presentation.Field{{ID: "f-name", Required: true, KeyMap: map[string]string{"credA": "name"}}},
					ApplicableCredentials: []string{"credA"},
				}},
			}},
		}

		s, err := New(cached.New(core)).Open(context.Background(), holder,
			&LoadRequest{ProofID: "proof-1", Version: presentation.V1})
		require.NoError(t, err)
		require.Empty(t, s.Snapshot().ChangedCredentials)

		revoked := *core.Credentials[1]
		revoked.State = presentation.StateRevoked
		core.Credentials = []*presentation.Credential{core.Credentials[0], &revoked}

		require.NoError(t, s.Load(context.Background()))
		require.Equal(t, []string{"credA"}, s.Snapshot().ChangedCredentials)
		require.False(t, s.Snapshot().Ready())
	})

	t.Run("test check disabled", func(t *testing.T) {
		core := newCore()

		_, err := New(core, WithRevocationCheck(false)).Open(context.Background(), holder,
			&LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)
		require.Zero(t, core.Calls("CheckRevocation"))
	})

	t.Run("test credential refresh failure is fatal", func(t *testing.T) {
		core := newCore()
		core.ListErr = walletcore.NewError(walletcore.ErrorCodeUnavailable, "")

		_, err := New(core).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.Error(t, err)
	})
}

func TestSession_Load(t *testing.T) {
	t.Run("test superseded load", func(t *testing.T) {
		core := newCore()
		c := New(core)

		s, err := c.Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)

		started := make(chan struct{})
		release := make(chan struct{})
		first := true

		core.DefinitionV2Func = func(ctx context.Context, proofID string) (*presentation.DefinitionV2, error) {
			if first {
				first = false
				close(started)
				<-release
			}

			return sharedQueryDefinition(), nil
		}

		errs := make(chan error)

		go func() {
			errs <- s.Load(context.Background())
		}()

		<-started
		require.NoError(t, s.Load(context.Background()))
		close(release)
		require.ErrorIs(t, <-errs, ErrStaleLoad)
		require.True(t, s.Snapshot().Ready())
	})

	t.Run("test cancelled load keeps state", func(t *testing.T) {
		core := newCore()

		s, err := New(core).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)

		before := s.Snapshot().State

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.ErrorIs(t, s.Load(ctx), context.Canceled)
		require.Same(t, before, s.Snapshot().State)
	})
}

func TestSession_Confirmation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	s, err := New(newCore(), WithMetrics(m)).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
	require.NoError(t, err)

	before := s.Snapshot().State

	snap, err := s.SelectCredentials("Q1", "credB")
	require.NoError(t, err)
	require.NotNil(t, snap.Pending)
	require.Equal(t, 2, snap.Pending.AffectedSetCount)
	require.Equal(t, "selectCredentials", snap.Pending.Operation)
	require.Same(t, before, snap.State)

	_, err = s.ToggleField(proofshare.FieldToggle{SlotID: "Q1", FieldID: "email", Selected: true})
	require.ErrorIs(t, err, ErrChangePending)

	_, err = s.Confirm("other", true)
	require.ErrorIs(t, err, ErrNoPendingChange)

	snap, err = s.Confirm(snap.Pending.ID, false)
	require.NoError(t, err)
	require.Nil(t, snap.Pending)
	require.Same(t, before, snap.State)

	snap, err = s.SelectCredentials("Q1", "credB")
	require.NoError(t, err)

	snap, err = s.Confirm("", true)
	require.NoError(t, err)

	for _, setID := range []string{"0", "1"} {
		require.Equal(t, "credB", snap.State.Entries(setID, "Q1")[0].CredentialID)
	}

	_, err = s.Confirm("", true)
	require.ErrorIs(t, err, ErrNoPendingChange)

	require.Equal(t, float64(1), testutil.ToFloat64(m.Confirmations.WithLabelValues(metrics.DecisionAccepted)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Confirmations.WithLabelValues(metrics.DecisionDeclined)))
}

func TestSession_SingleSetEditCommits(t *testing.T) {
	s, err := New(newCore()).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
	require.NoError(t, err)

	snap, err := s.ToggleField(proofshare.FieldToggle{SetID: "0", SlotID: "Q1", FieldID: "email", Selected: true})
	require.NoError(t, err)
	require.Nil(t, snap.Pending)
	require.Equal(t, []string{"name", "email"}, snap.State.Entries("0", "Q1")[0].DisclosedPaths)
	require.Equal(t, []string{"name"}, snap.State.Entries("1", "Q1")[0].DisclosedPaths)

	claims, err := s.Preview()
	require.NoError(t, err)
	require.Len(t, claims, 2)
	require.Equal(t, "alice@example.com", claims[1].Value)

	_, err = s.SelectCredentials("nope", "credB")
	require.ErrorIs(t, err, proofshare.ErrUnknownSlot)
}

func TestSession_Submit(t *testing.T) {
	t.Run("test success", func(t *testing.T) {
		core := newCore()

		s, err := New(core).Open(context.Background(), holder,
			&LoadRequest{ProofID: "proof-1", InteractionID: "interaction-1"})
		require.NoError(t, err)

		_, err = s.ToggleField(proofshare.FieldToggle{SetID: "1", SlotID: "Q1", FieldID: "email", Selected: true})
		require.NoError(t, err)

		require.NoError(t, s.Submit(context.Background()))
		require.Equal(t, PhaseSubmitted, s.Snapshot().Phase)

		require.Equal(t, []*walletcore.SubmitProofRequest{{
			InteractionID: "interaction-1",
			DidID:         "did-1",
			KeyID:         "key-1",
			CredentialsV2: map[string][]*presentation.SubmitV2CredentialRequest{
				"Q1": {{CredentialID: "credA", UserSelections: []string{"email"}}},
			},
		}}, core.Submitted())

		require.ErrorIs(t, s.Submit(context.Background()), ErrSessionClosed)

		_, err = s.SelectCredentials("Q1", "credB")
		require.ErrorIs(t, err, ErrSessionClosed)
	})

	t.Run("test session stays readable during submission", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan error)

		core := newCore()
		core.SubmitFunc = func(ctx context.Context, req *walletcore.SubmitProofRequest) error {
			close(started)

			return <-release
		}

		s, err := New(core).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)

		done := make(chan error, 1)

		go func() {
			done <- s.Submit(context.Background())
		}()

		<-started

		require.Equal(t, PhaseSubmitting, s.Snapshot().Phase)

		_, err = s.SelectCredentials("Q1", "credB")
		require.ErrorIs(t, err, ErrSubmitInProgress)
		require.ErrorIs(t, s.Submit(context.Background()), ErrSubmitInProgress)
		require.ErrorIs(t, s.Reject(context.Background()), ErrSubmitInProgress)
		require.ErrorIs(t, s.Load(context.Background()), ErrSubmitInProgress)

		release <- walletcore.NewError(walletcore.ErrorCodeExchangeError, "verifier unreachable")
		require.Error(t, <-done)
		require.Equal(t, PhaseReady, s.Snapshot().Phase)
	})

	t.Run("test failure keeps selection", func(t *testing.T) {
		core := newCore()
		core.SubmitErr = walletcore.NewError(walletcore.ErrorCodeExchangeError, "verifier unreachable")

		s, err := New(core).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)

		before := s.Snapshot().State

		err = s.Submit(context.Background())
		require.Equal(t, walletcore.ErrorCodeExchangeError, walletcore.CodeOf(err))

		snap := s.Snapshot()
		require.Equal(t, PhaseReady, snap.Phase)
		require.Same(t, before, snap.State)

		core.SubmitErr = nil
		require.NoError(t, s.Submit(context.Background()))
	})

	t.Run("test not ready", func(t *testing.T) {
		core := newCore()
		core.DefinitionV2Value.CredentialSets = []*presentation.CredentialSet{
			{Required: true, Options: [][]string{{"Q1"}, {"Q2"}}},
		}
		core.DefinitionV2Value.CredentialQueries["Q2"] = &presentation.CredentialQuery{
			ApplicableCredentials: []*presentation.Credential{
				credential("credC", presentation.StateAccepted, time.Now(), claim("iban", "CH00", true)),
			},
		}

		s, err := New(core).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)
		require.Equal(t, PhaseIncomplete, s.Snapshot().Phase)

		require.ErrorIs(t, s.Submit(context.Background()), proofshare.ErrNotReady)
		require.Zero(t, core.Calls("SubmitProof"))

		snap, err := s.ToggleOptionGroup("0", []string{"Q2"}, true)
		require.NoError(t, err)
		require.Equal(t, PhaseReady, snap.Phase)
	})
}

func TestSession_Reject(t *testing.T) {
	t.Run("test not supported counts as rejected", func(t *testing.T) {
		core := newCore()
		core.RejectErr = walletcore.NewError(walletcore.ErrorCodeNotSupported, "")

		s, err := New(core).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)

		require.NoError(t, s.Reject(context.Background()))
		require.Equal(t, PhaseRejected, s.Snapshot().Phase)
		require.ErrorIs(t, s.Reject(context.Background()), ErrSessionClosed)
	})

	t.Run("test failure", func(t *testing.T) {
		core := newCore()
		core.RejectErr = walletcore.NewError(walletcore.ErrorCodeUnavailable, "")

		s, err := New(core).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1"})
		require.NoError(t, err)

		err = s.Reject(context.Background())
		require.Equal(t, walletcore.ErrorCodeUnavailable, walletcore.CodeOf(err))
		require.Equal(t, PhaseReady, s.Snapshot().Phase)
	})

	t.Run("test success", func(t *testing.T) {
		core := newCore()

		s, err := New(core).Open(context.Background(), holder, &LoadRequest{ProofID: "proof-1", InteractionID: "i-9"})
		require.NoError(t, err)
		require.NoError(t, s.Reject(context.Background()))
		require.Equal(t, []string{"i-9"}, core.Rejected())
	})
}
