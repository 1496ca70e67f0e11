/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"github.com/walletkit/holder-agent-go/pkg/client/proofshare"
	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
	engine "github.com/walletkit/holder-agent-go/pkg/proofshare"
)

// LoadRequest is request model for loading a proof request.
// Without SessionID a new session is opened, otherwise the session's request is fetched again.
type LoadRequest struct {
	SessionID     string               `json:"sessionId,omitempty"`
	ProofID       string               `json:"proofId,omitempty"`
	InteractionID string               `json:"interactionId,omitempty"`
	Version       presentation.Version `json:"version,omitempty"`

	// Definition is the proof request itself for bindings that already received it. It is decoded as
	// v1 when Version is 1 and as v2 otherwise.
	Definition map[string]interface{} `json:"definition,omitempty"`

	// holder context, defaults to the command configuration.
	OrganisationID string `json:"organisationId,omitempty"`
	DidID          string `json:"didId,omitempty"`
	KeyID          string `json:"keyId,omitempty"`
}

// SessionRequest is request model for operations on a session.
type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

// SelectCredentialsRequest is request model for choosing the credentials of a slot.
type SelectCredentialsRequest struct {
	SessionID     string   `json:"sessionId"`
	SlotID        string   `json:"slotId"`
	CredentialIDs []string `json:"credentialIds"`
}

// ConfirmChangeRequest is request model for confirming or declining a pending change.
type ConfirmChangeRequest struct {
	SessionID string `json:"sessionId"`
	ChangeID  string `json:"changeId,omitempty"`
	Accept    bool   `json:"accept"`
}

// ToggleFieldRequest is request model for disclosing or hiding an optional field.
type ToggleFieldRequest struct {
	SessionID string `json:"sessionId"`
	engine.FieldToggle
}

// ToggleOptionGroupRequest is request model for selecting an option group of a set.
type ToggleOptionGroupRequest struct {
	SessionID string   `json:"sessionId"`
	SetID     string   `json:"setId"`
	SlotIDs   []string `json:"slotIds"`
	Selected  bool     `json:"selected"`
}

// SessionResponse is response model of session operations.
type SessionResponse struct {
	*proofshare.Snapshot
	Ready                bool         `json:"ready"`
	Request              *RequestView `json:"request,omitempty"`
	RequiresConfirmation bool         `json:"requiresConfirmation,omitempty"`
}

// RequestView describes the normalized proof request for rendering.
type RequestView struct {
	Sets                  []*engine.Set  `json:"sets"`
	Slots                 []*engine.Slot `json:"slots"`
	SimpleSetIDs          []string       `json:"simpleSetIds,omitempty"`
	OptionSetIDs          []string       `json:"optionSetIds,omitempty"`
	InitiallyExpandedSlot string         `json:"initiallyExpandedSlot,omitempty"`
}

// PreviewResponse is response model for the disclosure preview.
type PreviewResponse struct {
	Claims []*engine.DisclosedClaim `json:"claims"`
}

// Event is published on the proofshare topic whenever a session changes.
type Event struct {
	Type      string                    `json:"type"`
	SessionID string                    `json:"sessionId"`
	ProofID   string                    `json:"proofId,omitempty"`
	Phase     proofshare.Phase          `json:"phase,omitempty"`
	Ready     bool                      `json:"ready"`
	Pending   *proofshare.PendingChange `json:"pending,omitempty"`
}
