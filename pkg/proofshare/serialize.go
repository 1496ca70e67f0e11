/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
)

// SubmissionEntry is one credential presented for a slot.
type SubmissionEntry struct {
	CredentialID   string   `json:"credentialId"`
	DisclosedPaths []string `json:"disclosedPaths"`
}

// SubmissionPayload is the flattened selection, keyed by slot id.
type SubmissionPayload struct {
	Version     presentation.Version          `json:"version"`
	Credentials map[string][]*SubmissionEntry `json:"credentials"`
}

// Serialize flattens a valid state into a submission payload. A slot selected by several sets yields
// one entry per credential whose disclosed paths are the union of what every set discloses.
func Serialize(g *Graph, st *State) (*SubmissionPayload, error) {
	if problems := Validate(g, st); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, problems[0])
	}

	payload := &SubmissionPayload{
		Version:     g.Version,
		Credentials: map[string][]*SubmissionEntry{},
	}

	for _, set := range g.Sets {
		sel, ok := st.sets[set.ID]
		if !ok {
			continue
		}

		for _, slotID := range set.Options[sel.option].SlotIDs {
			slot := g.Slot(slotID)

			for _, e := range sel.slots[slotID] {
				payload.merge(slot, e)
			}
		}
	}

	return payload, nil
}

func (p *SubmissionPayload) merge(slot *Slot, e SelectionEntry) {
	entries := p.Credentials[slot.ID]

	for _, existing := range entries {
		if existing.CredentialID != e.CredentialID {
			continue
		}

		union := slices.Clone(existing.DisclosedPaths)

		for _, path := range e.DisclosedPaths {
			if !slices.Contains(union, path) {
				union = append(union, path)
			}
		}

		existing.DisclosedPaths = canonicalPaths(slot, e.CredentialID, union)

		return
	}

	p.Credentials[slot.ID] = append(entries, &SubmissionEntry{
		CredentialID:   e.CredentialID,
		DisclosedPaths: slices.Clone(e.DisclosedPaths),
	})
}

// WireV1 converts a payload into the v1 submission: one credential per requested credential with the
// ids of the disclosed fields.
func WireV1(g *Graph, p *SubmissionPayload) map[string]*presentation.SubmitCredentialRequest {
	out := make(map[string]*presentation.SubmitCredentialRequest, len(p.Credentials))

	for slotID, entries := range p.Credentials {
		slot := g.Slot(slotID)
		if slot == nil || len(entries) == 0 {
			continue
		}

		e := entries[0]
		req := &presentation.SubmitCredentialRequest{CredentialID: e.CredentialID, SubmitClaims: []string{}}

		for _, f := range slot.Fields {
			if path, ok := f.PathFor(e.CredentialID); ok && slices.Contains(e.DisclosedPaths, path) {
				req.SubmitClaims = append(req.SubmitClaims, f.ID)
			}
		}

		out[slotID] = req
	}

	return out
}

// WireV2 converts a payload into the v2 submission. Required claims are implied by the query, so only
// the optional disclosed paths are listed as user selections.
func WireV2(g *Graph, p *SubmissionPayload) map[string][]*presentation.SubmitV2CredentialRequest {
	out := make(map[string][]*presentation.SubmitV2CredentialRequest, len(p.Credentials))

	for slotID, entries := range p.Credentials {
		slot := g.Slot(slotID)
		if slot == nil {
			continue
		}

		for _, e := range entries {
			req := &presentation.SubmitV2CredentialRequest{CredentialID: e.CredentialID, UserSelections: []string{}}

			for _, path := range e.DisclosedPaths {
				if f := slot.fieldByPath(e.CredentialID, path); f != nil && f.Required {
					continue
				}

				req.UserSelections = append(req.UserSelections, path)
			}

			out[slotID] = append(out[slotID], req)
		}
	}

	return out
}
