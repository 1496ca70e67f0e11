/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"errors"

	"golang.org/x/exp/slices"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
)

var (
	// ErrMalformedDefinition is returned when a verifier request cannot be turned into a requirement graph.
	ErrMalformedDefinition = errors.New("malformed presentation definition")
	// ErrUnknownSet is returned when an operation references a set that is not part of the graph.
	ErrUnknownSet = errors.New("unknown requirement set")
	// ErrUnknownSlot is returned when an operation references a slot that is not part of the graph.
	ErrUnknownSlot = errors.New("unknown requirement slot")
	// ErrUnknownField is returned when a field is not requested by the slot.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownCredential is returned when a credential is not listed for the slot.
	ErrUnknownCredential = errors.New("credential is not listed for the slot")
	// ErrUnknownOptionGroup is returned when slot ids do not match any option group of the set.
	ErrUnknownOptionGroup = errors.New("unknown option group")
	// ErrNotReady is returned when serializing a selection that does not validate.
	ErrNotReady = errors.New("selection is not ready to submit")
)

// Field is a requested claim of a slot. Paths maps a credential id to the claim path on that credential.
type Field struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Required bool              `json:"required"`
	Paths    map[string]string `json:"paths"`
}

// PathFor returns the field's claim path on the credential.
func (f *Field) PathFor(credentialID string) (string, bool) {
	p, ok := f.Paths[credentialID]

	return p, ok
}

// Slot is one credential shape requested by the verifier: a v1 requested credential or a v2 credential query.
type Slot struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Multiple bool     `json:"multiple,omitempty"`
	Resolved bool     `json:"resolved"`
	Fields   []*Field `json:"fields"`
	// CandidateCredentialIDs are the applicable credentials listed by the verifier, in preference order.
	CandidateCredentialIDs []string `json:"candidateCredentialIds"`
	// ApplicableCredentialIDs are the candidates that were accepted at normalization time.
	ApplicableCredentialIDs []string `json:"applicableCredentialIds"`
	// InapplicableCredentialIDs nearly match the request (v1 only).
	InapplicableCredentialIDs []string `json:"inapplicableCredentialIds,omitempty"`
}

// Field returns the field with the given id or nil.
func (s *Slot) Field(id string) *Field {
	for _, f := range s.Fields {
		if f.ID == id {
			return f
		}
	}

	return nil
}

// RequiredFieldIDs returns the ids of fields that are always disclosed.
func (s *Slot) RequiredFieldIDs() []string {
	var ids []string

	for _, f := range s.Fields {
		if f.Required {
			ids = append(ids, f.ID)
		}
	}

	return ids
}

// AllFieldIDs returns the ids of every requested field.
func (s *Slot) AllFieldIDs() []string {
	ids := make([]string, len(s.Fields))

	for i, f := range s.Fields {
		ids[i] = f.ID
	}

	return ids
}

// IsApplicable reports whether the credential is listed by the verifier and was accepted.
func (s *Slot) IsApplicable(credentialID string) bool {
	return slices.Contains(s.ApplicableCredentialIDs, credentialID)
}

// IsCandidate reports whether the credential may be referenced by a selection of this slot.
func (s *Slot) IsCandidate(credentialID string) bool {
	return slices.Contains(s.CandidateCredentialIDs, credentialID) ||
		slices.Contains(s.InapplicableCredentialIDs, credentialID)
}

// availablePaths returns the paths of the slot fields present on the credential in field order.
func (s *Slot) availablePaths(credentialID string) []string {
	var paths []string

	for _, f := range s.Fields {
		if p, ok := f.PathFor(credentialID); ok {
			paths = append(paths, p)
		}
	}

	return paths
}

// requiredPaths returns the paths of required fields present on the credential.
func (s *Slot) requiredPaths(credentialID string) []string {
	var paths []string

	for _, f := range s.Fields {
		if !f.Required {
			continue
		}

		if p, ok := f.PathFor(credentialID); ok {
			paths = append(paths, p)
		}
	}

	return paths
}

// fieldByPath returns the field mapped to the path on the credential.
func (s *Slot) fieldByPath(credentialID, path string) *Field {
	for _, f := range s.Fields {
		if p, ok := f.PathFor(credentialID); ok && p == path {
			return f
		}
	}

	return nil
}

// OptionGroup lists the slots that jointly satisfy a set.
type OptionGroup struct {
	Index   int      `json:"index"`
	SlotIDs []string `json:"slotIds"`
	Valid   bool     `json:"valid"`
}

// matches reports whether the option group consists of exactly the given slot ids.
func (o *OptionGroup) matches(slotIDs []string) bool {
	if len(o.SlotIDs) != len(slotIDs) {
		return false
	}

	for _, id := range slotIDs {
		if !slices.Contains(o.SlotIDs, id) {
			return false
		}
	}

	return true
}

// Set is a requirement set. v1 request groups become required sets with a single option group.
type Set struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	Required bool           `json:"required"`
	Options  []*OptionGroup `json:"options"`
	// Valid is false when no option group of the set can be satisfied.
	Valid bool `json:"valid"`
}

// Option returns the option group made of the given slot ids, in any order.
func (s *Set) Option(slotIDs []string) *OptionGroup {
	for _, o := range s.Options {
		if o.matches(slotIDs) {
			return o
		}
	}

	return nil
}

// simple reports whether the set leaves no choice to the holder.
func (s *Set) simple() bool {
	return s.Required && len(s.Options) == 1
}

// Graph is the protocol independent requirement graph of a verifier request.
type Graph struct {
	Version     presentation.Version `json:"version"`
	Sets        []*Set               `json:"sets"`
	slots       map[string]*Slot
	slotOrder   []string
	credentials map[string]*presentation.Credential
}

// Slot returns the slot with the given id or nil.
func (g *Graph) Slot(id string) *Slot {
	return g.slots[id]
}

// Slots returns every slot in request order.
func (g *Graph) Slots() []*Slot {
	slots := make([]*Slot, len(g.slotOrder))

	for i, id := range g.slotOrder {
		slots[i] = g.slots[id]
	}

	return slots
}

// Set returns the set with the given id or nil.
func (g *Graph) Set(id string) *Set {
	for _, s := range g.Sets {
		if s.ID == id {
			return s
		}
	}

	return nil
}

// Credential returns the normalized credential record.
func (g *Graph) Credential(id string) *presentation.Credential {
	return g.credentials[id]
}

// CredentialIDs returns the ids of every credential referenced by a slot.
func (g *Graph) CredentialIDs() []string {
	var ids []string

	for _, id := range g.slotOrder {
		slot := g.slots[id]

		for _, c := range append(slices.Clone(slot.CandidateCredentialIDs), slot.InapplicableCredentialIDs...) {
			if !slices.Contains(ids, c) {
				ids = append(ids, c)
			}
		}
	}

	return ids
}

// SimpleSets returns the required sets with a single option group, rendered without a choice.
func (g *Graph) SimpleSets() []*Set {
	var sets []*Set

	for _, s := range g.Sets {
		if s.simple() {
			sets = append(sets, s)
		}
	}

	return sets
}

// OptionSets returns the sets that offer a choice and are either required or satisfiable.
func (g *Graph) OptionSets() []*Set {
	var sets []*Set

	for _, s := range g.Sets {
		if !s.simple() && (s.Required || s.Valid) {
			sets = append(sets, s)
		}
	}

	return sets
}

// InitiallyExpandedSlot returns the slot that is shown expanded when the request leaves no choice
// and asks for a single credential at the top.
func (g *Graph) InitiallyExpandedSlot() string {
	for _, s := range g.Sets {
		if !s.simple() || len(s.Options[0].SlotIDs) > 1 {
			return ""
		}
	}

	if len(g.Sets) == 0 || len(g.Sets[0].Options[0].SlotIDs) == 0 {
		return ""
	}

	return g.Sets[0].Options[0].SlotIDs[0]
}
