/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Change is the result of an edit. State is the candidate next state; the previous state is never
// modified, so a caller that declines the change simply keeps using it.
type Change struct {
	State *State `json:"state"`
	// AffectedSetCount is the number of sets whose selection the edit touches.
	AffectedSetCount int `json:"affectedSetCount"`
	// Changed is false when the edit was a no-op.
	Changed bool `json:"changed"`
}

// RequiresConfirmation reports whether the edit reaches beyond a single set and should be
// confirmed by the holder before it is committed.
func (c *Change) RequiresConfirmation() bool {
	return c.Changed && c.AffectedSetCount > 1
}

func unchanged(st *State) *Change {
	return &Change{State: st}
}

func changeOf(prev, next *State, affected int) *Change {
	if next.Equal(prev) {
		return unchanged(prev)
	}

	return &Change{State: next, AffectedSetCount: affected, Changed: true}
}

// SelectCredentials replaces the credentials chosen for a slot in every set that currently holds the
// slot. Non multiple slots only use the first id.
//
// Optional fields toggled for the previous credential are carried over when the new credential has
// them; required paths are always added. For multiple slots, retained credentials keep their entries
// and new ones are seeded from a replaced single selection or from the default disclosure.
func SelectCredentials(g *Graph, st *State, slotID string, credentialIDs ...string) (*Change, error) {
	slot := g.Slot(slotID)
	if slot == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, slotID)
	}

	if len(credentialIDs) == 0 {
		return unchanged(st), nil
	}

	for _, id := range credentialIDs {
		if !slot.IsCandidate(id) {
			return nil, fmt.Errorf("%w: credential %s, slot %s", ErrUnknownCredential, id, slotID)
		}
	}

	if !slot.Multiple {
		credentialIDs = credentialIDs[:1]
	}

	next := st
	affected := 0

	for _, set := range g.Sets {
		sel, ok := st.sets[set.ID]
		if !ok {
			continue
		}

		prev, ok := sel.slots[slotID]
		if !ok {
			continue
		}

		affected++

		next = next.withSet(set.ID, sel.withSlot(slotID, reselect(slot, prev, credentialIDs)))
	}

	return changeOf(st, next, affected), nil
}

func reselect(slot *Slot, prev []SelectionEntry, credentialIDs []string) []SelectionEntry {
	var seed *SelectionEntry

	if len(prev) == 1 && !slices.Contains(credentialIDs, prev[0].CredentialID) {
		seed = &prev[0]
	}

	entries := make([]SelectionEntry, 0, len(credentialIDs))

	for _, id := range dedupe(credentialIDs) {
		if i := slices.IndexFunc(prev, func(e SelectionEntry) bool { return e.CredentialID == id }); i >= 0 {
			entries = append(entries, SelectionEntry{
				SlotID:         slot.ID,
				CredentialID:   id,
				DisclosedPaths: canonicalPaths(slot, id, prev[i].DisclosedPaths),
			})

			continue
		}

		if seed != nil {
			entries = append(entries, SelectionEntry{
				SlotID:         slot.ID,
				CredentialID:   id,
				DisclosedPaths: canonicalPaths(slot, id, carriedPaths(slot, *seed, id)),
			})

			continue
		}

		// Same default as preselection: required paths, or every leaf path when the slot has no
		// required fields (default-open disclosure).
		entries = append(entries, SelectionEntry{
			SlotID:         slot.ID,
			CredentialID:   id,
			DisclosedPaths: canonicalPaths(slot, id, initialDisclosure(slot, id)),
		})
	}

	return entries
}

// carriedPaths maps the paths disclosed for the previous credential onto the new credential. A path
// follows its field when the field is known, otherwise it is kept only if the new credential has it.
func carriedPaths(slot *Slot, prev SelectionEntry, credentialID string) []string {
	available := slot.availablePaths(credentialID)

	var paths []string

	for _, p := range prev.DisclosedPaths {
		if f := slot.fieldByPath(prev.CredentialID, p); f != nil {
			if np, ok := f.PathFor(credentialID); ok {
				paths = append(paths, np)
			}

			continue
		}

		if slices.Contains(available, p) {
			paths = append(paths, p)
		}
	}

	return paths
}

// FieldToggle discloses or hides a non required field. An empty SetID applies the toggle to every
// set holding the slot and an empty CredentialID to every entry of the slot.
type FieldToggle struct {
	SetID        string `json:"setId,omitempty"`
	SlotID       string `json:"slotId"`
	CredentialID string `json:"credentialId,omitempty"`
	FieldID      string `json:"fieldId"`
	Selected     bool   `json:"selected"`
}

// ToggleField adds or removes the path of a non required field. Toggling a required field, or a
// field the selected credential does not carry, leaves the state unchanged.
func ToggleField(g *Graph, st *State, t FieldToggle) (*Change, error) {
	slot := g.Slot(t.SlotID)
	if slot == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, t.SlotID)
	}

	field := slot.Field(t.FieldID)
	if field == nil {
		return nil, fmt.Errorf("%w: %s in slot %s", ErrUnknownField, t.FieldID, t.SlotID)
	}

	if t.SetID != "" && g.Set(t.SetID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSet, t.SetID)
	}

	if field.Required {
		return unchanged(st), nil
	}

	next := st
	affected := 0

	for _, set := range g.Sets {
		if t.SetID != "" && set.ID != t.SetID {
			continue
		}

		sel, ok := st.sets[set.ID]
		if !ok {
			continue
		}

		prev, ok := sel.slots[t.SlotID]
		if !ok {
			continue
		}

		entries, touched := toggleEntries(slot, field, prev, t)
		if !touched {
			continue
		}

		affected++

		next = next.withSet(set.ID, sel.withSlot(t.SlotID, entries))
	}

	return changeOf(st, next, affected), nil
}

func toggleEntries(slot *Slot, field *Field, prev []SelectionEntry, t FieldToggle) ([]SelectionEntry, bool) {
	entries := make([]SelectionEntry, len(prev))
	touched := false

	for i, e := range prev {
		entries[i] = e

		if t.CredentialID != "" && e.CredentialID != t.CredentialID {
			continue
		}

		p, ok := field.PathFor(e.CredentialID)
		if !ok || slices.Contains(e.DisclosedPaths, p) == t.Selected {
			continue
		}

		paths := []string{}

		for _, v := range e.DisclosedPaths {
			if v != p {
				paths = append(paths, v)
			}
		}

		if t.Selected {
			paths = append(paths, p)
		}

		entries[i].DisclosedPaths = canonicalPaths(slot, e.CredentialID, paths)
		touched = true
	}

	return entries, touched
}

// ToggleOptionGroup activates an option group of a set, or clears the set when selected is false.
// Activation builds a fresh selection for exactly the group's slots, reusing entries held by this
// set or by other sets before falling back to the default choice. Deselecting a required set and
// selecting an option group that cannot be satisfied are no-ops.
func ToggleOptionGroup(g *Graph, st *State, setID string, slotIDs []string, selected bool) (*Change, error) {
	set := g.Set(setID)
	if set == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSet, setID)
	}

	if !selected {
		if set.Required || !st.IsSetSelected(setID) {
			return unchanged(st), nil
		}

		return changeOf(st, st.withSet(setID, nil), 1), nil
	}

	opt := set.Option(slotIDs)
	if opt == nil {
		return nil, fmt.Errorf("%w: %v in set %s", ErrUnknownOptionGroup, slotIDs, setID)
	}

	if !opt.Valid {
		return unchanged(st), nil
	}

	if active, ok := st.ActiveOption(setID); ok && active == opt.Index {
		return unchanged(st), nil
	}

	return changeOf(st, st.withSet(setID, optionSelection(g, st, set, opt)), 1), nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	return out
}
