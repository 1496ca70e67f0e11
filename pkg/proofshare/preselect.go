/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"golang.org/x/exp/slices"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
)

// Preselect computes the default selection for a requirement graph. It is deterministic: the same
// graph always yields an equal state.
//
// Required sets with a single option group are selected outright. Other required sets are only
// selected when one of their option groups can be carried over completely from slots already
// selected by another set. Optional sets start unselected.
func Preselect(g *Graph) *State {
	st := NewState()

	for _, set := range g.Sets {
		if set.simple() {
			st = st.withSet(set.ID, optionSelection(g, st, set, set.Options[0]))
		}
	}

	for _, set := range g.Sets {
		if !set.Required || st.IsSetSelected(set.ID) {
			continue
		}

		for _, opt := range set.Options {
			if !opt.Valid || !carriable(g, st, set.ID, opt) {
				continue
			}

			st = st.withSet(set.ID, optionSelection(g, st, set, opt))

			break
		}
	}

	return st
}

// carriable reports whether every slot of the option group is already selected by another set.
func carriable(g *Graph, st *State, setID string, opt *OptionGroup) bool {
	for _, slotID := range opt.SlotIDs {
		if _, ok := carriedEntries(g, st, setID, slotID); !ok {
			return false
		}
	}

	return len(opt.SlotIDs) > 0
}

// optionSelection builds a selection of exactly the slots of the option group. Each slot keeps the
// entries it already has in this set, else takes the entries another set holds for it, else falls
// back to the default choice.
func optionSelection(g *Graph, st *State, set *Set, opt *OptionGroup) *setSelection {
	sel := &setSelection{option: opt.Index, slots: map[string][]SelectionEntry{}}

	for _, slotID := range opt.SlotIDs {
		if prev, ok := st.sets[set.ID]; ok {
			if entries := prev.slots[slotID]; len(entries) > 0 {
				sel.slots[slotID] = entries

				continue
			}
		}

		if entries, ok := carriedEntries(g, st, set.ID, slotID); ok {
			sel.slots[slotID] = entries

			continue
		}

		slot := g.Slot(slotID)
		if slot == nil {
			continue
		}

		if entry, ok := defaultEntry(g, slot); ok {
			sel.slots[slotID] = []SelectionEntry{entry}
		}
	}

	return sel
}

// carriedEntries returns the entries another set holds for the slot, visiting sets in request order.
func carriedEntries(g *Graph, st *State, exceptSetID, slotID string) ([]SelectionEntry, bool) {
	for _, set := range g.Sets {
		if set.ID == exceptSetID {
			continue
		}

		sel, ok := st.sets[set.ID]
		if !ok {
			continue
		}

		if entries := sel.slots[slotID]; len(entries) > 0 {
			return entries, true
		}
	}

	return nil, false
}

// defaultEntry selects the preferred credential of the slot with its default disclosure.
func defaultEntry(g *Graph, slot *Slot) (SelectionEntry, bool) {
	credentialID := pickCredential(g, slot)
	if credentialID == "" {
		return SelectionEntry{}, false
	}

	return SelectionEntry{
		SlotID:         slot.ID,
		CredentialID:   credentialID,
		DisclosedPaths: canonicalPaths(slot, credentialID, initialDisclosure(slot, credentialID)),
	}, true
}

// pickCredential prefers an applicable accepted credential, then any applicable credential, then a
// listed inapplicable one (accepted first).
func pickCredential(g *Graph, slot *Slot) string {
	if len(slot.ApplicableCredentialIDs) > 0 {
		return slot.ApplicableCredentialIDs[0]
	}

	if len(slot.CandidateCredentialIDs) > 0 {
		return slot.CandidateCredentialIDs[0]
	}

	for _, id := range slot.InapplicableCredentialIDs {
		if g.Credential(id).Accepted() {
			return id
		}
	}

	if len(slot.InapplicableCredentialIDs) > 0 {
		return slot.InapplicableCredentialIDs[0]
	}

	return ""
}

// initialDisclosure returns the required paths present on the credential. Slots that mandate nothing
// disclose every field present on the credential, keeping only the most deeply nested paths.
func initialDisclosure(slot *Slot, credentialID string) []string {
	if len(slot.RequiredFieldIDs()) > 0 {
		return slot.requiredPaths(credentialID)
	}

	return leafPaths(slot.availablePaths(credentialID))
}

// leafPaths drops every path that is the parent of another path in the list.
func leafPaths(paths []string) []string {
	var out []string

	for _, p := range paths {
		parent := false

		for _, other := range paths {
			if presentation.IsParentPath(p, other) {
				parent = true

				break
			}
		}

		if !parent {
			out = append(out, p)
		}
	}

	return out
}

// canonicalPaths orders paths by slot field order, drops duplicates and paths that are not available
// on the credential, and adds the required paths.
func canonicalPaths(slot *Slot, credentialID string, paths []string) []string {
	out := []string{}

	for _, f := range slot.Fields {
		p, ok := f.PathFor(credentialID)
		if !ok || slices.Contains(out, p) {
			continue
		}

		if f.Required || slices.Contains(paths, p) {
			out = append(out, p)
		}
	}

	return out
}
