/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"encoding/json"
	"reflect"
	"sort"

	"golang.org/x/exp/slices"
)

// SelectionEntry is the holder's choice of one credential for a slot.
type SelectionEntry struct {
	SlotID         string   `json:"slotId"`
	CredentialID   string   `json:"credentialId"`
	DisclosedPaths []string `json:"disclosedPaths"`
}

func (e SelectionEntry) clone() SelectionEntry {
	e.DisclosedPaths = slices.Clone(e.DisclosedPaths)

	return e
}

// setSelection is the active option group of a set and the entries of its slots.
// It is never modified once it is part of a State.
type setSelection struct {
	option int
	slots  map[string][]SelectionEntry
}

// State is an immutable selection over a requirement graph. Every edit returns a new State sharing
// the untouched set selections with its predecessor.
type State struct {
	sets map[string]*setSelection
}

// NewState returns an empty selection.
func NewState() *State {
	return &State{sets: map[string]*setSelection{}}
}

// IsSetSelected reports whether an option group of the set is active.
func (s *State) IsSetSelected(setID string) bool {
	_, ok := s.sets[setID]

	return ok
}

// ActiveOption returns the index of the active option group of the set.
func (s *State) ActiveOption(setID string) (int, bool) {
	sel, ok := s.sets[setID]
	if !ok {
		return 0, false
	}

	return sel.option, true
}

// Entries returns a copy of the entries selected for the slot within the set.
func (s *State) Entries(setID, slotID string) []SelectionEntry {
	sel, ok := s.sets[setID]
	if !ok {
		return nil
	}

	entries := sel.slots[slotID]
	if entries == nil {
		return nil
	}

	out := make([]SelectionEntry, len(entries))
	for i, e := range entries {
		out[i] = e.clone()
	}

	return out
}

// SelectedSlotIDs returns the ids of slots holding entries in the set, sorted.
func (s *State) SelectedSlotIDs(setID string) []string {
	sel, ok := s.sets[setID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(sel.slots))
	for id := range sel.slots {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// SelectedSetIDs returns the ids of sets with an active option group, sorted.
func (s *State) SelectedSetIDs() []string {
	ids := make([]string, 0, len(s.sets))
	for id := range s.sets {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Equal reports whether both states hold the same selection.
func (s *State) Equal(other *State) bool {
	if s == nil || other == nil {
		return s == other
	}

	if len(s.sets) != len(other.sets) {
		return false
	}

	for id, sel := range s.sets {
		o, ok := other.sets[id]
		if !ok || !sel.equal(o) {
			return false
		}
	}

	return true
}

func (sel *setSelection) equal(other *setSelection) bool {
	if sel == other {
		return true
	}

	if sel.option != other.option || len(sel.slots) != len(other.slots) {
		return false
	}

	for slotID, entries := range sel.slots {
		o, ok := other.slots[slotID]
		if !ok || !reflect.DeepEqual(normalizeEntries(entries), normalizeEntries(o)) {
			return false
		}
	}

	return true
}

func normalizeEntries(entries []SelectionEntry) []SelectionEntry {
	out := make([]SelectionEntry, len(entries))

	for i, e := range entries {
		out[i] = e
		if len(e.DisclosedPaths) == 0 {
			out[i].DisclosedPaths = nil
		}
	}

	return out
}

// withSet returns a copy of the state where the selection of setID is replaced; nil clears it.
func (s *State) withSet(setID string, sel *setSelection) *State {
	next := &State{sets: make(map[string]*setSelection, len(s.sets)+1)}

	for id, v := range s.sets {
		next.sets[id] = v
	}

	if sel == nil {
		delete(next.sets, setID)
	} else {
		next.sets[setID] = sel
	}

	return next
}

// withSlot returns a copy of the set selection where the entries of slotID are replaced.
func (sel *setSelection) withSlot(slotID string, entries []SelectionEntry) *setSelection {
	next := &setSelection{option: sel.option, slots: make(map[string][]SelectionEntry, len(sel.slots))}

	for id, v := range sel.slots {
		next.slots[id] = v
	}

	next.slots[slotID] = entries

	return next
}

type stateJSON map[string]setSelectionJSON

type setSelectionJSON struct {
	Option int                         `json:"option"`
	Slots  map[string][]SelectionEntry `json:"slots"`
}

// MarshalJSON encodes the state as set id -> active option and slot entries.
func (s *State) MarshalJSON() ([]byte, error) {
	out := make(stateJSON, len(s.sets))

	for id, sel := range s.sets {
		out[id] = setSelectionJSON{Option: sel.option, Slots: sel.slots}
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes a state produced by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var in stateJSON

	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	s.sets = make(map[string]*setSelection, len(in))

	for id, sel := range in {
		slots := sel.Slots
		if slots == nil {
			slots = map[string][]SelectionEntry{}
		}

		s.sets[id] = &setSelection{option: sel.Option, slots: slots}
	}

	return nil
}
