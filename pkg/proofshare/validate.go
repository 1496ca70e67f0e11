/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// ProblemKind names a condition that blocks submission.
type ProblemKind string

// Problems reported by Validate.
const (
	ProblemSetUnselected           ProblemKind = "set-unselected"
	ProblemOptionInvalid           ProblemKind = "option-invalid"
	ProblemOptionIncomplete        ProblemKind = "option-incomplete"
	ProblemCredentialNotApplicable ProblemKind = "credential-not-applicable"
	ProblemCredentialNotAccepted   ProblemKind = "credential-not-accepted"
	ProblemRequiredFieldMissing    ProblemKind = "required-field-missing"
	ProblemNothingDisclosed        ProblemKind = "nothing-disclosed"
)

// Problem is one reason why a selection cannot be submitted.
type Problem struct {
	Kind         ProblemKind `json:"kind"`
	SetID        string      `json:"setId,omitempty"`
	SlotID       string      `json:"slotId,omitempty"`
	CredentialID string      `json:"credentialId,omitempty"`
	FieldID      string      `json:"fieldId,omitempty"`
}

func (p Problem) String() string {
	s := string(p.Kind)

	for _, kv := range [][2]string{
		{"set", p.SetID}, {"slot", p.SlotID}, {"credential", p.CredentialID}, {"field", p.FieldID},
	} {
		if kv[1] != "" {
			s += fmt.Sprintf(" %s=%s", kv[0], kv[1])
		}
	}

	return s
}

// Validate returns every problem that blocks submission of the state, in request order.
func Validate(g *Graph, st *State) []Problem {
	var problems []Problem

	disclosed := 0

	for _, set := range g.Sets {
		sel, ok := st.sets[set.ID]
		if !ok {
			if set.Required {
				problems = append(problems, Problem{Kind: ProblemSetUnselected, SetID: set.ID})
			}

			continue
		}

		if sel.option < 0 || sel.option >= len(set.Options) {
			problems = append(problems, Problem{Kind: ProblemOptionInvalid, SetID: set.ID})

			continue
		}

		opt := set.Options[sel.option]
		if !opt.Valid {
			problems = append(problems, Problem{Kind: ProblemOptionInvalid, SetID: set.ID})
		}

		for _, slotID := range opt.SlotIDs {
			entries := sel.slots[slotID]
			if len(entries) == 0 {
				problems = append(problems, Problem{Kind: ProblemOptionIncomplete, SetID: set.ID, SlotID: slotID})

				continue
			}

			slot := g.Slot(slotID)

			for _, e := range entries {
				disclosed += len(e.DisclosedPaths)
				problems = append(problems, entryProblems(g, slot, set.ID, e)...)
			}
		}
	}

	if disclosed == 0 {
		problems = append(problems, Problem{Kind: ProblemNothingDisclosed})
	}

	return problems
}

func entryProblems(g *Graph, slot *Slot, setID string, e SelectionEntry) []Problem {
	var problems []Problem

	switch {
	case !slices.Contains(slot.CandidateCredentialIDs, e.CredentialID):
		problems = append(problems, Problem{
			Kind: ProblemCredentialNotApplicable, SetID: setID, SlotID: slot.ID, CredentialID: e.CredentialID,
		})
	case !g.Credential(e.CredentialID).Accepted() || !slot.IsApplicable(e.CredentialID):
		problems = append(problems, Problem{
			Kind: ProblemCredentialNotAccepted, SetID: setID, SlotID: slot.ID, CredentialID: e.CredentialID,
		})
	}

	for _, f := range slot.Fields {
		if !f.Required {
			continue
		}

		p, ok := f.PathFor(e.CredentialID)
		if ok && !slices.Contains(e.DisclosedPaths, p) {
			problems = append(problems, Problem{
				Kind: ProblemRequiredFieldMissing, SetID: setID, SlotID: slot.ID,
				CredentialID: e.CredentialID, FieldID: f.ID,
			})
		}
	}

	return problems
}

// IsReadyToSubmit reports whether the state can be serialized and submitted. It has no side effects.
func IsReadyToSubmit(g *Graph, st *State) bool {
	return len(Validate(g, st)) == 0
}
