/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
)

func TestSsnScenario(t *testing.T) {
	def, credentials := ssnDefinition()
	g := mustNormalize(t, Definition{V1: def}, credentials...)
	must := mustChange(t)

	st := Preselect(g)
	require.Equal(t, []string{"ssn"}, st.Entries("group-1", "input_0")[0].DisclosedPaths)

	c := must(ToggleField(g, st, FieldToggle{SlotID: "input_0", FieldID: "field-address", Selected: true}))
	require.True(t, c.Changed)
	require.Equal(t, 1, c.AffectedSetCount)
	require.False(t, c.RequiresConfirmation())

	st = c.State
	require.Equal(t, []string{"ssn", "address"}, st.Entries("group-1", "input_0")[0].DisclosedPaths)
	require.True(t, IsReadyToSubmit(g, st))

	payload, err := Serialize(g, st)
	require.NoError(t, err)
	require.Equal(t, presentation.V1, payload.Version)
	require.Equal(t, map[string][]*SubmissionEntry{
		"input_0": {{CredentialID: "cred-1", DisclosedPaths: []string{"ssn", "address"}}},
	}, payload.Credentials)

	wire := WireV1(g, payload)
	require.Equal(t, &presentation.SubmitCredentialRequest{
		CredentialID: "cred-1",
		SubmitClaims: []string{"field-ssn", "field-address"},
	}, wire["input_0"])
}

func TestSelectCredentialsAcrossSets(t *testing.T) {
	g := mustNormalize(t, Definition{V2: twoSetsDefinition()})
	must := mustChange(t)
	st := Preselect(g)

	c := must(SelectCredentials(g, st, "Q1", "credB"))
	require.Equal(t, 2, c.AffectedSetCount)
	require.True(t, c.RequiresConfirmation())

	t.Run("confirm", func(t *testing.T) {
		for _, setID := range []string{"0", "1"} {
			entries := c.State.Entries(setID, "Q1")
			require.Len(t, entries, 1)
			require.Equal(t, "credB", entries[0].CredentialID)
		}
	})

	t.Run("decline", func(t *testing.T) {
		for _, setID := range []string{"0", "1"} {
			require.Equal(t, "credA", st.Entries(setID, "Q1")[0].CredentialID)
		}
	})

	t.Run("selecting the current credential is a no-op", func(t *testing.T) {
		same := must(SelectCredentials(g, st, "Q1", "credA"))
		require.False(t, same.Changed)
		require.Zero(t, same.AffectedSetCount)
		require.Same(t, st, same.State)
	})

	t.Run("empty selection is a no-op", func(t *testing.T) {
		same := must(SelectCredentials(g, st, "Q1"))
		require.False(t, same.Changed)
	})

	t.Run("unknown slot or credential", func(t *testing.T) {
		_, err := SelectCredentials(g, st, "nope", "credA")
		require.ErrorIs(t, err, ErrUnknownSlot)

		_, err = SelectCredentials(g, st, "Q1", "credZ")
		require.ErrorIs(t, err, ErrUnknownCredential)
	})

	t.Run("slot not selected anywhere", func(t *testing.T) {
		same := must(SelectCredentials(g, NewState(), "Q1", "credB"))
		require.False(t, same.Changed)
		require.Zero(t, same.AffectedSetCount)
	})
}

func TestCredentialSwitchDropsMissingPaths(t *testing.T) {
	g := mustNormalize(t, Definition{V2: twoSetsDefinition()})
	must := mustChange(t)
	st := Preselect(g)

	for _, field := range []string{"email", "phone"} {
		st = must(ToggleField(g, st, FieldToggle{SlotID: "Q1", FieldID: field, Selected: true})).State
	}

	require.Equal(t, []string{"name", "email", "phone"}, st.Entries("0", "Q1")[0].DisclosedPaths)

	st = must(SelectCredentials(g, st, "Q1", "credB")).State

	credB := g.Credential("credB")

	for _, setID := range []string{"0", "1"} {
		entry := st.Entries(setID, "Q1")[0]
		require.Equal(t, []string{"name", "email"}, entry.DisclosedPaths)

		for _, p := range entry.DisclosedPaths {
			require.True(t, credB.HasPath(p))
		}
	}

	// phone is not restored when switching back; it was dropped, not hidden.
	st = must(SelectCredentials(g, st, "Q1", "credA")).State
	require.Equal(t, []string{"name", "email"}, st.Entries("0", "Q1")[0].DisclosedPaths)
}

func TestCredentialSwitchFollowsFieldKeyMap(t *testing.T) {
	def, credentials := ssnDefinition()
	rc := def.RequestGroups[0].RequestedCredentials[0]
	rc.ApplicableCredentials = []string{"cred-1", "cred-2"}
	rc.Fields[0].KeyMap["cred-2"] = "identity/ssn"
	rc.Fields[1].KeyMap["cred-2"] = "identity/home"

	credentials = append(credentials, credential("cred-2", presentation.StateAccepted, date(2024, time.June),
		claim("identity", nil, false, false,
			claim("identity/ssn", "987-65-4321", false, false),
			claim("identity/home", "Side street 2", false, false))))

	g := mustNormalize(t, Definition{V1: def}, credentials...)
	must := mustChange(t)

	st := must(ToggleField(g, Preselect(g), FieldToggle{
		SetID: "group-1", SlotID: "input_0", FieldID: "field-address", Selected: true,
	})).State

	st = must(SelectCredentials(g, st, "input_0", "cred-2")).State
	require.Equal(t, []string{"identity/ssn", "identity/home"}, st.Entries("group-1", "input_0")[0].DisclosedPaths)
	require.True(t, IsReadyToSubmit(g, st))
}

func TestSelectCredentialsMultiple(t *testing.T) {
	def := &presentation.DefinitionV2{
		CredentialQueries: map[string]*presentation.CredentialQuery{
			"M": {Multiple: true, ApplicableCredentials: []*presentation.Credential{
				credential("m1", presentation.StateAccepted, date(2024, time.March),
					claim("family_name", "Doe", true, false), claim("category", "B", false, true)),
				credential("m2", presentation.StateAccepted, date(2023, time.March),
					claim("family_name", "Doe", true, false), claim("category", "A", false, true)),
				credential("m3", presentation.StateAccepted, date(2022, time.March),
					claim("family_name", "Doe", true, false)),
			}},
		},
		CredentialSets: []*presentation.CredentialSet{{Required: true, Options: [][]string{{"M"}}}},
	}

	g := mustNormalize(t, Definition{V2: def})
	must := mustChange(t)

	st := Preselect(g)
	require.Len(t, st.Entries("0", "M"), 1)

	st = must(ToggleField(g, st, FieldToggle{SlotID: "M", FieldID: "category", Selected: true})).State
	require.Equal(t, []string{"family_name", "category"}, st.Entries("0", "M")[0].DisclosedPaths)

	t.Run("new ids are seeded from a replaced single selection", func(t *testing.T) {
		next := must(SelectCredentials(g, st, "M", "m2", "m3")).State

		require.Equal(t, []SelectionEntry{
			{SlotID: "M", CredentialID: "m2", DisclosedPaths: []string{"family_name", "category"}},
			{SlotID: "M", CredentialID: "m3", DisclosedPaths: []string{"family_name"}},
		}, next.Entries("0", "M"))
	})

	t.Run("retained ids keep their entries", func(t *testing.T) {
		next := must(SelectCredentials(g, st, "M", "m1", "m2")).State

		require.Equal(t, []SelectionEntry{
			{SlotID: "M", CredentialID: "m1", DisclosedPaths: []string{"family_name", "category"}},
			{SlotID: "M", CredentialID: "m2", DisclosedPaths: []string{"family_name"}},
		}, next.Entries("0", "M"))

		next = must(ToggleField(g, next, FieldToggle{
			SlotID: "M", CredentialID: "m2", FieldID: "category", Selected: true,
		})).State
		next = must(SelectCredentials(g, next, "M", "m2")).State

		require.Equal(t, []SelectionEntry{
			{SlotID: "M", CredentialID: "m2", DisclosedPaths: []string{"family_name", "category"}},
		}, next.Entries("0", "M"))
	})
}

func TestToggleField(t *testing.T) {
	g := mustNormalize(t, Definition{V2: twoSetsDefinition()})
	must := mustChange(t)
	st := Preselect(g)

	t.Run("required fields are never removable", func(t *testing.T) {
		cur := st

		for i := 0; i < 16; i++ {
			for _, field := range []string{"name", "email", "phone"} {
				cur = must(ToggleField(g, cur, FieldToggle{SlotID: "Q1", FieldID: field, Selected: (i+len(field))%2 == 0})).State

				for _, setID := range []string{"0", "1"} {
					require.Contains(t, cur.Entries(setID, "Q1")[0].DisclosedPaths, "name")
				}
			}
		}
	})

	t.Run("required field toggle is a no-op", func(t *testing.T) {
		c := must(ToggleField(g, st, FieldToggle{SlotID: "Q1", FieldID: "name", Selected: false}))
		require.False(t, c.Changed)
		require.Same(t, st, c.State)
	})

	t.Run("scoped to one set", func(t *testing.T) {
		c := must(ToggleField(g, st, FieldToggle{SetID: "1", SlotID: "Q1", FieldID: "email", Selected: true}))
		require.Equal(t, 1, c.AffectedSetCount)
		require.Equal(t, []string{"name"}, c.State.Entries("0", "Q1")[0].DisclosedPaths)
		require.Equal(t, []string{"name", "email"}, c.State.Entries("1", "Q1")[0].DisclosedPaths)
	})

	t.Run("all sets", func(t *testing.T) {
		c := must(ToggleField(g, st, FieldToggle{SlotID: "Q1", FieldID: "email", Selected: true}))
		require.Equal(t, 2, c.AffectedSetCount)
		require.True(t, c.RequiresConfirmation())
	})

	t.Run("field missing on the selected credential", func(t *testing.T) {
		onB := must(SelectCredentials(g, st, "Q1", "credB")).State

		c := must(ToggleField(g, onB, FieldToggle{SlotID: "Q1", FieldID: "phone", Selected: true}))
		require.False(t, c.Changed)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ToggleField(g, st, FieldToggle{SlotID: "nope", FieldID: "email"})
		require.ErrorIs(t, err, ErrUnknownSlot)

		_, err = ToggleField(g, st, FieldToggle{SlotID: "Q1", FieldID: "nope"})
		require.ErrorIs(t, err, ErrUnknownField)

		_, err = ToggleField(g, st, FieldToggle{SetID: "9", SlotID: "Q1", FieldID: "email"})
		require.ErrorIs(t, err, ErrUnknownSet)
	})
}

func TestToggleOptionGroup(t *testing.T) {
	g := mustNormalize(t, Definition{V2: optionSetsDefinition()})
	must := mustChange(t)
	st := Preselect(g)

	t.Run("selecting an option group of a required set", func(t *testing.T) {
		c := must(ToggleOptionGroup(g, st, "0", []string{"Q1"}, true))
		require.True(t, c.Changed)
		require.Equal(t, 1, c.AffectedSetCount)
		require.Equal(t, "credA", c.State.Entries("0", "Q1")[0].CredentialID)
		require.True(t, IsReadyToSubmit(g, c.State))

		again := must(ToggleOptionGroup(g, c.State, "0", []string{"Q1"}, true))
		require.False(t, again.Changed)
	})

	t.Run("invalid option group cannot be selected", func(t *testing.T) {
		c := must(ToggleOptionGroup(g, st, "0", []string{"Q2"}, true))
		require.False(t, c.Changed)
		require.False(t, c.State.IsSetSelected("0"))
	})

	t.Run("required set cannot be deselected", func(t *testing.T) {
		selected := must(ToggleOptionGroup(g, st, "0", []string{"Q1"}, true)).State

		c := must(ToggleOptionGroup(g, selected, "0", nil, false))
		require.False(t, c.Changed)
		require.True(t, c.State.IsSetSelected("0"))
	})

	t.Run("optional set carries over and clears", func(t *testing.T) {
		cur := must(ToggleOptionGroup(g, st, "0", []string{"Q1"}, true)).State
		cur = must(SelectCredentials(g, cur, "Q1", "credB")).State
		cur = must(ToggleField(g, cur, FieldToggle{SlotID: "Q1", FieldID: "email", Selected: true})).State

		c := must(ToggleOptionGroup(g, cur, "1", []string{"Q1"}, true))
		require.True(t, c.Changed)
		require.Equal(t, cur.Entries("0", "Q1"), c.State.Entries("1", "Q1"))

		cleared := must(ToggleOptionGroup(g, c.State, "1", nil, false))
		require.True(t, cleared.Changed)
		require.False(t, cleared.State.IsSetSelected("1"))
		require.True(t, cleared.State.Equal(cur))
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ToggleOptionGroup(g, st, "9", []string{"Q1"}, true)
		require.ErrorIs(t, err, ErrUnknownSet)

		_, err = ToggleOptionGroup(g, st, "0", []string{"Q1", "Q2"}, true)
		require.ErrorIs(t, err, ErrUnknownOptionGroup)
	})
}
