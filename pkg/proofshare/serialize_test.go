/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
)

func TestSerializeUnion(t *testing.T) {
	g := mustNormalize(t, Definition{V2: twoSetsDefinition()})
	must := mustChange(t)

	st := Preselect(g)
	st = must(ToggleField(g, st, FieldToggle{SetID: "0", SlotID: "Q1", FieldID: "email", Selected: true})).State
	st = must(ToggleField(g, st, FieldToggle{SetID: "1", SlotID: "Q1", FieldID: "phone", Selected: true})).State

	payload, err := Serialize(g, st)
	require.NoError(t, err)
	require.Equal(t, presentation.V2, payload.Version)
	require.Equal(t, map[string][]*SubmissionEntry{
		"Q1": {{CredentialID: "credA", DisclosedPaths: []string{"name", "email", "phone"}}},
	}, payload.Credentials)

	wire := WireV2(g, payload)
	require.Equal(t, map[string][]*presentation.SubmitV2CredentialRequest{
		"Q1": {{CredentialID: "credA", UserSelections: []string{"email", "phone"}}},
	}, wire)

	// serializing does not touch the state
	require.Equal(t, []string{"name", "email"}, st.Entries("0", "Q1")[0].DisclosedPaths)
}

func TestSerializeNotReady(t *testing.T) {
	g := mustNormalize(t, Definition{V2: optionSetsDefinition()})

	_, err := Serialize(g, Preselect(g))
	require.ErrorIs(t, err, ErrNotReady)
	require.Contains(t, err.Error(), "set-unselected set=0")
}

func TestValidate(t *testing.T) {
	t.Run("nothing disclosed", func(t *testing.T) {
		def := &presentation.DefinitionV1{
			RequestGroups: []*presentation.RequestGroup{{
				ID: "g",
				RequestedCredentials: []*presentation.RequestedCredential{{
					ID:                    "input_0",
					Fields:                []*presentation.Field{{ID: "f", KeyMap: map[string]string{"other": "x"}}},
					ApplicableCredentials: []string{"cred-1"},
				}},
			}},
		}

		g := mustNormalize(t, Definition{V1: def},
			credential("cred-1", presentation.StateAccepted, date(2024, time.January)))
		st := Preselect(g)

		require.Equal(t, []Problem{{Kind: ProblemNothingDisclosed}}, Validate(g, st))
		require.False(t, IsReadyToSubmit(g, st))
	})

	t.Run("selected optional set must be complete", func(t *testing.T) {
		def := optionSetsDefinition()
		def.CredentialSets[1].Options = [][]string{{"Q1", "Q3"}}
		def.CredentialQueries["Q3"] = &presentation.CredentialQuery{ApplicableCredentials: []*presentation.Credential{
			credential("credC", presentation.StateRevoked, date(2020, time.January), claim("iban", "CH00", true, false)),
		}}

		g := mustNormalize(t, Definition{V2: def})
		must := mustChange(t)

		st := must(ToggleOptionGroup(g, Preselect(g), "0", []string{"Q1"}, true)).State
		require.True(t, IsReadyToSubmit(g, st))

		st = must(ToggleOptionGroup(g, st, "1", []string{"Q3", "Q1"}, true)).State
		require.Equal(t, []Problem{{
			Kind: ProblemCredentialNotAccepted, SetID: "1", SlotID: "Q3", CredentialID: "credC",
		}}, Validate(g, st))
	})

	t.Run("problem string", func(t *testing.T) {
		p := Problem{Kind: ProblemRequiredFieldMissing, SetID: "0", SlotID: "Q1", FieldID: "name"}
		require.Equal(t, "required-field-missing set=0 slot=Q1 field=name", p.String())
	})
}

func TestPreview(t *testing.T) {
	def := twoSetsDefinition()
	def.CredentialQueries["Q1"].ApplicableCredentials[1].Claims = append(
		def.CredentialQueries["Q1"].ApplicableCredentials[1].Claims,
		claim("address", nil, false, true,
			claim("address/city", "Zurich", false, true)))

	g := mustNormalize(t, Definition{V2: def})
	must := mustChange(t)

	st := must(ToggleField(g, Preselect(g), FieldToggle{SlotID: "Q1", FieldID: "address/city", Selected: true})).State

	payload, err := Serialize(g, st)
	require.NoError(t, err)

	claims, err := Preview(g, payload)
	require.NoError(t, err)
	require.Equal(t, []*DisclosedClaim{
		{SlotID: "Q1", CredentialID: "credA", Path: "name", Name: "name", Value: "Alice"},
		{SlotID: "Q1", CredentialID: "credA", Path: "address/city", Name: "city", Value: "Zurich"},
	}, claims)
}

func TestStateJSON(t *testing.T) {
	g := mustNormalize(t, Definition{V2: twoSetsDefinition()})
	st := Preselect(g)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"0": {"option": 0, "slots": {"Q1": [{"slotId": "Q1", "credentialId": "credA", "disclosedPaths": ["name"]}]}},
		"1": {"option": 0, "slots": {"Q1": [{"slotId": "Q1", "credentialId": "credA", "disclosedPaths": ["name"]}]}}
	}`, string(data))

	decoded := &State{}
	require.NoError(t, json.Unmarshal(data, decoded))
	require.True(t, decoded.Equal(st))
	require.Equal(t, []string{"0", "1"}, decoded.SelectedSetIDs())
	require.Equal(t, []string{"Q1"}, decoded.SelectedSlotIDs("0"))
}
