/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func readTestData(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	return data
}

func TestParseDefinitionV1(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		def, err := ParseDefinitionV1(readTestData(t, "definition_v1.json"))
		require.NoError(t, err)
		require.Len(t, def.RequestGroups, 1)

		rc := def.RequestGroups[0].RequestedCredentials[0]
		require.Equal(t, "input_0", rc.ID)
		require.Equal(t, []string{"cred-id-1", "cred-id-2"}, rc.ApplicableCredentials)
		require.Equal(t, "ssn", rc.Fields[0].KeyMap["cred-id-1"])
		require.True(t, rc.Fields[0].Required)
		require.True(t, def.Credentials[0].Accepted())
	})

	t.Run("missing request groups", func(t *testing.T) {
		_, err := ParseDefinitionV1([]byte(`{"credentials":[]}`))
		require.Error(t, err)
		require.Contains(t, err.Error(), "v1 presentation definition is not valid")
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseDefinitionV1([]byte(`{`))
		require.Error(t, err)
	})
}

func TestParseDefinitionV2(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		def, err := ParseDefinitionV2(readTestData(t, "definition_v2.json"))
		require.NoError(t, err)
		require.Len(t, def.CredentialSets, 2)
		require.True(t, def.CredentialQueries["Q1"].Resolved())
		require.False(t, def.CredentialQueries["Q2"].Resolved())
		require.Equal(t, "NO_CREDENTIAL", def.CredentialQueries["Q2"].FailureHint.Reason)

		cred := def.CredentialQueries["Q1"].ApplicableCredentials[0]
		require.Equal(t, []string{"name", "birthdate", "address", "address/street", "address/city"}, cred.Paths())
		require.True(t, cred.HasPath("address/city"))
		require.False(t, cred.HasPath("address/zip"))
		require.Equal(t, "Zurich", cred.Claim("address/city").Value)
	})

	t.Run("option is not an array", func(t *testing.T) {
		_, err := ParseDefinitionV2([]byte(`{"credentialQueries":{},"credentialSets":[{"options":["Q1"]}]}`))
		require.Error(t, err)
	})
}

func TestDecodeDefinition(t *testing.T) {
	t.Run("v1 from generic map", func(t *testing.T) {
		var raw map[string]interface{}
		require.NoError(t, json.Unmarshal(readTestData(t, "definition_v1.json"), &raw))

		def, err := DecodeDefinitionV1(raw)
		require.NoError(t, err)
		require.Equal(t, "group-1", def.RequestGroups[0].ID)
		require.Equal(t, 2024, def.Credentials[0].IssuanceDate.Year())
		require.Equal(t, StateAccepted, def.Credentials[0].State)
	})

	t.Run("v2 from generic map", func(t *testing.T) {
		var raw map[string]interface{}
		require.NoError(t, json.Unmarshal(readTestData(t, "definition_v2.json"), &raw))

		def, err := DecodeDefinitionV2(raw)
		require.NoError(t, err)
		require.Equal(t, [][]string{{"Q1"}, {"Q2"}}, def.CredentialSets[1].Options)
		require.Len(t, def.CredentialQueries["Q1"].ApplicableCredentials[0].Claims[2].Claims, 2)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := DecodeDefinitionV2(map[string]interface{}{
			"credentialQueries": map[string]interface{}{
				"Q1": map[string]interface{}{"applicableCredentials": []interface{}{
					map[string]interface{}{"id": "c", "issuanceDate": "yesterday"},
				}},
			},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "decode v2 presentation definition")
	})
}

func TestCandidateCredentialIDs(t *testing.T) {
	v1, err := ParseDefinitionV1(readTestData(t, "definition_v1.json"))
	require.NoError(t, err)
	require.Equal(t, []string{"cred-id-1", "cred-id-2"}, CandidateCredentialIDsV1(v1))

	v2, err := ParseDefinitionV2(readTestData(t, "definition_v2.json"))
	require.NoError(t, err)
	require.Equal(t, []string{"cred-a"}, CandidateCredentialIDsV2(v2))
}

func TestCandidateCredentialIDsNullEntries(t *testing.T) {
	v1 := &DefinitionV1{}
	require.NoError(t, json.Unmarshal([]byte(`{"requestGroups":[null,{"id":"g","requestedCredentials":[null,
		{"id":"r","applicableCredentials":["cred-1"]}]}]}`), v1))
	require.Equal(t, []string{"cred-1"}, CandidateCredentialIDsV1(v1))

	v2 := &DefinitionV2{}
	require.NoError(t, json.Unmarshal([]byte(`{"credentialQueries":{"Q1":{"applicableCredentials":[null,{"id":"c"}]}},
		"credentialSets":[null,{"options":[["Q1"]]}]}`), v2))
	require.Equal(t, []string{"c"}, CandidateCredentialIDsV2(v2))

	_, err := ParseDefinitionV2([]byte(`{"credentialQueries":{},"credentialSets":[null]}`))
	require.Error(t, err)
}

func TestPathHelpers(t *testing.T) {
	require.True(t, IsParentPath("address", "address/street"))
	require.False(t, IsParentPath("address", "addresses/street"))
	require.False(t, IsParentPath("address", "address"))
	require.Equal(t, "street", LastSegment("address/street"))
	require.Equal(t, "name", LastSegment("name"))
}
