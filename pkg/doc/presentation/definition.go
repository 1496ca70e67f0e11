/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentation

// Version is the presentation request protocol version.
type Version int

const (
	// V1 requests group requested credentials into request groups.
	V1 Version = 1
	// V2 requests combine credential queries into credential sets.
	V2 Version = 2
)

// DefinitionV1 is a verifier request expressed as flat request groups.
type DefinitionV1 struct {
	RequestGroups []*RequestGroup `json:"requestGroups"`
	Credentials   []*Credential   `json:"credentials,omitempty"`
}

// RequestGroup groups requested credentials that must all be presented.
type RequestGroup struct {
	ID                   string                 `json:"id"`
	Name                 string                 `json:"name,omitempty"`
	Purpose              string                 `json:"purpose,omitempty"`
	RequestedCredentials []*RequestedCredential `json:"requestedCredentials"`
}

// RequestedCredential describes one credential shape the verifier asks for.
type RequestedCredential struct {
	ID                      string   `json:"id"`
	Name                    string   `json:"name,omitempty"`
	Purpose                 string   `json:"purpose,omitempty"`
	Fields                  []*Field `json:"fields"`
	ApplicableCredentials   []string `json:"applicableCredentials"`
	InapplicableCredentials []string `json:"inapplicableCredentials,omitempty"`
}

// Field is a requested claim. KeyMap maps a credential id to the claim path on that credential.
type Field struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Purpose  string            `json:"purpose,omitempty"`
	Required bool              `json:"required"`
	KeyMap   map[string]string `json:"keyMap"`
}

// DefinitionV2 is a verifier request expressed as credential sets over credential queries.
type DefinitionV2 struct {
	CredentialQueries map[string]*CredentialQuery `json:"credentialQueries"`
	CredentialSets    []*CredentialSet            `json:"credentialSets"`
}

// CredentialQuery is either resolved to applicable credentials or carries a failure hint.
type CredentialQuery struct {
	Multiple              bool          `json:"multiple,omitempty"`
	ApplicableCredentials []*Credential `json:"applicableCredentials,omitempty"`
	FailureHint           *FailureHint  `json:"failureHint,omitempty"`
}

// Resolved reports whether the wallet core found at least one applicable credential.
func (q *CredentialQuery) Resolved() bool {
	return q != nil && len(q.ApplicableCredentials) > 0
}

// FailureHint explains why a credential query could not be resolved.
type FailureHint struct {
	Reason   string `json:"reason,omitempty"`
	SchemaID string `json:"schemaId,omitempty"`
}

// CredentialSet offers option groups of query ids; exactly one option group is presented.
type CredentialSet struct {
	Required bool       `json:"required"`
	Options  [][]string `json:"options"`
}

// SubmitCredentialRequest is the v1 submission for a requested credential.
type SubmitCredentialRequest struct {
	CredentialID string   `json:"credentialId"`
	SubmitClaims []string `json:"submitClaims"`
}

// SubmitV2CredentialRequest is the v2 submission for one credential of a credential query.
type SubmitV2CredentialRequest struct {
	CredentialID   string   `json:"credentialId"`
	UserSelections []string `json:"userSelections"`
}

// RevocationCheckResult is the outcome of a revocation status refresh for one credential.
type RevocationCheckResult struct {
	CredentialID string          `json:"credentialId"`
	Status       CredentialState `json:"status"`
	Success      bool            `json:"success"`
	Reason       string          `json:"reason,omitempty"`
}

// CredentialListQuery filters a credential listing.
type CredentialListQuery struct {
	OrganisationID string            `json:"organisationId"`
	IDs            []string          `json:"ids,omitempty"`
	States         []CredentialState `json:"states,omitempty"`
	Page           int               `json:"page"`
	PageSize       int               `json:"pageSize"`
}

// CandidateCredentialIDsV1 returns the union of applicable credential ids in request order.
func CandidateCredentialIDsV1(def *DefinitionV1) []string {
	seen := map[string]struct{}{}

	var ids []string

	for _, g := range def.RequestGroups {
		if g == nil {
			continue
		}

		for _, rc := range g.RequestedCredentials {
			if rc == nil {
				continue
			}

			for _, id := range rc.ApplicableCredentials {
				if _, ok := seen[id]; ok {
					continue
				}

				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	return ids
}

// CandidateCredentialIDsV2 returns the union of applicable credential ids of all resolved queries.
// Queries are visited in credential set order so the result is deterministic.
func CandidateCredentialIDsV2(def *DefinitionV2) []string {
	seen := map[string]struct{}{}

	var ids []string

	add := func(q *CredentialQuery) {
		if q == nil {
			return
		}

		for _, c := range q.ApplicableCredentials {
			if c == nil {
				continue
			}

			if _, ok := seen[c.ID]; ok {
				continue
			}

			seen[c.ID] = struct{}{}
			ids = append(ids, c.ID)
		}
	}

	visited := map[string]struct{}{}

	for _, set := range def.CredentialSets {
		if set == nil {
			continue
		}

		for _, option := range set.Options {
			for _, queryID := range option {
				if _, ok := visited[queryID]; ok {
					continue
				}

				visited[queryID] = struct{}{}
				add(def.CredentialQueries[queryID])
			}
		}
	}

	return ids
}
