/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
)

// DisclosedClaim is a claim value that will be shared with the verifier.
type DisclosedClaim struct {
	SlotID       string      `json:"slotId"`
	CredentialID string      `json:"credentialId"`
	Path         string      `json:"path"`
	Name         string      `json:"name,omitempty"`
	Value        interface{} `json:"value,omitempty"`
}

// Preview resolves every disclosed path of the payload to the claim value held by the credential.
func Preview(g *Graph, p *SubmissionPayload) ([]*DisclosedClaim, error) {
	builder := gval.Full(jsonpath.PlaceholderExtension())

	var claims []*DisclosedClaim

	for _, slot := range g.Slots() {
		for _, e := range p.Credentials[slot.ID] {
			doc := claimDocument(g.Credential(e.CredentialID))

			for _, path := range e.DisclosedPaths {
				value, err := selectByPath(builder, doc, path)
				if err != nil && !strings.Contains(err.Error(), "unknown key") {
					return nil, fmt.Errorf("preview credential %s: %w", e.CredentialID, err)
				}

				name := presentation.LastSegment(path)
				if f := slot.fieldByPath(e.CredentialID, path); f != nil && f.Name != "" {
					name = f.Name
				}

				claims = append(claims, &DisclosedClaim{
					SlotID:       slot.ID,
					CredentialID: e.CredentialID,
					Path:         path,
					Name:         name,
					Value:        value,
				})
			}
		}
	}

	return claims, nil
}

func selectByPath(builder gval.Language, doc interface{}, claimPath string) (interface{}, error) {
	jsonPath := toJSONPath(claimPath)

	path, err := builder.NewEvaluable(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build new json path evaluator: %w", err)
	}

	value, err := path(context.TODO(), doc)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate json path [%s]: %w", jsonPath, err)
	}

	return value, nil
}

// toJSONPath turns a claim path such as "address/street" into $["address"]["street"].
func toJSONPath(claimPath string) string {
	var sb strings.Builder

	sb.WriteString("$")

	for _, segment := range strings.Split(claimPath, presentation.PathSeparator) {
		sb.WriteString("[")
		sb.WriteString(strconv.Quote(segment))
		sb.WriteString("]")
	}

	return sb.String()
}

// claimDocument renders the claim tree of a credential as nested JSON objects keyed by path segment.
func claimDocument(c *presentation.Credential) map[string]interface{} {
	doc := map[string]interface{}{}

	if c == nil {
		return doc
	}

	fillDocument(doc, c.Claims)

	return doc
}

func fillDocument(doc map[string]interface{}, claims []*presentation.Claim) {
	for _, cl := range claims {
		if cl == nil {
			continue
		}

		key := presentation.LastSegment(cl.Path)
		if key == "" {
			key = cl.Key
		}

		if len(cl.Claims) == 0 {
			doc[key] = cl.Value

			continue
		}

		nested := map[string]interface{}{}
		fillDocument(nested, cl.Claims)
		doc[key] = nested
	}
}
