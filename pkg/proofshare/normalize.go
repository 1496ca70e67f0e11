/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/exp/slices"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
)

// Definition is a verifier request of either protocol version.
type Definition struct {
	V1 *presentation.DefinitionV1
	V2 *presentation.DefinitionV2
}

// Version returns the protocol version of the definition.
func (d Definition) Version() presentation.Version {
	if d.V2 != nil {
		return presentation.V2
	}

	return presentation.V1
}

// CandidateCredentialIDs returns the union of applicable credential ids of the definition.
func (d Definition) CandidateCredentialIDs() []string {
	switch {
	case d.V2 != nil:
		return presentation.CandidateCredentialIDsV2(d.V2)
	case d.V1 != nil:
		return presentation.CandidateCredentialIDsV1(d.V1)
	default:
		return nil
	}
}

// Normalize builds the requirement graph of a verifier request. The credential states supplied are
// taken as ground truth, so revocation status must be refreshed before calling it.
func Normalize(def Definition, credentials []*presentation.Credential) (*Graph, error) {
	switch {
	case def.V2 != nil:
		return NormalizeV2(def.V2, credentials)
	case def.V1 != nil:
		return NormalizeV1(def.V1, credentials)
	default:
		return nil, fmt.Errorf("%w: empty definition", ErrMalformedDefinition)
	}
}

// NormalizeV1 maps every request group onto a required set holding one option group with all of
// the group's requested credentials.
func NormalizeV1(def *presentation.DefinitionV1, credentials []*presentation.Credential) (*Graph, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: empty definition", ErrMalformedDefinition)
	}

	g := newGraph(presentation.V1, append(slices.Clone(def.Credentials), credentials...))

	for i, group := range def.RequestGroups {
		if group == nil {
			return nil, fmt.Errorf("%w: request group %d is null", ErrMalformedDefinition, i)
		}

		setID := group.ID
		if setID == "" {
			setID = strconv.Itoa(i)
		}

		if g.Set(setID) != nil {
			return nil, fmt.Errorf("%w: duplicate request group %q", ErrMalformedDefinition, setID)
		}

		option := &OptionGroup{Index: 0, Valid: true}

		for _, rc := range group.RequestedCredentials {
			if rc == nil || rc.ID == "" {
				return nil, fmt.Errorf("%w: requested credential without id in group %q",
					ErrMalformedDefinition, setID)
			}

			if g.slots[rc.ID] != nil {
				return nil, fmt.Errorf("%w: duplicate requested credential %q", ErrMalformedDefinition, rc.ID)
			}

			slot := &Slot{
				ID:                        rc.ID,
				Name:                      rc.Name,
				Resolved:                  len(rc.ApplicableCredentials) > 0,
				CandidateCredentialIDs:    slices.Clone(rc.ApplicableCredentials),
				InapplicableCredentialIDs: slices.Clone(rc.InapplicableCredentials),
			}

			for _, f := range rc.Fields {
				if f == nil {
					return nil, fmt.Errorf("%w: null field in requested credential %q", ErrMalformedDefinition, rc.ID)
				}

				slot.Fields = append(slot.Fields, &Field{
					ID:       f.ID,
					Name:     f.Name,
					Required: f.Required,
					Paths:    copyKeyMap(f.KeyMap),
				})
			}

			slot.ApplicableCredentialIDs = g.accepted(slot.CandidateCredentialIDs)
			g.addSlot(slot)

			option.SlotIDs = append(option.SlotIDs, slot.ID)
			option.Valid = option.Valid && slot.Resolved
		}

		if len(option.SlotIDs) == 0 {
			return nil, fmt.Errorf("%w: request group %q has no requested credentials", ErrMalformedDefinition, setID)
		}

		g.Sets = append(g.Sets, &Set{
			ID:       setID,
			Name:     group.Name,
			Required: true,
			Options:  []*OptionGroup{option},
			Valid:    option.Valid,
		})
	}

	return g, nil
}

// NormalizeV2 maps credential sets 1:1 onto requirement sets and credential queries onto slots.
func NormalizeV2(def *presentation.DefinitionV2, credentials []*presentation.Credential) (*Graph, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: empty definition", ErrMalformedDefinition)
	}

	var all []*presentation.Credential

	for _, id := range sortedQueryIDs(def) {
		if q := def.CredentialQueries[id]; q != nil {
			all = append(all, q.ApplicableCredentials...)
		}
	}

	g := newGraph(presentation.V2, append(all, credentials...))

	for i, cs := range def.CredentialSets {
		if cs == nil {
			return nil, fmt.Errorf("%w: credential set %d is null", ErrMalformedDefinition, i)
		}

		set := &Set{ID: strconv.Itoa(i), Required: cs.Required}

		for j, ids := range cs.Options {
			option := &OptionGroup{Index: j, Valid: len(ids) > 0}

			known := 0

			for _, queryID := range ids {
				query, ok := def.CredentialQueries[queryID]
				if !ok || query == nil || queryID == "" {
					option.Valid = false

					continue
				}

				known++

				option.SlotIDs = append(option.SlotIDs, queryID)

				slot := g.slots[queryID]
				if slot == nil {
					slot = g.querySlot(queryID, query)
					g.addSlot(slot)
				}

				option.Valid = option.Valid && slot.Resolved
			}

			if known == 0 {
				return nil, fmt.Errorf("%w: option %d of credential set %d references no known credential query",
					ErrMalformedDefinition, j, i)
			}

			set.Options = append(set.Options, option)
			set.Valid = set.Valid || option.Valid
		}

		if len(set.Options) == 0 {
			return nil, fmt.Errorf("%w: credential set %d has no options", ErrMalformedDefinition, i)
		}

		g.Sets = append(g.Sets, set)
	}

	return g, nil
}

func newGraph(version presentation.Version, credentials []*presentation.Credential) *Graph {
	g := &Graph{
		Version:     version,
		slots:       map[string]*Slot{},
		credentials: map[string]*presentation.Credential{},
	}

	// Later records are fresher: listed credentials override copies embedded in the request.
	for _, c := range credentials {
		if c == nil || c.ID == "" {
			continue
		}

		prev, ok := g.credentials[c.ID]
		if ok && len(c.Claims) == 0 {
			merged := *c
			merged.Claims = prev.Claims
			c = &merged
		}

		g.credentials[c.ID] = c
	}

	return g
}

func (g *Graph) addSlot(slot *Slot) {
	g.slots[slot.ID] = slot
	g.slotOrder = append(g.slotOrder, slot.ID)
}

// accepted filters ids down to credentials whose state is accepted.
func (g *Graph) accepted(ids []string) []string {
	var out []string

	for _, id := range ids {
		if g.credentials[id].Accepted() {
			out = append(out, id)
		}
	}

	return out
}

// querySlot derives a slot from a v2 credential query. Applicable credentials are ordered newest first
// and every selectable claim becomes a field identified by its path.
func (g *Graph) querySlot(queryID string, query *presentation.CredentialQuery) *Slot {
	slot := &Slot{
		ID:       queryID,
		Multiple: query.Multiple,
		Resolved: query.Resolved(),
	}

	applicable := make([]*presentation.Credential, 0, len(query.ApplicableCredentials))

	for _, c := range query.ApplicableCredentials {
		if c != nil {
			applicable = append(applicable, c)
		}
	}

	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].IssuanceDate.After(applicable[j].IssuanceDate)
	})

	fields := map[string]*Field{}

	for _, c := range applicable {
		slot.CandidateCredentialIDs = append(slot.CandidateCredentialIDs, c.ID)

		if slot.Name == "" {
			slot.Name = c.Name
		}

		for _, claim := range selectableClaims(c) {
			f, ok := fields[claim.Path]
			if !ok {
				f = &Field{ID: claim.Path, Name: claim.Key, Paths: map[string]string{}}
				fields[claim.Path] = f
				slot.Fields = append(slot.Fields, f)
			}

			f.Required = f.Required || claim.Required
			f.Paths[c.ID] = claim.Path
		}
	}

	slot.ApplicableCredentialIDs = g.accepted(slot.CandidateCredentialIDs)

	return slot
}

// selectableClaims returns the claims of a query credential that are required or user selectable.
// Credentials that carry no selection flags expose every claim.
func selectableClaims(c *presentation.Credential) []*presentation.Claim {
	var all, flagged []*presentation.Claim

	presentation.WalkClaims(c.Claims, func(cl *presentation.Claim) bool {
		all = append(all, cl)

		if cl.Required || cl.UserSelection {
			flagged = append(flagged, cl)
		}

		return true
	})

	if len(flagged) == 0 {
		return all
	}

	return flagged
}

func sortedQueryIDs(def *presentation.DefinitionV2) []string {
	ids := make([]string, 0, len(def.CredentialQueries))

	for id := range def.CredentialQueries {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

func copyKeyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))

	for k, v := range m {
		out[k] = v
	}

	return out
}
