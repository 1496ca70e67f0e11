/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentation

import (
	"strings"
	"time"
)

// PathSeparator delimits the segments of a claim path.
const PathSeparator = "/"

// CredentialState is the lifecycle state of a credential held by the wallet core.
type CredentialState string

// Credential states reported by the wallet core.
const (
	StateCreated   CredentialState = "CREATED"
	StatePending   CredentialState = "PENDING"
	StateOffered   CredentialState = "OFFERED"
	StateAccepted  CredentialState = "ACCEPTED"
	StateRejected  CredentialState = "REJECTED"
	StateRevoked   CredentialState = "REVOKED"
	StateSuspended CredentialState = "SUSPENDED"
	StateError     CredentialState = "ERROR"
)

// Claim is a single claim of a credential. Object and array claims carry their children in Claims.
type Claim struct {
	ID            string      `json:"id,omitempty"`
	Path          string      `json:"path"`
	Key           string      `json:"key,omitempty"`
	DataType      string      `json:"dataType,omitempty"`
	Array         bool        `json:"array,omitempty"`
	Value         interface{} `json:"value,omitempty"`
	Claims        []*Claim    `json:"claims,omitempty"`
	Required      bool        `json:"required,omitempty"`
	UserSelection bool        `json:"userSelection,omitempty"`
}

// Credential is a read-only copy of a credential record owned by the wallet core.
type Credential struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	SchemaID     string          `json:"schemaId,omitempty"`
	SchemaName   string          `json:"schemaName,omitempty"`
	State        CredentialState `json:"state"`
	IssuanceDate time.Time       `json:"issuanceDate,omitempty"`
	Claims       []*Claim        `json:"claims,omitempty"`
}

// Accepted reports whether the credential can be presented.
func (c *Credential) Accepted() bool {
	return c != nil && c.State == StateAccepted
}

// WalkClaims visits every claim of the tree in depth-first pre-order.
// Returning false from fn stops the walk.
func WalkClaims(claims []*Claim, fn func(c *Claim) bool) bool {
	for _, c := range claims {
		if c == nil {
			continue
		}

		if !fn(c) {
			return false
		}

		if !WalkClaims(c.Claims, fn) {
			return false
		}
	}

	return true
}

// Paths returns every claim path of the credential in pre-order.
func (c *Credential) Paths() []string {
	if c == nil {
		return nil
	}

	var paths []string

	WalkClaims(c.Claims, func(cl *Claim) bool {
		paths = append(paths, cl.Path)

		return true
	})

	return paths
}

// Claim returns the claim at the given path or nil.
func (c *Credential) Claim(path string) *Claim {
	if c == nil {
		return nil
	}

	var found *Claim

	WalkClaims(c.Claims, func(cl *Claim) bool {
		if cl.Path == path {
			found = cl

			return false
		}

		return true
	})

	return found
}

// HasPath reports whether a claim exists at the given path.
func (c *Credential) HasPath(path string) bool {
	return c.Claim(path) != nil
}

// IsParentPath reports whether parent is a proper ancestor of path.
func IsParentPath(parent, path string) bool {
	return strings.HasPrefix(path, parent+PathSeparator)
}

// LastSegment returns the last segment of a claim path.
func LastSegment(path string) string {
	if i := strings.LastIndex(path, PathSeparator); i >= 0 {
		return path[i+1:]
	}

	return path
}
