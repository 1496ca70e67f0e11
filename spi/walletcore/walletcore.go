/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package walletcore defines the contract of the native wallet core that owns credential storage,
// key management, signing, revocation checks and the proof exchange wire protocols.
package walletcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
)

// ErrorCode is a machine-readable failure kind reported by the wallet core.
type ErrorCode string

// Error codes returned by the wallet core.
const (
	ErrorCodeUnknown       ErrorCode = "UNKNOWN"
	ErrorCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrorCodeNotSupported  ErrorCode = "NOT_SUPPORTED"
	ErrorCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrorCodeUnavailable   ErrorCode = "UNAVAILABLE"
	ErrorCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrorCodeExchangeError ErrorCode = "EXCHANGE_ERROR"
)

// Error is a typed wallet core failure.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}

// Error returns the error string.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("wallet core error: %s", e.Code)
	}

	return fmt.Sprintf("wallet core error: %s: %s", e.Code, e.Message)
}

// NewError creates a new typed wallet core error.
func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// CodeOf returns the wallet core code carried by err or ErrorCodeUnknown.
func CodeOf(err error) ErrorCode {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}

	return ErrorCodeUnknown
}

// IsNotSupported reports whether err is a NOT_SUPPORTED wallet core failure.
func IsNotSupported(err error) bool {
	return err != nil && CodeOf(err) == ErrorCodeNotSupported
}

// IsNotFound reports whether err is a NOT_FOUND wallet core failure.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == ErrorCodeNotFound
}

// SubmitProofRequest carries a proof submission. Exactly one of Credentials (v1) and
// CredentialsV2 (v2) is set.
type SubmitProofRequest struct {
	InteractionID string                                               `json:"interactionId"`
	Credentials   map[string]*presentation.SubmitCredentialRequest     `json:"credentials,omitempty"`
	CredentialsV2 map[string][]*presentation.SubmitV2CredentialRequest `json:"credentialsV2,omitempty"`
	DidID         string                                               `json:"didId,omitempty"`
	KeyID         string                                               `json:"keyId,omitempty"`
}

// Service is the wallet core used by the proof sharing flow.
type Service interface {
	// GetPresentationDefinition fetches a v1 request for a proof.
	GetPresentationDefinition(ctx context.Context, proofID string) (*presentation.DefinitionV1, error)
	// GetPresentationDefinitionV2 fetches a v2 request for a proof.
	GetPresentationDefinitionV2(ctx context.Context, proofID string) (*presentation.DefinitionV2, error)
	// CheckRevocation refreshes the revocation status of the given credentials.
	CheckRevocation(ctx context.Context, credentialIDs []string) ([]*presentation.RevocationCheckResult, error)
	// ListCredentials lists credentials matching the query.
	ListCredentials(ctx context.Context, query *presentation.CredentialListQuery) ([]*presentation.Credential, error)
	// GetCredential returns a single credential.
	GetCredential(ctx context.Context, credentialID string) (*presentation.Credential, error)
	// SubmitProof submits the holder's selection for an interaction.
	SubmitProof(ctx context.Context, req *SubmitProofRequest) error
	// RejectProof declines an interaction.
	RejectProof(ctx context.Context, interactionID string) error
}

// ChangedCredentials returns the ids of credentials whose refreshed status differs from the
// state previously known for them. Failed checks are skipped.
func ChangedCredentials(known map[string]presentation.CredentialState,
	results []*presentation.RevocationCheckResult) []string {
	var changed []string

	for _, r := range results {
		if r == nil || !r.Success {
			continue
		}

		if prev, ok := known[r.CredentialID]; ok && prev != r.Status {
			changed = append(changed, r.CredentialID)
		}
	}

	return changed
}
