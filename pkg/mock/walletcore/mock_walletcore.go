/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package walletcore

import (
	"context"
	"sync"

	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
	"github.com/walletkit/holder-agent-go/spi/walletcore"
)

// MockService mock implementation of the wallet core
// to be used only for unit tests.
type MockService struct {
	DefinitionErr     error
	DefinitionValue   *presentation.DefinitionV1
	DefinitionFunc    func(ctx context.Context, proofID string) (*presentation.DefinitionV1, error)
	DefinitionV2Err   error
	DefinitionV2Value *presentation.DefinitionV2
	DefinitionV2Func  func(ctx context.Context, proofID string) (*presentation.DefinitionV2, error)
	RevocationErr     error
	RevocationValue   []*presentation.RevocationCheckResult
	RevocationFunc    func(ctx context.Context, ids []string) ([]*presentation.RevocationCheckResult, error)
	ListErr           error
	ListFunc          func(ctx context.Context, q *presentation.CredentialListQuery) ([]*presentation.Credential, error)
	GetErr            error
	GetFunc           func(ctx context.Context, credentialID string) (*presentation.Credential, error)
	SubmitErr         error
	SubmitFunc        func(ctx context.Context, req *walletcore.SubmitProofRequest) error
	RejectErr         error
	RejectFunc        func(ctx context.Context, interactionID string) error

	// Credentials is the store served by ListCredentials and GetCredential.
	Credentials []*presentation.Credential

	mu        sync.Mutex
	calls     map[string]int
	submitted []*walletcore.SubmitProofRequest
	rejected  []string
}

func (m *MockService) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.calls == nil {
		m.calls = make(map[string]int)
	}

	m.calls[name]++
}

// Calls returns how many times the named method was called.
func (m *MockService) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[name]
}

// Submitted returns the proofs submitted so far.
func (m *MockService) Submitted() []*walletcore.SubmitProofRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*walletcore.SubmitProofRequest(nil), m.submitted...)
}

// Rejected returns the interactions rejected so far.
func (m *MockService) Rejected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.rejected...)
}

// GetPresentationDefinition mock.
func (m *MockService) GetPresentationDefinition(ctx context.Context,
	proofID string) (*presentation.DefinitionV1, error) {
	m.record("GetPresentationDefinition")

	if m.DefinitionFunc != nil {
		return m.DefinitionFunc(ctx, proofID)
	}

	if m.DefinitionErr != nil {
		return nil, m.DefinitionErr
	}

	if m.DefinitionValue == nil {
		return nil, walletcore.NewError(walletcore.ErrorCodeNotFound, proofID)
	}

	return m.DefinitionValue, nil
}

// GetPresentationDefinitionV2 mock.
func (m *MockService) GetPresentationDefinitionV2(ctx context.Context,
	proofID string) (*presentation.DefinitionV2, error) {
	m.record("GetPresentationDefinitionV2")

	if m.DefinitionV2Func != nil {
		return m.DefinitionV2Func(ctx, proofID)
	}

	if m.DefinitionV2Err != nil {
		return nil, m.DefinitionV2Err
	}

	if m.DefinitionV2Value == nil {
		return nil, walletcore.NewError(walletcore.ErrorCodeNotFound, proofID)
	}

	return m.DefinitionV2Value, nil
}

// CheckRevocation mock. Without a configured value every credential keeps its stored state.
func (m *MockService) CheckRevocation(ctx context.Context,
	credentialIDs []string) ([]*presentation.RevocationCheckResult, error) {
	m.record("CheckRevocation")

	if m.RevocationFunc != nil {
		return m.RevocationFunc(ctx, credentialIDs)
	}

	if m.RevocationErr != nil {
		return nil, m.RevocationErr
	}

	if m.RevocationValue != nil {
		return m.RevocationValue, nil
	}

	results := make([]*presentation.RevocationCheckResult, 0, len(credentialIDs))

	for _, id := range credentialIDs {
		if c := m.find(id); c != nil {
			results = append(results, &presentation.RevocationCheckResult{CredentialID: id, Status: c.State, Success: true})
		}
	}

	return results, nil
}

// ListCredentials mock. Filters the store by ids and states.
func (m *MockService) ListCredentials(ctx context.Context,
	query *presentation.CredentialListQuery) ([]*presentation.Credential, error) {
	m.record("ListCredentials")

	if m.ListFunc != nil {
		return m.ListFunc(ctx, query)
	}

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var result []*presentation.Credential

	for _, c := range m.Credentials {
		if len(query.IDs) > 0 && !contains(query.IDs, c.ID) {
			continue
		}

		if len(query.States) > 0 && !containsState(query.States, c.State) {
			continue
		}

		result = append(result, c)
	}

	return result, nil
}

// GetCredential mock.
func (m *MockService) GetCredential(ctx context.Context, credentialID string) (*presentation.Credential, error) {
	m.record("GetCredential")

	if m.GetFunc != nil {
		return m.GetFunc(ctx, credentialID)
	}

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	if c := m.find(credentialID); c != nil {
		return c, nil
	}

	return nil, walletcore.NewError(walletcore.ErrorCodeNotFound, credentialID)
}

// SubmitProof mock.
func (m *MockService) SubmitProof(ctx context.Context, req *walletcore.SubmitProofRequest) error {
	m.record("SubmitProof")

	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, req)
	}

	if m.SubmitErr != nil {
		return m.SubmitErr
	}

	m.mu.Lock()
	m.submitted = append(m.submitted, req)
	m.mu.Unlock()

	return nil
}

// RejectProof mock.
func (m *MockService) RejectProof(ctx context.Context, interactionID string) error {
	m.record("RejectProof")

	if m.RejectFunc != nil {
		return m.RejectFunc(ctx, interactionID)
	}

	if m.RejectErr != nil {
		return m.RejectErr
	}

	m.mu.Lock()
	m.rejected = append(m.rejected, interactionID)
	m.mu.Unlock()

	return nil
}

func (m *MockService) find(id string) *presentation.Credential {
	for _, c := range m.Credentials {
		if c.ID == id {
			return c
		}
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}

	return false
}

func containsState(values []presentation.CredentialState, v presentation.CredentialState) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}

	return false
}
