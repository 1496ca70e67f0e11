/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	client "github.com/walletkit/holder-agent-go/pkg/client/proofshare"
	"github.com/walletkit/holder-agent-go/pkg/controller/command"
	"github.com/walletkit/holder-agent-go/pkg/controller/command/proofshare"
	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
	mockcore "github.com/walletkit/holder-agent-go/pkg/mock/walletcore"
	"github.com/walletkit/holder-agent-go/spi/walletcore"
)

func newCore() *mockcore.MockService {
	creds := []*presentation.Credential{{
		ID:           "cred-1",
		State:        presentation.StateAccepted,
		IssuanceDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Claims: []*presentation.Claim{
			{Path: "name", Key: "name", Value: "Alice", Required: true},
			{Path: "email", Key: "email", Value: "alice@example.com", UserSelection: true},
		},
	}}

	return &mockcore.MockService{
		DefinitionV2Value: &presentation.DefinitionV2{
			CredentialQueries: map[string]*presentation.CredentialQuery{
				"Q1": {ApplicableCredentials: creds},
			},
			CredentialSets: []*presentation.CredentialSet{{Required: true, Options: [][]string{{"Q1"}}}},
		},
		Credentials: creds,
	}
}

func newRouter(op *Operation) *mux.Router {
	router := mux.NewRouter()

	for _, h := range op.GetRESTHandlers() {
		router.HandleFunc(h.Path(), h.Handle()).Methods(h.Method())
	}

	return router
}

func serve(t *testing.T, router *mux.Router, method, path string, body io.Reader) (*bytes.Buffer, int) {
	t.Helper()

	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	return rr.Body, rr.Code
}

func verifyError(t *testing.T, expectedCode command.Code, expectedMsg string, data []byte) {
	t.Helper()

	errResponse := struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{}
	require.NoError(t, json.Unmarshal(data, &errResponse))

	require.EqualValues(t, expectedCode, errResponse.Code)
	require.Contains(t, errResponse.Message, expectedMsg)
}

func openSession(t *testing.T, router *mux.Router) string {
	t.Helper()

	buf, code := serve(t, router, http.MethodPost, LoadPath, strings.NewReader(`{"proofId":"proof-1"}`))
	require.Equal(t, http.StatusOK, code, buf.String())

	resp := struct {
		SessionID string `json:"sessionId"`
		Ready     bool   `json:"ready"`
	}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	require.True(t, resp.Ready)

	return resp.SessionID
}

func TestNew(t *testing.T) {
	op := New(client.New(newCore()), nil, nil)
	require.NotNil(t, op)
	require.Len(t, op.GetRESTHandlers(), 10)
}

func TestOperation_Flow(t *testing.T) {
	core := newCore()
	router := newRouter(New(client.New(core), nil, &proofshare.Config{
		Context: client.Context{OrganisationID: "org-1", DidID: "did-1", KeyID: "key-1"},
	}))

	id := openSession(t, router)
	sessionURL := strings.Replace(StatePath, "{id}", id, 1)

	buf, code := serve(t, router, http.MethodGet, sessionURL, nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, buf.String(), `"request":`)

	buf, code = serve(t, router, http.MethodPost, ToggleFieldPath, strings.NewReader(
		fmt.Sprintf(`{"sessionId":%q,"slotId":"Q1","fieldId":"email","selected":true}`, id)))
	require.Equal(t, http.StatusOK, code, buf.String())

	buf, code = serve(t, router, http.MethodGet, sessionURL+"/preview", nil)
	require.Equal(t, http.StatusOK, code)

	preview := &proofshare.PreviewResponse{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), preview))
	require.Len(t, preview.Claims, 2)

	buf, code = serve(t, router, http.MethodPost, sessionURL+"/submit", nil)
	require.Equal(t, http.StatusOK, code, buf.String())
	require.Contains(t, buf.String(), `"phase":"submitted"`)

	submitted := core.Submitted()
	require.Len(t, submitted, 1)
	require.Equal(t, []string{"email"}, submitted[0].CredentialsV2["Q1"][0].UserSelections)

	buf, code = serve(t, router, http.MethodPost, sessionURL+"/submit", nil)
	require.Equal(t, http.StatusInternalServerError, code)
	verifyError(t, proofshare.SubmitErrorCode, client.ErrSessionClosed.Error(), buf.Bytes())

	_, code = serve(t, router, http.MethodDelete, sessionURL, nil)
	require.Equal(t, http.StatusOK, code)

	buf, code = serve(t, router, http.MethodGet, sessionURL, nil)
	require.Equal(t, http.StatusBadRequest, code)
	verifyError(t, proofshare.SessionNotFoundErrorCode, id, buf.Bytes())
}

func TestOperation_Errors(t *testing.T) {
	t.Run("test invalid body", func(t *testing.T) {
		router := newRouter(New(client.New(newCore()), nil, nil))

		for _, path := range []string{
			LoadPath, SelectCredentialsPath, ConfirmChangePath, ToggleFieldPath, ToggleOptionGroupPath,
		} {
			buf, code := serve(t, router, http.MethodPost, path, strings.NewReader("{"))
			require.Equal(t, http.StatusBadRequest, code, path)
			verifyError(t, proofshare.InvalidRequestErrorCode, "", buf.Bytes())
		}
	})

	t.Run("test load failure", func(t *testing.T) {
		core := newCore()
		core.DefinitionV2Err = walletcore.NewError(walletcore.ErrorCodeUnavailable, "core down")

		router := newRouter(New(client.New(core), nil, nil))

		buf, code := serve(t, router, http.MethodPost, LoadPath, strings.NewReader(`{"proofId":"proof-1"}`))
		require.Equal(t, http.StatusInternalServerError, code)
		verifyError(t, proofshare.LoadErrorCode, "core down", buf.Bytes())
	})

	t.Run("test reject", func(t *testing.T) {
		core := newCore()
		core.RejectErr = walletcore.NewError(walletcore.ErrorCodeNotSupported, "")

		router := newRouter(New(client.New(core), nil, nil))
		id := openSession(t, router)

		buf, code := serve(t, router, http.MethodPost,
			strings.Replace(RejectPath, "{id}", id, 1), nil)
		require.Equal(t, http.StatusOK, code)
		require.Contains(t, buf.String(), `"phase":"rejected"`)
	})

	t.Run("test empty session id", func(t *testing.T) {
		rr := httptest.NewRecorder()

		_, found := getIDFromRequest(rr, httptest.NewRequest(http.MethodGet, "/proofshare/sessions/", nil))
		require.False(t, found)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		verifyError(t, proofshare.InvalidRequestErrorCode, "empty session ID", rr.Body.Bytes())
	})
}
