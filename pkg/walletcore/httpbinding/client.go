/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package httpbinding implements the wallet core service over the core's HTTP API.
package httpbinding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/walletkit/holder-agent-go/pkg/common/log"
	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
	"github.com/walletkit/holder-agent-go/spi/walletcore"
)

var logger = log.New("holder-agent/walletcore/httpbinding")

const (
	contentType     = "Content-Type"
	applicationJSON = "application/json"

	defaultPageSize = 100
)

// API paths relative to the core endpoint.
const (
	definitionPath      = "/proofs/%s/presentation-definition"
	definitionV2Path    = "/proofs/%s/presentation-definition-v2"
	revocationCheckPath = "/credentials/revocation-check"
	credentialsPath     = "/credentials"
	credentialPath      = "/credentials/%s"
	submitPath          = "/interactions/presentation-submit"
	rejectPath          = "/interactions/presentation-reject"
)

type authTokenProvider interface {
	AuthToken() (string, error)
}

// Client is a wallet core reached through HTTP(s).
type Client struct {
	endpointURL       string
	client            *http.Client
	authToken         string
	authTokenProvider authTokenProvider
	readRetries       uint64
	retryInterval     time.Duration
}

// New creates a wallet core client for the given endpoint.
func New(endpointURL string, opts ...Option) (*Client, error) {
	c := &Client{client: &http.Client{}, retryInterval: time.Second}

	for _, opt := range opts {
		opt(c)
	}

	_, err := url.ParseRequestURI(endpointURL)
	if err != nil {
		return nil, fmt.Errorf("base URL invalid: %w", err)
	}

	c.endpointURL = strings.TrimSuffix(endpointURL, "/")

	return c, nil
}

// Option configures the client.
type Option func(opts *Client)

// WithTimeout option is for definition of HTTP(s) timeout value.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Client) {
		opts.client.Timeout = timeout
	}
}

// WithHTTPClient option is for custom http client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(opts *Client) {
		opts.client = httpClient
	}
}

// WithAuthToken adds a bearer token to every request.
func WithAuthToken(authToken string) Option {
	return func(opts *Client) {
		opts.authToken = "Bearer " + authToken
	}
}

// WithAuthTokenProvider adds a bearer token obtained per request.
func WithAuthTokenProvider(p authTokenProvider) Option {
	return func(opts *Client) {
		opts.authTokenProvider = p
	}
}

// WithReadRetries retries idempotent reads that failed with a transport error or an unavailable core.
// Submissions and rejections are never retried.
func WithReadRetries(retries uint64, interval time.Duration) Option {
	return func(opts *Client) {
		opts.readRetries = retries
		opts.retryInterval = interval
	}
}

// GetPresentationDefinition fetches a v1 request. The response is validated against the v1
// request schema before it is decoded.
func (c *Client) GetPresentationDefinition(ctx context.Context, proofID string) (*presentation.DefinitionV1, error) {
	var raw json.RawMessage

	err := c.read(ctx, http.MethodGet, fmt.Sprintf(definitionPath, url.PathEscape(proofID)), nil, &raw)
	if err != nil {
		return nil, errors.Wrapf(err, "get presentation definition for proof %s", proofID)
	}

	def, err := presentation.ParseDefinitionV1(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "presentation definition for proof %s", proofID)
	}

	return def, nil
}

// GetPresentationDefinitionV2 fetches a v2 request. The response is validated against the v2
// request schema before it is decoded.
func (c *Client) GetPresentationDefinitionV2(ctx context.Context, proofID string) (*presentation.DefinitionV2, error) {
	var raw json.RawMessage

	err := c.read(ctx, http.MethodGet, fmt.Sprintf(definitionV2Path, url.PathEscape(proofID)), nil, &raw)
	if err != nil {
		return nil, errors.Wrapf(err, "get presentation definition v2 for proof %s", proofID)
	}

	def, err := presentation.ParseDefinitionV2(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "presentation definition v2 for proof %s", proofID)
	}

	return def, nil
}

type revocationCheckRequest struct {
	CredentialIDs []string `json:"credentialIds"`
}

// CheckRevocation refreshes the revocation status of credentials. The check does not change what
// the core holds beyond the refreshed status, so it is retried like a read.
func (c *Client) CheckRevocation(ctx context.Context,
	credentialIDs []string) ([]*presentation.RevocationCheckResult, error) {
	var results []*presentation.RevocationCheckResult

	err := c.read(ctx, http.MethodPost, revocationCheckPath,
		&revocationCheckRequest{CredentialIDs: credentialIDs}, &results)
	if err != nil {
		return nil, errors.Wrap(err, "check revocation")
	}

	return results, nil
}

type credentialListResponse struct {
	Values     []*presentation.Credential `json:"values"`
	TotalPages int                        `json:"totalPages"`
	TotalItems int                        `json:"totalItems"`
}

// ListCredentials lists credentials. A query without page size reads every page.
func (c *Client) ListCredentials(ctx context.Context,
	query *presentation.CredentialListQuery) ([]*presentation.Credential, error) {
	q := *query
	all := q.PageSize == 0

	if all {
		q.PageSize = defaultPageSize
	}

	var credentials []*presentation.Credential

	for {
		resp := &credentialListResponse{}

		err := c.read(ctx, http.MethodGet, credentialsPath+"?"+listParams(&q).Encode(), nil, resp)
		if err != nil {
			return nil, errors.Wrap(err, "list credentials")
		}

		credentials = append(credentials, resp.Values...)

		if !all || q.Page+1 >= resp.TotalPages || len(resp.Values) == 0 {
			return credentials, nil
		}

		q.Page++
	}
}

func listParams(q *presentation.CredentialListQuery) url.Values {
	params := url.Values{}
	params.Set("organisationId", q.OrganisationID)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("pageSize", strconv.Itoa(q.PageSize))

	for _, id := range q.IDs {
		params.Add("ids[]", id)
	}

	for _, s := range q.States {
		params.Add("status[]", string(s))
	}

	return params
}

// GetCredential returns a single credential.
func (c *Client) GetCredential(ctx context.Context, credentialID string) (*presentation.Credential, error) {
	credential := &presentation.Credential{}

	err := c.read(ctx, http.MethodGet, fmt.Sprintf(credentialPath, url.PathEscape(credentialID)), nil, credential)
	if err != nil {
		return nil, errors.Wrapf(err, "get credential %s", credentialID)
	}

	return credential, nil
}

// SubmitProof submits a proof. It is sent exactly once.
func (c *Client) SubmitProof(ctx context.Context, req *walletcore.SubmitProofRequest) error {
	if err := c.do(ctx, http.MethodPost, submitPath, req, nil); err != nil {
		return errors.Wrapf(err, "submit proof for interaction %s", req.InteractionID)
	}

	return nil
}

type rejectRequest struct {
	InteractionID string `json:"interactionId"`
}

// RejectProof rejects a proof request. It is sent exactly once.
func (c *Client) RejectProof(ctx context.Context, interactionID string) error {
	if err := c.do(ctx, http.MethodPost, rejectPath, &rejectRequest{InteractionID: interactionID}, nil); err != nil {
		return errors.Wrapf(err, "reject proof for interaction %s", interactionID)
	}

	return nil
}

func (c *Client) read(ctx context.Context, method, path string, body, result interface{}) error {
	if c.readRetries == 0 {
		return c.do(ctx, method, path, body, result)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryInterval), c.readRetries), ctx)

	return backoff.RetryNotify(func() error {
		err := c.do(ctx, method, path, body, result)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}

		return err
	}, b, func(err error, d time.Duration) {
		logger.Warnf("wallet core %s %s failed, retrying in %s: %v", method, path, d, err)
	})
}

func retryable(err error) bool {
	var coreErr *walletcore.Error
	if errors.As(err, &coreErr) {
		return coreErr.Code == walletcore.ErrorCodeUnavailable
	}

	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("HTTP create %s request failed: %w", method, err)
	}

	req.Header.Add("Accept", applicationJSON)

	if body != nil {
		req.Header.Add(contentType, applicationJSON)
	}

	authToken := c.authToken

	if c.authTokenProvider != nil {
		token, errToken := c.authTokenProvider.AuthToken()
		if errToken != nil {
			return errToken
		}

		authToken = "Bearer " + token
	}

	if authToken != "" {
		req.Header.Add("Authorization", authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s request failed: %w", method, err)
	}

	defer closeResponseBody(resp.Body)

	gotBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body failed: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return coreError(resp.StatusCode, gotBody)
	}

	if result == nil || len(gotBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(gotBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// coreError maps an error response onto a typed wallet core error. A code in the body wins over the
// HTTP status.
func coreError(status int, body []byte) error {
	coreErr := &walletcore.Error{}

	if err := json.Unmarshal(body, coreErr); err == nil && coreErr.Code != "" {
		return coreErr
	}

	coreErr = &walletcore.Error{Code: walletcore.ErrorCodeUnknown, Message: strings.TrimSpace(string(body))}

	switch status {
	case http.StatusNotFound:
		coreErr.Code = walletcore.ErrorCodeNotFound
	case http.StatusNotImplemented:
		coreErr.Code = walletcore.ErrorCodeNotSupported
	case http.StatusBadRequest:
		coreErr.Code = walletcore.ErrorCodeInvalidInput
	case http.StatusConflict:
		coreErr.Code = walletcore.ErrorCodeInvalidState
	case http.StatusUnauthorized, http.StatusForbidden:
		coreErr.Code = walletcore.ErrorCodeUnauthorized
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		coreErr.Code = walletcore.ErrorCodeUnavailable
	}

	return coreErr
}

func closeResponseBody(respBody io.Closer) {
	e := respBody.Close()
	if e != nil {
		logger.Errorf("Failed to close response body: %v", e)
	}
}
