/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultWebhookRetries       = 2
	defaultWebhookRetryInterval = 200 * time.Millisecond
)

// HTTPNotifier is a webhook dispatcher capable of notifying multiple subscribers via HTTP.
type HTTPNotifier struct {
	urls          []string
	client        *http.Client
	retries       uint64
	retryInterval time.Duration
}

// HTTPOption configures the webhook dispatcher.
type HTTPOption func(n *HTTPNotifier)

// WithHTTPClient sets the client used to post notifications.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(n *HTTPNotifier) {
		n.client = client
	}
}

// WithRetries sets how often a failed delivery is retried and the wait between attempts.
func WithRetries(retries uint64, interval time.Duration) HTTPOption {
	return func(n *HTTPNotifier) {
		n.retries = retries
		n.retryInterval = interval
	}
}

// NewHTTPNotifier returns a new instance of an HTTPNotifier.
func NewHTTPNotifier(webhookURLs []string, opts ...HTTPOption) *HTTPNotifier {
	n := &HTTPNotifier{
		urls:          webhookURLs,
		client:        http.DefaultClient,
		retries:       defaultWebhookRetries,
		retryInterval: defaultWebhookRetryInterval,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Notify posts the message wrapped in a TopicMessage to all of the urls.
// Deliveries rejected with a client error are not retried.
func (n *HTTPNotifier) Notify(topic string, message []byte) error {
	if topic == "" {
		return fmt.Errorf(emptyTopicErrMsg)
	}

	if len(message) == 0 {
		return fmt.Errorf(emptyMessageErrMsg)
	}

	topicMsg, err := PrepareTopicMessage(topic, message)
	if err != nil {
		return fmt.Errorf(failedToCreateErrMsg, err)
	}

	var allErrs error

	for _, webhookURL := range n.urls {
		allErrs = appendError(allErrs, n.deliver(webhookURL, topicMsg))
	}

	return allErrs
}

func (n *HTTPNotifier) deliver(destination string, message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
	defer cancel()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(n.retryInterval), n.retries), ctx)

	return backoff.RetryNotify(
		func() error {
			return n.notifyWH(ctx, destination, message)
		},
		policy,
		func(err error, wait time.Duration) {
			logger.Debugf("retrying notification to %s in %s: %v", destination, wait, err)
		},
	)
}

func (n *HTTPNotifier) notifyWH(ctx context.Context, destination string, message []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewBuffer(message))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create new http post request for %s: %w", destination, err))
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post notification to %s: %w", destination, err)
	}

	defer closeResponse(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated ||
		resp.StatusCode == http.StatusNoContent:
		logger.Debugf("notification sent to %s", destination)

		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("notification was sent to %s, but %s was received", destination, resp.Status)
	}

	return backoff.Permanent(fmt.Errorf("notification was sent to %s, but %s was received",
		destination, resp.Status))
}

func closeResponse(c io.Closer) {
	err := c.Close()
	if err != nil {
		logger.Errorf("Failed to close response body")
	}
}
