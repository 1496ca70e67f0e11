/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/walletkit/holder-agent-go/pkg/common/log"
	"github.com/walletkit/holder-agent-go/pkg/controller/rest"
)

var logger = log.New("holder-agent/webnotifier")

const (
	notificationSendTimeout = 10 * time.Second

	emptyTopicErrMsg     = "cannot notify with an empty topic"
	emptyMessageErrMsg   = "cannot notify with an empty message"
	failedToCreateErrMsg = "failed to create topic message: %w"
)

type notifier interface {
	Notify(topic string, message []byte) error
}

// WebNotifier publishes session events to webhook subscribers and WebSocket clients.
type WebNotifier struct {
	notifiers []notifier
	handlers  []rest.Handler
}

// New returns a WebNotifier serving WebSocket clients on wsPath and posting to webhookURLs.
func New(wsPath string, webhookURLs []string, opts ...HTTPOption) *WebNotifier {
	ws := NewWSNotifier(wsPath)

	return &WebNotifier{
		notifiers: []notifier{NewHTTPNotifier(webhookURLs, opts...), ws},
		handlers:  ws.GetRESTHandlers(),
	}
}

// Notify publishes the message to every subscriber. Failures of single subscribers are joined.
func (wn *WebNotifier) Notify(topic string, message []byte) error {
	var allErrs error

	for _, n := range wn.notifiers {
		allErrs = appendError(allErrs, n.Notify(topic, message))
	}

	return allErrs
}

// GetRESTHandlers returns the WebSocket subscription handler.
func (wn *WebNotifier) GetRESTHandlers() []rest.Handler {
	return wn.handlers
}

// TopicMessage is the envelope delivered to subscribers.
type TopicMessage struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
}

// PrepareTopicMessage wraps message into a TopicMessage with a fresh ID.
func PrepareTopicMessage(topic string, message []byte) ([]byte, error) {
	return json.Marshal(&TopicMessage{
		ID:      uuid.New().String(),
		Topic:   topic,
		Message: message,
	})
}

func appendError(errList, err error) error {
	if err == nil {
		return errList
	}

	return errors.Join(errList, err)
}
