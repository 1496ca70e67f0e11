/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller

import (
	"time"

	"github.com/walletkit/holder-agent-go/pkg/client/proofshare"
	"github.com/walletkit/holder-agent-go/pkg/controller/command"
	proofsharecmd "github.com/walletkit/holder-agent-go/pkg/controller/command/proofshare"
	"github.com/walletkit/holder-agent-go/pkg/controller/rest"
	proofsharerest "github.com/walletkit/holder-agent-go/pkg/controller/rest/proofshare"
	"github.com/walletkit/holder-agent-go/pkg/controller/webnotifier"
)

type allOpts struct {
	webhookURLs []string
	notifier    command.Notifier
	holder      proofshare.Context
	timeout     time.Duration
}

const wsPath = "/ws"

// Opt represents a controller option.
type Opt func(opts *allOpts)

// WithWebhookURLs is an option for setting up a webhook dispatcher which will notify clients of events.
func WithWebhookURLs(webhookURLs ...string) Opt {
	return func(opts *allOpts) {
		opts.webhookURLs = webhookURLs
	}
}

// WithNotifier is an option for setting up a notifier which will notify clients of events.
func WithNotifier(notifier command.Notifier) Opt {
	return func(opts *allOpts) {
		opts.notifier = notifier
	}
}

// WithHolderContext sets the holder context used by loads that do not carry one.
func WithHolderContext(holder proofshare.Context) Opt {
	return func(opts *allOpts) {
		opts.holder = holder
	}
}

// WithCoreTimeout bounds the wallet core calls made by a single command.
func WithCoreTimeout(timeout time.Duration) Opt {
	return func(opts *allOpts) {
		opts.timeout = timeout
	}
}

func applyOpts(opts []Opt) (*allOpts, command.Notifier) {
	o := &allOpts{}
	for _, opt := range opts {
		opt(o)
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = webnotifier.New(wsPath, o.webhookURLs)
	}

	return o, notifier
}

// GetRESTHandlers returns all REST handlers provided by controller.
func GetRESTHandlers(client *proofshare.Client, opts ...Opt) []rest.Handler {
	o, notifier := applyOpts(opts)

	op := proofsharerest.New(client, notifier, &proofsharecmd.Config{Context: o.holder, Timeout: o.timeout})

	var allHandlers []rest.Handler
	allHandlers = append(allHandlers, op.GetRESTHandlers()...)

	nhp, ok := notifier.(handlerProvider)
	if ok {
		allHandlers = append(allHandlers, nhp.GetRESTHandlers()...)
	}

	return allHandlers
}

type handlerProvider interface {
	GetRESTHandlers() []rest.Handler
}

// GetCommandHandlers returns all command handlers provided by controller.
func GetCommandHandlers(client *proofshare.Client, opts ...Opt) []command.Handler {
	o, notifier := applyOpts(opts)

	cmd := proofsharecmd.New(client, notifier, &proofsharecmd.Config{Context: o.holder, Timeout: o.timeout})

	return cmd.GetHandlers()
}
