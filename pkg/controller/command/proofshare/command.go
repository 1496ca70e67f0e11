/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/walletkit/holder-agent-go/pkg/client/proofshare"
	"github.com/walletkit/holder-agent-go/pkg/common/log"
	"github.com/walletkit/holder-agent-go/pkg/controller/command"
	"github.com/walletkit/holder-agent-go/pkg/controller/internal/cmdutil"
	"github.com/walletkit/holder-agent-go/pkg/doc/presentation"
	"github.com/walletkit/holder-agent-go/pkg/internal/logutil"
	engine "github.com/walletkit/holder-agent-go/pkg/proofshare"
)

var logger = log.New("holder-agent/command/proofshare")

// Error codes.
const (
	// InvalidRequestErrorCode is typically a code for invalid requests.
	InvalidRequestErrorCode = command.Code(iota + command.ProofShare)

	// LoadErrorCode for errors while loading a proof request.
	LoadErrorCode

	// SessionNotFoundErrorCode for requests referencing an unknown session.
	SessionNotFoundErrorCode

	// SelectCredentialsErrorCode for errors while choosing credentials.
	SelectCredentialsErrorCode

	// ConfirmChangeErrorCode for errors while confirming a pending change.
	ConfirmChangeErrorCode

	// ToggleFieldErrorCode for errors while toggling a field.
	ToggleFieldErrorCode

	// ToggleOptionGroupErrorCode for errors while toggling an option group.
	ToggleOptionGroupErrorCode

	// PreviewErrorCode for errors while previewing the disclosure.
	PreviewErrorCode

	// SubmitErrorCode for errors while submitting a proof.
	SubmitErrorCode

	// RejectErrorCode for errors while rejecting a proof.
	RejectErrorCode
)

// All command operations.
const (
	CommandName = "proofshare"

	// command methods.
	LoadMethod              = "Load"
	StateMethod             = "State"
	SelectCredentialsMethod = "SelectCredentials"
	ConfirmChangeMethod     = "ConfirmChange"
	ToggleFieldMethod       = "ToggleField"
	ToggleOptionGroupMethod = "ToggleOptionGroup"
	PreviewMethod           = "Preview"
	SubmitMethod            = "Submit"
	RejectMethod            = "Reject"
	CloseMethod             = "Close"
)

// Topic is the notification topic of session events.
const Topic = "proofshare"

// Event types.
const (
	EventLoaded               = "loaded"
	EventChanged              = "changed"
	EventConfirmationRequired = "confirmation-required"
	EventSubmitted            = "submitted"
	EventRejected             = "rejected"
	EventClosed               = "closed"
)

const (
	// log constants.
	logSuccess      = "success"
	logSessionIDKey = "sessionID"

	defaultTimeout = 30 * time.Second
)

// errMissingSessionID is returned for requests without a session id.
var errMissingSessionID = errors.New("session id is mandatory")

// Config customizes the proof sharing command.
type Config struct {
	// Holder context used when a load request does not carry one.
	Context proofshare.Context
	// Timeout of wallet core calls made by a command.
	Timeout time.Duration
}

// Command contains operations provided by the proof sharing controller.
type Command struct {
	client   *proofshare.Client
	notifier command.Notifier
	config   Config
}

// New returns a new proof sharing controller command instance. The notifier is optional.
func New(client *proofshare.Client, notifier command.Notifier, config *Config) *Command {
	cmd := &Command{client: client, notifier: notifier}

	if config != nil {
		cmd.config = *config
	}

	if cmd.config.Timeout == 0 {
		cmd.config.Timeout = defaultTimeout
	}

	return cmd
}

// GetHandlers returns list of all commands supported by this controller command.
func (o *Command) GetHandlers() []command.Handler {
	return []command.Handler{
		cmdutil.NewCommandHandler(CommandName, LoadMethod, o.Load),
		cmdutil.NewCommandHandler(CommandName, StateMethod, o.State),
		cmdutil.NewCommandHandler(CommandName, SelectCredentialsMethod, o.SelectCredentials),
		cmdutil.NewCommandHandler(CommandName, ConfirmChangeMethod, o.ConfirmChange),
		cmdutil.NewCommandHandler(CommandName, ToggleFieldMethod, o.ToggleField),
		cmdutil.NewCommandHandler(CommandName, ToggleOptionGroupMethod, o.ToggleOptionGroup),
		cmdutil.NewCommandHandler(CommandName, PreviewMethod, o.Preview),
		cmdutil.NewCommandHandler(CommandName, SubmitMethod, o.Submit),
		cmdutil.NewCommandHandler(CommandName, RejectMethod, o.Reject),
		cmdutil.NewCommandHandler(CommandName, CloseMethod, o.Close),
	}
}

// Load opens a session for a proof request, or reloads an existing session.
func (o *Command) Load(rw io.Writer, req io.Reader) command.Error {
	request := &LoadRequest{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, LoadMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.config.Timeout)
	defer cancel()

	var session *proofshare.Session

	if request.SessionID != "" {
		session, err = o.client.Session(request.SessionID)
		if err != nil {
			logutil.LogInfo(logger, CommandName, LoadMethod, err.Error())

			return command.NewValidationError(SessionNotFoundErrorCode, err)
		}

		err = session.Load(ctx)
	} else {
		if request.ProofID == "" {
			logutil.LogInfo(logger, CommandName, LoadMethod, "missing proof id")

			return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("proof id is mandatory"))
		}

		loadReq := &proofshare.LoadRequest{
			ProofID:       request.ProofID,
			InteractionID: request.InteractionID,
			Version:       request.Version,
		}

		if request.Definition != nil {
			loadReq.Definition, err = decodeDefinition(request)
			if err != nil {
				logutil.LogInfo(logger, CommandName, LoadMethod, err.Error())

				return command.NewValidationError(InvalidRequestErrorCode, err)
			}
		}

		session, err = o.client.Open(ctx, o.holderContext(request), loadReq)
	}

	if err != nil {
		logutil.LogError(logger, CommandName, LoadMethod, err.Error(),
			logutil.CreateKeyValueString("proofID", request.ProofID))

		return command.NewExecuteError(LoadErrorCode, err)
	}

	snap := session.Snapshot()
	o.notify(EventLoaded, snap)

	command.WriteNillableResponse(rw, newSessionResponse(snap, true), logger)

	logutil.LogDebug(logger, CommandName, LoadMethod, logSuccess,
		logutil.CreateKeyValueString(logSessionIDKey, snap.SessionID))

	return nil
}

// State returns the current selection of a session together with the normalized request.
func (o *Command) State(rw io.Writer, req io.Reader) command.Error {
	session, cmdErr := o.session(req, StateMethod)
	if cmdErr != nil {
		return cmdErr
	}

	snap := session.Snapshot()

	command.WriteNillableResponse(rw, newSessionResponse(snap, true), logger)

	logutil.LogDebug(logger, CommandName, StateMethod, logSuccess,
		logutil.CreateKeyValueString(logSessionIDKey, snap.SessionID))

	return nil
}

// SelectCredentials chooses the credentials of a slot. A change reaching several sets is returned
// with requiresConfirmation and has to be confirmed with ConfirmChange.
func (o *Command) SelectCredentials(rw io.Writer, req io.Reader) command.Error {
	request := &SelectCredentialsRequest{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, SelectCredentialsMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	session, cmdErr := o.lookup(request.SessionID, SelectCredentialsMethod)
	if cmdErr != nil {
		return cmdErr
	}

	snap, err := session.SelectCredentials(request.SlotID, request.CredentialIDs...)

	return o.writeEdit(rw, SelectCredentialsMethod, SelectCredentialsErrorCode, snap, err)
}

// ConfirmChange commits or declines the pending change of a session.
func (o *Command) ConfirmChange(rw io.Writer, req io.Reader) command.Error {
	request := &ConfirmChangeRequest{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, ConfirmChangeMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	session, cmdErr := o.lookup(request.SessionID, ConfirmChangeMethod)
	if cmdErr != nil {
		return cmdErr
	}

	snap, err := session.Confirm(request.ChangeID, request.Accept)

	return o.writeEdit(rw, ConfirmChangeMethod, ConfirmChangeErrorCode, snap, err)
}

// ToggleField discloses or hides an optional field.
func (o *Command) ToggleField(rw io.Writer, req io.Reader) command.Error {
	request := &ToggleFieldRequest{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, ToggleFieldMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	session, cmdErr := o.lookup(request.SessionID, ToggleFieldMethod)
	if cmdErr != nil {
		return cmdErr
	}

	snap, err := session.ToggleField(request.FieldToggle)

	return o.writeEdit(rw, ToggleFieldMethod, ToggleFieldErrorCode, snap, err)
}

// ToggleOptionGroup selects or deselects an option group of a set.
func (o *Command) ToggleOptionGroup(rw io.Writer, req io.Reader) command.Error {
	request := &ToggleOptionGroupRequest{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, ToggleOptionGroupMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	session, cmdErr := o.lookup(request.SessionID, ToggleOptionGroupMethod)
	if cmdErr != nil {
		return cmdErr
	}

	snap, err := session.ToggleOptionGroup(request.SetID, request.SlotIDs, request.Selected)

	return o.writeEdit(rw, ToggleOptionGroupMethod, ToggleOptionGroupErrorCode, snap, err)
}

// Preview returns the claim values the current selection would share.
func (o *Command) Preview(rw io.Writer, req io.Reader) command.Error {
	session, cmdErr := o.session(req, PreviewMethod)
	if cmdErr != nil {
		return cmdErr
	}

	claims, err := session.Preview()
	if err != nil {
		logutil.LogInfo(logger, CommandName, PreviewMethod, err.Error())

		return command.NewExecuteError(PreviewErrorCode, err)
	}

	command.WriteNillableResponse(rw, &PreviewResponse{Claims: claims}, logger)

	logutil.LogDebug(logger, CommandName, PreviewMethod, logSuccess,
		logutil.CreateKeyValueString(logSessionIDKey, session.ID()))

	return nil
}

// Submit sends the selection of a session to the wallet core.
func (o *Command) Submit(rw io.Writer, req io.Reader) command.Error {
	session, cmdErr := o.session(req, SubmitMethod)
	if cmdErr != nil {
		return cmdErr
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.config.Timeout)
	defer cancel()

	err := session.Submit(ctx)
	if err != nil {
		logutil.LogError(logger, CommandName, SubmitMethod, err.Error(),
			logutil.CreateKeyValueString(logSessionIDKey, session.ID()))

		return command.NewExecuteError(SubmitErrorCode, err)
	}

	snap := session.Snapshot()
	o.notify(EventSubmitted, snap)

	command.WriteNillableResponse(rw, newSessionResponse(snap, false), logger)

	logutil.LogDebug(logger, CommandName, SubmitMethod, logSuccess,
		logutil.CreateKeyValueString(logSessionIDKey, session.ID()))

	return nil
}

// Reject declines the proof request of a session.
func (o *Command) Reject(rw io.Writer, req io.Reader) command.Error {
	session, cmdErr := o.session(req, RejectMethod)
	if cmdErr != nil {
		return cmdErr
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.config.Timeout)
	defer cancel()

	err := session.Reject(ctx)
	if err != nil {
		logutil.LogError(logger, CommandName, RejectMethod, err.Error(),
			logutil.CreateKeyValueString(logSessionIDKey, session.ID()))

		return command.NewExecuteError(RejectErrorCode, err)
	}

	snap := session.Snapshot()
	o.notify(EventRejected, snap)

	command.WriteNillableResponse(rw, newSessionResponse(snap, false), logger)

	logutil.LogDebug(logger, CommandName, RejectMethod, logSuccess,
		logutil.CreateKeyValueString(logSessionIDKey, session.ID()))

	return nil
}

// Close discards a session.
func (o *Command) Close(rw io.Writer, req io.Reader) command.Error {
	request := &SessionRequest{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, CloseMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	if !o.client.Close(request.SessionID) {
		err = fmt.Errorf("%w: %s", proofshare.ErrSessionNotFound, request.SessionID)
		logutil.LogInfo(logger, CommandName, CloseMethod, err.Error())

		return command.NewValidationError(SessionNotFoundErrorCode, err)
	}

	o.notify(EventClosed, &proofshare.Snapshot{SessionID: request.SessionID})

	command.WriteNillableResponse(rw, nil, logger)

	logutil.LogDebug(logger, CommandName, CloseMethod, logSuccess,
		logutil.CreateKeyValueString(logSessionIDKey, request.SessionID))

	return nil
}

func (o *Command) session(req io.Reader, method string) (*proofshare.Session, command.Error) {
	request := &SessionRequest{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, method, err.Error())

		return nil, command.NewValidationError(InvalidRequestErrorCode, err)
	}

	return o.lookup(request.SessionID, method)
}

func (o *Command) lookup(sessionID, method string) (*proofshare.Session, command.Error) {
	if sessionID == "" {
		logutil.LogInfo(logger, CommandName, method, errMissingSessionID.Error())

		return nil, command.NewValidationError(InvalidRequestErrorCode, errMissingSessionID)
	}

	session, err := o.client.Session(sessionID)
	if err != nil {
		logutil.LogInfo(logger, CommandName, method, err.Error())

		return nil, command.NewValidationError(SessionNotFoundErrorCode, err)
	}

	return session, nil
}

// writeEdit reports the outcome of an edit. Edits referencing unknown parts of the request are
// validation errors, everything else is an execution error.
func (o *Command) writeEdit(rw io.Writer, method string, code command.Code,
	snap *proofshare.Snapshot, err error) command.Error {
	if err != nil {
		logutil.LogInfo(logger, CommandName, method, err.Error())

		if isInvalidEdit(err) {
			return command.NewValidationError(code, err)
		}

		return command.NewExecuteError(code, err)
	}

	resp := newSessionResponse(snap, false)

	if snap.Pending != nil {
		resp.RequiresConfirmation = true
		o.notify(EventConfirmationRequired, snap)
	} else {
		o.notify(EventChanged, snap)
	}

	command.WriteNillableResponse(rw, resp, logger)

	logutil.LogDebug(logger, CommandName, method, logSuccess,
		logutil.CreateKeyValueString(logSessionIDKey, snap.SessionID))

	return nil
}

func isInvalidEdit(err error) bool {
	for _, target := range []error{
		engine.ErrUnknownSet, engine.ErrUnknownSlot, engine.ErrUnknownField,
		engine.ErrUnknownCredential, engine.ErrUnknownOptionGroup, proofshare.ErrNoPendingChange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func decodeDefinition(request *LoadRequest) (*engine.Definition, error) {
	if request.Version == presentation.V1 {
		def, err := presentation.DecodeDefinitionV1(request.Definition)
		if err != nil {
			return nil, err
		}

		return &engine.Definition{V1: def}, nil
	}

	def, err := presentation.DecodeDefinitionV2(request.Definition)
	if err != nil {
		return nil, err
	}

	return &engine.Definition{V2: def}, nil
}

func (o *Command) holderContext(request *LoadRequest) proofshare.Context {
	pctx := o.config.Context

	if request.OrganisationID != "" {
		pctx.OrganisationID = request.OrganisationID
	}

	if request.DidID != "" {
		pctx.DidID = request.DidID
	}

	if request.KeyID != "" {
		pctx.KeyID = request.KeyID
	}

	return pctx
}

func (o *Command) notify(eventType string, snap *proofshare.Snapshot) {
	if o.notifier == nil {
		return
	}

	msg, err := json.Marshal(&Event{
		Type:      eventType,
		SessionID: snap.SessionID,
		ProofID:   snap.ProofID,
		Phase:     snap.Phase,
		Ready:     snap.Ready(),
		Pending:   snap.Pending,
	})
	if err != nil {
		logger.Errorf("failed to marshal %s event: %v", eventType, err)

		return
	}

	if err := o.notifier.Notify(Topic, msg); err != nil {
		logger.Warnf("failed to notify %s event for session %s: %v", eventType, snap.SessionID, err)
	}
}

func newSessionResponse(snap *proofshare.Snapshot, withRequest bool) *SessionResponse {
	resp := &SessionResponse{Snapshot: snap, Ready: snap.Ready()}

	if withRequest && snap.Graph != nil {
		resp.Request = newRequestView(snap.Graph)
	}

	return resp
}

func newRequestView(g *engine.Graph) *RequestView {
	view := &RequestView{
		Sets:                  g.Sets,
		Slots:                 g.Slots(),
		InitiallyExpandedSlot: g.InitiallyExpandedSlot(),
	}

	for _, s := range g.SimpleSets() {
		view.SimpleSetIDs = append(view.SimpleSetIDs, s.ID)
	}

	for _, s := range g.OptionSets() {
		view.OptionSetIDs = append(view.OptionSetIDs, s.ID)
	}

	return view
}
