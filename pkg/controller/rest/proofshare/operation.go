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

	"github.com/gorilla/mux"

	client "github.com/walletkit/holder-agent-go/pkg/client/proofshare"
	"github.com/walletkit/holder-agent-go/pkg/controller/command"
	"github.com/walletkit/holder-agent-go/pkg/controller/command/proofshare"
	"github.com/walletkit/holder-agent-go/pkg/controller/internal/cmdutil"
	"github.com/walletkit/holder-agent-go/pkg/controller/rest"
)

// All command operations.
const (
	OperationID = "/proofshare"
	sessionPath = OperationID + "/sessions/{id}"

	// command Paths.
	LoadPath              = OperationID + "/load"
	StatePath             = sessionPath
	SelectCredentialsPath = OperationID + "/select-credentials"
	ConfirmChangePath     = OperationID + "/confirm"
	ToggleFieldPath       = OperationID + "/toggle-field"
	ToggleOptionGroupPath = OperationID + "/toggle-option-group"
	PreviewPath           = sessionPath + "/preview"
	SubmitPath            = sessionPath + "/submit"
	RejectPath            = sessionPath + "/reject"
	ClosePath             = sessionPath
)

type proofShareCommand interface {
	Load(rw io.Writer, req io.Reader) command.Error
	State(rw io.Writer, req io.Reader) command.Error
	SelectCredentials(rw io.Writer, req io.Reader) command.Error
	ConfirmChange(rw io.Writer, req io.Reader) command.Error
	ToggleField(rw io.Writer, req io.Reader) command.Error
	ToggleOptionGroup(rw io.Writer, req io.Reader) command.Error
	Preview(rw io.Writer, req io.Reader) command.Error
	Submit(rw io.Writer, req io.Reader) command.Error
	Reject(rw io.Writer, req io.Reader) command.Error
	Close(rw io.Writer, req io.Reader) command.Error
}

// Operation contains REST operations provided by the proof sharing controller.
type Operation struct {
	handlers []rest.Handler
	command  proofShareCommand
}

// New returns new proof sharing REST controller.
func New(c *client.Client, notifier command.Notifier, config *proofshare.Config) *Operation {
	o := &Operation{command: proofshare.New(c, notifier, config)}

	o.registerHandler()

	return o
}

// GetRESTHandlers get all controller API handler available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

// registerHandler register handlers to be exposed from this service as REST API endpoints.
func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(LoadPath, http.MethodPost, o.Load),
		cmdutil.NewHTTPHandler(StatePath, http.MethodGet, o.State),
		cmdutil.NewHTTPHandler(SelectCredentialsPath, http.MethodPost, o.SelectCredentials),
		cmdutil.NewHTTPHandler(ConfirmChangePath, http.MethodPost, o.ConfirmChange),
		cmdutil.NewHTTPHandler(ToggleFieldPath, http.MethodPost, o.ToggleField),
		cmdutil.NewHTTPHandler(ToggleOptionGroupPath, http.MethodPost, o.ToggleOptionGroup),
		cmdutil.NewHTTPHandler(PreviewPath, http.MethodGet, o.Preview),
		cmdutil.NewHTTPHandler(SubmitPath, http.MethodPost, o.Submit),
		cmdutil.NewHTTPHandler(RejectPath, http.MethodPost, o.Reject),
		cmdutil.NewHTTPHandler(ClosePath, http.MethodDelete, o.Close),
	}
}

// Load swagger:route POST /proofshare/load proofshare loadReq
//
// Fetches a proof request from the wallet core and preselects credentials for it. Without a session
// ID a new session is opened, otherwise the request of the session is fetched again.
//
// Responses:
//    default: genericError
//        200: sessionRes
func (o *Operation) Load(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.Load, rw, req.Body)
}

// State swagger:route GET /proofshare/sessions/{id} proofshare sessionReq
//
// Returns the normalized proof request and the current selection of a session.
//
// Responses:
//    default: genericError
//        200: sessionRes
func (o *Operation) State(rw http.ResponseWriter, req *http.Request) {
	o.executeForSession(o.command.State, rw, req)
}

// SelectCredentials swagger:route POST /proofshare/select-credentials proofshare selectCredentialsReq
//
// Chooses the credentials of a requirement slot. A change reaching more than one credential set is
// answered with requiresConfirmation and only applied once confirmed.
//
// Responses:
//    default: genericError
//        200: sessionRes
func (o *Operation) SelectCredentials(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.SelectCredentials, rw, req.Body)
}

// ConfirmChange swagger:route POST /proofshare/confirm proofshare confirmChangeReq
//
// Applies or drops the change awaiting confirmation.
//
// Responses:
//    default: genericError
//        200: sessionRes
func (o *Operation) ConfirmChange(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.ConfirmChange, rw, req.Body)
}

// ToggleField swagger:route POST /proofshare/toggle-field proofshare toggleFieldReq
//
// Discloses or hides an optional field of a selected credential.
//
// Responses:
//    default: genericError
//        200: sessionRes
func (o *Operation) ToggleField(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.ToggleField, rw, req.Body)
}

// ToggleOptionGroup swagger:route POST /proofshare/toggle-option-group proofshare toggleOptionGroupReq
//
// Selects or deselects an option group of a credential set.
//
// Responses:
//    default: genericError
//        200: sessionRes
func (o *Operation) ToggleOptionGroup(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.ToggleOptionGroup, rw, req.Body)
}

// Preview swagger:route GET /proofshare/sessions/{id}/preview proofshare sessionReq
//
// Returns the claim values the current selection would disclose.
//
// Responses:
//    default: genericError
//        200: previewRes
func (o *Operation) Preview(rw http.ResponseWriter, req *http.Request) {
	o.executeForSession(o.command.Preview, rw, req)
}

// Submit swagger:route POST /proofshare/sessions/{id}/submit proofshare sessionReq
//
// Submits the selection of a session to the wallet core.
//
// Responses:
//    default: genericError
//        200: sessionRes
func (o *Operation) Submit(rw http.ResponseWriter, req *http.Request) {
	o.executeForSession(o.command.Submit, rw, req)
}

// Reject swagger:route POST /proofshare/sessions/{id}/reject proofshare sessionReq
//
// Declines the proof request of a session.
//
// Responses:
//    default: genericError
//        200: sessionRes
func (o *Operation) Reject(rw http.ResponseWriter, req *http.Request) {
	o.executeForSession(o.command.Reject, rw, req)
}

// Close swagger:route DELETE /proofshare/sessions/{id} proofshare sessionReq
//
// Discards a session.
//
// Responses:
//    default: genericError
//        200: emptyRes
func (o *Operation) Close(rw http.ResponseWriter, req *http.Request) {
	o.executeForSession(o.command.Close, rw, req)
}

func (o *Operation) executeForSession(exec command.Exec, rw http.ResponseWriter, req *http.Request) {
	id, found := getIDFromRequest(rw, req)
	if !found {
		return
	}

	body, err := json.Marshal(&proofshare.SessionRequest{SessionID: id})
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusInternalServerError, proofshare.InvalidRequestErrorCode, err)

		return
	}

	rest.Execute(exec, rw, bytes.NewBuffer(body))
}

func getIDFromRequest(rw http.ResponseWriter, req *http.Request) (string, bool) {
	id := mux.Vars(req)["id"]
	if id == "" {
		rest.SendHTTPStatusError(rw, http.StatusBadRequest, proofshare.InvalidRequestErrorCode,
			fmt.Errorf("empty session ID"))
		return "", false
	}

	return id, true
}
