/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"github.com/walletkit/holder-agent-go/pkg/controller/command/proofshare"
)

// loadRequest is request model for loading a proof request.
//
// swagger:parameters loadReq
type loadRequest struct { // nolint: unused,deadcode
	// Params for loading a proof request.
	//
	// in: body
	Params *proofshare.LoadRequest
}

// sessionRequest addresses a session by its ID.
//
// swagger:parameters sessionReq
type sessionRequest struct { // nolint: unused,deadcode
	// Session ID.
	//
	// in: path
	// required: true
	ID string `json:"id"`
}

// selectCredentialsRequest is request model for choosing the credentials of a slot.
//
// swagger:parameters selectCredentialsReq
type selectCredentialsRequest struct { // nolint: unused,deadcode
	// in: body
	Params *proofshare.SelectCredentialsRequest
}

// confirmChangeRequest is request model for confirming a pending change.
//
// swagger:parameters confirmChangeReq
type confirmChangeRequest struct { // nolint: unused,deadcode
	// in: body
	Params *proofshare.ConfirmChangeRequest
}

// toggleFieldRequest is request model for disclosing or hiding a field.
//
// swagger:parameters toggleFieldReq
type toggleFieldRequest struct { // nolint: unused,deadcode
	// in: body
	Params *proofshare.ToggleFieldRequest
}

// toggleOptionGroupRequest is request model for toggling an option group.
//
// swagger:parameters toggleOptionGroupReq
type toggleOptionGroupRequest struct { // nolint: unused,deadcode
	// in: body
	Params *proofshare.ToggleOptionGroupRequest
}

// sessionResponse is the state of a proof sharing session.
//
// swagger:response sessionRes
type sessionResponse struct { // nolint: unused,deadcode
	// in: body
	proofshare.SessionResponse
}

// previewResponse lists the claims the current selection discloses.
//
// swagger:response previewRes
type previewResponse struct { // nolint: unused,deadcode
	// in: body
	proofshare.PreviewResponse
}

// emptyResponse model
//
// swagger:response emptyRes
type emptyResponse struct{} // nolint: unused,deadcode
