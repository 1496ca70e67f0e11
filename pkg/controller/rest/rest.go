/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/walletkit/holder-agent-go/pkg/common/log"
	"github.com/walletkit/holder-agent-go/pkg/controller/command"
)

var logger = log.New("holder-agent/rest")

// Handler http handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

// genericErrorBody is the error response body of every REST operation.
type genericErrorBody struct {
	Code    command.Code `json:"code"`
	Message string       `json:"message"`
}

// Execute executes given command with args provided and writes response to the response writer.
func Execute(exec command.Exec, rw http.ResponseWriter, req io.Reader) {
	var buf bytes.Buffer

	if err := exec(&buf, req); err != nil {
		SendError(rw, err)

		return
	}

	rw.Header().Set("Content-Type", "application/json")

	if _, err := rw.Write(buf.Bytes()); err != nil {
		logger.Errorf("Unable to send response, %s", err)
	}
}

// SendError sends command error as http response in generic error format.
func SendError(rw http.ResponseWriter, err command.Error) {
	var status int

	switch err.Type() {
	case command.ValidationError:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	SendHTTPStatusError(rw, status, err.Code(), err)
}

// SendHTTPStatusError sends given http status code to response with error body.
func SendHTTPStatusError(rw http.ResponseWriter, httpStatus int, code command.Code, err error) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(httpStatus)

	e := json.NewEncoder(rw).Encode(genericErrorBody{
		Code:    code,
		Message: err.Error(),
	})
	if e != nil {
		logger.Errorf("Unable to send error response, %s", e)
	}
}
