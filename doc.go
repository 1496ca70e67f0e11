/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package holderagent lets a credential holder answer proof requests from verifiers.
//
// Packages for end developer usage
//
// pkg/proofshare: The proof sharing engine. It turns v1 and v2 proof request definitions into a
// requirement graph, preselects credentials, reconciles holder edits and serializes the submission.
//
// pkg/client/proofshare: Runs proof sharing sessions against a wallet core. A session loads the
// request, keeps the current selection and submits or rejects the proof.
//
// pkg/walletcore/httpbinding: The wallet core client speaking the core's HTTP API.
//
// pkg/controller/rest/proofshare: Provides proof sharing through a REST API.
//
// Basic workflow
//
//      1) Create a wallet core client, optionally wrapped by pkg/walletcore/cached.
//      2) Create a proof sharing client with proofshare.New, passing the core.
//      3) Open a session for a proof request and adjust the selection.
//      4) Submit or reject the proof.
package holderagent
