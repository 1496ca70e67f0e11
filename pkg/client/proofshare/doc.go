/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package proofshare runs proof sharing sessions: it loads a verifier's request from the wallet core,
// keeps the holder's selection while it is edited and submits or rejects the proof.
//
//  Basic Flow:
//  1) Create client with a wallet core
//  2) Open a session for a proof id with the holder context
//  3) Edit the selection; confirm changes that reach several credential sets
//  4) Submit once the session is ready, or reject
//  5) Close the session
//
package proofshare
