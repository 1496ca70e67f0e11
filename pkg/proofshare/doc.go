/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package proofshare maps a verifier's presentation request onto the holder's credentials and keeps
// track of what the holder agrees to share.
//
// Both request protocol versions are normalized into a single requirement graph of sets, option
// groups and slots. Preselect computes the default selection, SelectCredentials, ToggleField and
// ToggleOptionGroup apply holder edits and return a new immutable State together with the number of
// sets the edit touches, Validate and IsReadyToSubmit derive readiness, and Serialize produces the
// submission payload.
package proofshare
