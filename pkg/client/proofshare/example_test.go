/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proofshare

import (
	"context"
	"fmt"

	mockcore "github.com/walletkit/holder-agent-go/pkg/mock/walletcore"
)

func ExampleClient_Open() {
	def := sharedQueryDefinition()
	core := &mockcore.MockService{
		DefinitionV2Value: def,
		Credentials:       def.CredentialQueries["Q1"].ApplicableCredentials,
	}

	client := New(core)

	session, err := client.Open(context.Background(), Context{OrganisationID: "org-1", DidID: "did-1"},
		&LoadRequest{ProofID: "proof-1"})
	if err != nil {
		fmt.Println(err)

		return
	}

	snap, err := session.SelectCredentials("Q1", "credB")
	if err != nil {
		fmt.Println(err)

		return
	}

	fmt.Println("affected sets:", snap.Pending.AffectedSetCount)

	snap, err = session.Confirm(snap.Pending.ID, true)
	if err != nil {
		fmt.Println(err)

		return
	}

	fmt.Println(snap.Phase, snap.State.Entries("1", "Q1")[0].CredentialID)

	if err := session.Submit(context.Background()); err != nil {
		fmt.Println(err)

		return
	}

	fmt.Println(session.Snapshot().Phase)

	client.Close(session.ID())

	// Output:
	// affected sets: 2
	// ready credB
	// submitted
}
