////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// announceCmd puts the identity announce on the air so peers can resolve
// this client's address and display name.
var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Broadcasts the identity announce so peers can resolve this client",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := loadClient()
		defer shutdownClient(c)
		connectClient(c)

		if err := c.GetMessaging().Announce(); err != nil {
			fail(err)
		}

		status := c.Status()
		hash, _ := c.IdentityHash()
		fmt.Printf("Announced %s as %q to %d peers\n",
			hash, c.DisplayName(), status.Peers)
	},
}

func init() {
	rootCmd.AddCommand(announceCmd)
}
