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

// statusCmd connects and prints the merged session status.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the network session status",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := loadClient()
		defer shutdownClient(c)
		connectClient(c)

		status := c.Status()
		fmt.Printf("Connected: %t\n", status.Connected)
		fmt.Printf("Interfaces: %d\n", status.Interfaces)
		fmt.Printf("Peers: %d\n", status.Peers)
		if !status.IdentityHash.IsZero() {
			fmt.Printf("Address: %s\n", status.IdentityHash)
		}
		fmt.Printf("Display name: %s\n", c.DisplayName())
		fmt.Printf("Follower: %s\n", c.NetworkFollowerStatus())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
