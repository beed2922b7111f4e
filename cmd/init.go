////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/weftnet/client"
)

// initCmd creates a session in the storage directory and prints the
// address of its identity. Running it against an existing session keeps
// the identity and only updates the display name.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Creates a client session and identity in the storage directory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetUint("logLevel"), viper.GetString("log"))

		storageDir := sessionDir()
		err := client.NewClient(storageDir, viper.GetString("password"),
			viper.GetString("name"))
		if err != nil {
			fail(err)
		}

		c := loadClient()
		defer shutdownClient(c)

		hash, ok := c.IdentityHash()
		if !ok {
			fail(errors.New("no identity is loaded"))
		}
		fmt.Printf("Session ready in %s\n", storageDir)
		fmt.Printf("Address: %s\n", hash)
		fmt.Printf("Display name: %s\n", c.DisplayName())
	},
}

func init() {
	initCmd.Flags().StringP("name", "n", "",
		"Display name announced to peers")
	viper.BindPFlag("name", initCmd.Flags().Lookup("name"))

	rootCmd.AddCommand(initCmd)
}
