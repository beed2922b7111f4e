////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/streaming"
)

// callCmd places a voice call and holds it until the peer hangs up or the
// hold time passes. With no capture device flagged in, the outbound
// pipeline carries silence.
var callCmd = &cobra.Command{
	Use:   "call <address>",
	Short: "Places a voice call to the peer at the given hex address",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target, err := address.FromString(args[0])
		if err != nil {
			fail(err)
		}

		c := loadClient()
		defer shutdownClient(c)
		connectClient(c)

		fmt.Printf("Calling %s\n", target.ShortString())
		tel, err := c.GetStreaming().CreateTelephone(target,
			streaming.CallParams{})
		if err != nil {
			fail(err)
		}

		ended := make(chan struct{})
		tel.OnStateChange(func(state streaming.CallState) {
			if state == streaming.Ended {
				close(ended)
			}
		})
		if tel.CallState() == streaming.Ended {
			fmt.Println("Call ended")
			return
		}
		fmt.Printf("Call %s established\n", tel.ID())

		hold := time.Duration(viper.GetUint("duration")) * time.Second
		select {
		case <-ended:
			fmt.Println("Peer hung up")
		case <-time.After(hold):
			tel.Hangup()
			fmt.Println("Call complete")
		}
	},
}

func init() {
	callCmd.Flags().Uint("duration", 10,
		"Seconds to hold the call before hanging up")
	viper.BindPFlag("duration", callCmd.Flags().Lookup("duration"))

	rootCmd.AddCommand(callCmd)
}
