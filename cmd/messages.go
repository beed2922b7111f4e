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

// messagesCmd prints the stored message history. It reads straight from
// storage and never touches the network.
var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Prints the stored message history, oldest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := loadClient()
		defer shutdownClient(c)

		records := c.GetMessaging().Records()
		if len(records) == 0 {
			fmt.Println("No messages")
			return
		}

		// Records are held newest first; print in reading order.
		for i := len(records) - 1; i >= 0; i-- {
			rec := records[i]
			direction := "from"
			if rec.SentBySelf {
				direction = "to"
			}
			line := fmt.Sprintf("%s %s %s",
				rec.ReceivedAt.Format("2006-01-02 15:04:05"), direction,
				rec.SenderName)
			if rec.Title != "" {
				line += fmt.Sprintf(" [%s]", rec.Title)
			}
			fmt.Printf("%s: %s\n", line, rec.Content)
		}
	},
}

func init() {
	rootCmd.AddCommand(messagesCmd)
}
