////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/messaging"
)

// retryInterval paces the resolution and delivery polls.
const retryInterval = 250 * time.Millisecond

// sendCmd sends one message and waits for it to reach a terminal delivery
// state. Everything after the address is joined into the content.
var sendCmd = &cobra.Command{
	Use:   "send <address> <content>",
	Short: "Sends a message to the peer at the given hex address",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		target, err := address.FromString(args[0])
		if err != nil {
			fail(err)
		}
		content := strings.Join(args[1:], " ")

		c := loadClient()
		defer shutdownClient(c)
		connectClient(c)

		msgr := c.GetMessaging()
		deadline := netTime.Now().Add(waitTimeout())

		// Resolving the destination may need a path request round trip,
		// so retry unknown identities until the deadline.
		var msg *messaging.Message
		for {
			msg, err = msgr.CreateMessage(target.Bytes(), []byte(content),
				viper.GetString("title"), nil)
			if err == nil {
				break
			}
			if !errors.Is(err, messaging.ErrIdentityUnknown) ||
				!netTime.Now().Before(deadline) {
				fail(err)
			}
			time.Sleep(retryInterval)
		}

		if err = msgr.Send(msg); err != nil {
			fail(err)
		}

		state := awaitTerminal(msgr, msg.ID, deadline)
		fmt.Printf("Message %s is %s\n", msg.ID, state)
		if state == messaging.Failed {
			os.Exit(1)
		}
	},
}

// awaitTerminal polls the outbound status until the message reaches a
// terminal state or the deadline passes.
func awaitTerminal(m *messaging.Manager, id uuid.UUID,
	deadline time.Time) messaging.MessageState {
	for {
		state, ok := m.OutboundStatus(id)
		if !ok {
			return messaging.Failed
		}
		if state.Terminal() || !netTime.Now().Before(deadline) {
			return state
		}
		time.Sleep(retryInterval)
	}
}

func init() {
	sendCmd.Flags().StringP("title", "t", "",
		"Title field attached to the message")
	viper.BindPFlag("title", sendCmd.Flags().Lookup("title"))

	rootCmd.AddCommand(sendCmd)
}
