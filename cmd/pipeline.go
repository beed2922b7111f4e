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

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/weftnet/client/streaming"
)

// pipelineCmd groups the media pipeline operations.
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Drives media pipelines on the streaming manager",
	Long: `Drives media pipelines on the streaming manager.

Pipelines live in the manager's registry for the process lifetime, so
start, stop, and close only reach pipelines created in the same run.`,
	Args: cobra.NoArgs,
}

// pipelineCreateCmd builds a capture-to-null pipeline, runs it for the
// configured time, and prints its stats before closing it.
var pipelineCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Creates a capture-to-null pipeline and runs it briefly",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := loadClient()
		defer shutdownClient(c)
		connectClient(c)

		sm := c.GetStreaming()
		source, err := sm.CreateSource(streaming.SourceLocal,
			streaming.SourceParams{})
		if err != nil {
			fail(err)
		}
		sink, err := sm.CreateSink(streaming.SinkNull, streaming.SinkParams{})
		if err != nil {
			fail(err)
		}

		id, err := sm.CreatePipeline(source, sink, clientParams().Streaming)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Pipeline %s created\n", id)

		if err = sm.StartPipeline(id); err != nil {
			fail(err)
		}
		time.Sleep(time.Duration(viper.GetUint("runtime")) * time.Second)

		stats, err := sm.PipelineStats(id)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Latency %s, bitrate %.0f b/s, active %t\n",
			stats.Latency, stats.Bitrate, stats.Active)

		if err = sm.StopPipeline(id); err != nil {
			fail(err)
		}
		if err = sm.ClosePipeline(id); err != nil {
			fail(err)
		}
		fmt.Printf("Pipeline %s closed\n", id)
	},
}

var pipelineStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Starts a created pipeline",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parsePipelineID(args[0])
		c := loadClient()
		defer shutdownClient(c)
		connectClient(c)

		if err := c.GetStreaming().StartPipeline(id); err != nil {
			fail(err)
		}
		fmt.Printf("Pipeline %s started\n", id)
	},
}

var pipelineStopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stops a running pipeline",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parsePipelineID(args[0])
		c := loadClient()
		defer shutdownClient(c)
		connectClient(c)

		if err := c.GetStreaming().StopPipeline(id); err != nil {
			fail(err)
		}
		fmt.Printf("Pipeline %s stopped\n", id)
	},
}

var pipelineCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Closes a pipeline and releases its endpoints",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parsePipelineID(args[0])
		c := loadClient()
		defer shutdownClient(c)
		connectClient(c)

		if err := c.GetStreaming().ClosePipeline(id); err != nil {
			fail(err)
		}
		fmt.Printf("Pipeline %s closed\n", id)
	},
}

// parsePipelineID parses a pipeline ID argument.
func parsePipelineID(arg string) streaming.PipelineID {
	u, err := uuid.Parse(arg)
	if err != nil {
		fail(errors.WithMessage(err, "invalid pipeline ID"))
	}
	return streaming.PipelineID(u)
}

func init() {
	pipelineCreateCmd.Flags().Uint("runtime", 2,
		"Seconds to run the pipeline before it is closed")
	viper.BindPFlag("runtime", pipelineCreateCmd.Flags().Lookup("runtime"))

	pipelineCmd.AddCommand(pipelineCreateCmd)
	pipelineCmd.AddCommand(pipelineStartCmd)
	pipelineCmd.AddCommand(pipelineStopCmd)
	pipelineCmd.AddCommand(pipelineCloseCmd)
	rootCmd.AddCommand(pipelineCmd)
}
