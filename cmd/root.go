////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/weftnet/client"
	"gitlab.com/weftnet/client/mesh/loopnet"
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "client",
	Short: "Runs a client for the weft overlay network",
	Args:  cobra.NoArgs,
}

// fail prints the error that ended the run to stderr and exits nonzero.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	os.Exit(1)
}

// sessionDir returns the configured storage directory. Every stateful
// command needs one.
func sessionDir() string {
	dir := viper.GetString("session")
	if dir == "" {
		fail(errors.New("a session directory is required; set --session"))
	}
	return dir
}

// clientParams builds the client parameters, applying any JSON overrides
// from the --params flag.
func clientParams() client.Params {
	params, err := client.GetParameters(viper.GetString("params"))
	if err != nil {
		jww.FATAL.Panicf("Failed to parse client parameters: %+v", err)
	}
	return params
}

// loadClient opens the session storage and wires the client onto a fresh
// loopnet node. The node stays inert until the network is initialized, so
// offline commands can load without --loopback.
func loadClient() *client.Client {
	initLog(viper.GetUint("logLevel"), viper.GetString("log"))

	profileOut := viper.GetString("profile-cpu")
	if profileOut != "" {
		f, err := os.Create(profileOut)
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		pprof.StartCPUProfile(f)
	}

	node := loopnet.NewHub().NewNode(loopnet.GetDefaultParams())
	c, err := client.LoadClient(sessionDir(), viper.GetString("password"),
		node, clientParams())
	if err != nil {
		jww.FATAL.Panicf("Failed to load client session: %+v", err)
	}
	return c
}

// connectClient brings the network up and waits until the session is
// healthy or the wait timeout passes. The in-process loop network is the
// only transport wired into this binary, so connecting requires --loopback.
func connectClient(c *client.Client) {
	if !viper.GetBool("loopback") {
		fail(errors.New("no transport is configured; pass --loopback to " +
			"run against the in-process loop network"))
	}

	if err := c.InitializeNetwork(); err != nil {
		fail(err)
	}
	if err := c.StartNetworkFollower(waitTimeout()); err != nil {
		fail(err)
	}
}

// waitTimeout returns the --waitTimeout flag as a duration.
func waitTimeout() time.Duration {
	return time.Duration(viper.GetUint("waitTimeout")) * time.Second
}

// shutdownClient tears the client down at the end of a run.
func shutdownClient(c *client.Client) {
	if err := c.Shutdown(); err != nil {
		jww.ERROR.Printf("Failed to shut the client down: %+v", err)
	}
	if viper.GetString("profile-cpu") != "" {
		pprof.StopCPUProfile()
	}
}

func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(ioutil.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.INFO.Printf("log level set to: INFO")
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}
}

// init is the initialization function for Cobra which defines commands
// and flags.
func init() {
	// NOTE: The point of init() is to be declarative.
	// There is one init in each sub command. Do not put variable
	// declarations here, and ensure all the Flags are of the *P variety,
	// unless there's a very good reason not to have them as local params
	// to sub command.
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().UintP("logLevel", "v", 0,
		"Verbose mode for debugging")
	viper.BindPFlag("logLevel", rootCmd.PersistentFlags().Lookup("logLevel"))

	rootCmd.PersistentFlags().StringP("session", "s", "",
		"Sets the storage directory for client session data")
	viper.BindPFlag("session", rootCmd.PersistentFlags().Lookup("session"))

	rootCmd.PersistentFlags().StringP("password", "p", "",
		"Password to the session file")
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup(
		"password"))

	rootCmd.PersistentFlags().StringP("log", "l", "-",
		"Path to the log output path (- is stdout)")
	viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))

	rootCmd.PersistentFlags().Bool("loopback", false,
		"Runs against the in-process loop network instead of a real "+
			"transport")
	viper.BindPFlag("loopback", rootCmd.PersistentFlags().Lookup("loopback"))

	rootCmd.PersistentFlags().String("params", "",
		"JSON object overriding the default client parameters")
	viper.BindPFlag("params", rootCmd.PersistentFlags().Lookup("params"))

	rootCmd.PersistentFlags().UintP("waitTimeout", "w", 15,
		"Seconds to wait for the network session to connect")
	viper.BindPFlag("waitTimeout", rootCmd.PersistentFlags().Lookup(
		"waitTimeout"))

	rootCmd.PersistentFlags().String("profile-cpu", "",
		"Enable cpu profiling to this file")
	viper.BindPFlag("profile-cpu", rootCmd.PersistentFlags().Lookup(
		"profile-cpu"))
}

// initConfig reads in ENV variables if set. Every flag can also be set
// through the environment as WEFT_<FLAGNAME>.
func initConfig() {
	viper.SetEnvPrefix("weft")
	viper.AutomaticEnv()
}
