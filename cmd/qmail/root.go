package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/stlalpha/qmail/internal/config"
	"github.com/stlalpha/qmail/internal/logging"
	"github.com/stlalpha/qmail/internal/qwk"
	"github.com/stlalpha/qmail/internal/term"
)

type GlobalFlags struct {
	configFile string
	quiet      bool
	debug      bool
}

var (
	global GlobalFlags
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:           "qmail",
	Short:         "QWK offline mail tools: export, index, inspect, reply, toss",
	Long:          "\nQWK offline mail tools: export, index, inspect, reply, toss",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initLog, initConfig)
	flag := rootCmd.PersistentFlags()
	flag.StringVarP(&global.configFile, "config", "c", "configs/qmail.json", "configuration file (.json, .yaml)")
	flag.BoolVarP(&global.quiet, "quiet", "q", false, "only display warnings and errors")
	flag.BoolVarP(&global.debug, "debug", "d", false, "display debugging information")
}

func initLog() {
	term.Init()
	switch {
	case global.debug || os.Getenv("DEBUG") == "1":
		logging.DebugEnabled = true
		term.SetLevel(term.LevelDebug)
	case global.quiet:
		term.SetLevel(term.LevelWarn)
	}
}

func initConfig() {
	var err error
	cfg, err = config.Load(global.configFile)
	if err != nil {
		term.Errorf("cannot read configuration file: %s", err)
		os.Exit(1)
	}
}

// codec returns the codec built from the loaded configuration. The
// configuration was validated on load.
func codec() *qwk.Codec {
	c, err := cfg.NewCodec()
	if err != nil {
		return qwk.DefaultCodec
	}
	return c
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		term.Error(err)
		os.Exit(1)
	}
}
