package main

import (
	"fmt"
	"io"
	"log"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/ccost/internal/config"
	"github.com/janekbaraniewski/ccost/internal/version"
)

func main() {
	if os.Getenv("CCOST_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	root := cobra.Command{
		Use:           "ccost",
		Short:         "Token usage and cost reports for Claude Code and Codex session logs.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDailyCommand(cfg))
	root.AddCommand(newMonthlyCommand(cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
