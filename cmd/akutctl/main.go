// Command akutctl grades and inspects scenario files offline.
package main

import (
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/okian/akut/pkg/logger"
)

// options are shared by every subcommand.
type options struct {
	LogLevel  string            `long:"log-level" default:"warn" description:"log level: debug, info, warn, error"`
	ActionMap map[string]string `short:"m" long:"map" description:"override a device event translation as TYPE:ACTION_ID (repeatable)"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, executes the selected subcommand and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "akutctl"

	addCommands(parser, &opts, stdout)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if err := logger.Init(logger.WithWriter(stderr), logger.WithFormat(logger.FormatTerminal)); err != nil {
			return err
		}
		if err := logger.SetLevelString(opts.LogLevel); err != nil {
			return err
		}
		return cmd.Execute(args)
	}

	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			_, _ = io.WriteString(stdout, err.Error()+"\n")
			return 0
		}
		_, _ = io.WriteString(stderr, "akutctl: "+err.Error()+"\n")
		return 1
	}
	return 0
}
