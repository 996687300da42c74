// Command ubtc is the client-side walker driver (spec.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SumiTomohiko/ubackup/pkg/cmd"
	"github.com/SumiTomohiko/ubackup/pkg/logging"
	"github.com/SumiTomohiko/ubackup/pkg/session"
	"github.com/SumiTomohiko/ubackup/pkg/ubackup"
)

var rootConfiguration struct {
	root                        string
	command                     string
	hostname                    string
	ubtsPath                    string
	local                       bool
	printStatistics             bool
	disableSkippedSocketWarning bool
	version                     bool
}

func rootMain(command *cobra.Command, arguments []string) error {
	if rootConfiguration.version {
		fmt.Println(ubackup.Version)
		return nil
	}

	sources := arguments[:len(arguments)-1]
	destDir := arguments[len(arguments)-1]

	logger := logging.New(logging.StderrBackend{})

	opts := session.ClientOptions{
		Root:                        rootConfiguration.root,
		Command:                     rootConfiguration.command,
		Hostname:                    rootConfiguration.hostname,
		UbtsPath:                    rootConfiguration.ubtsPath,
		Local:                       rootConfiguration.local,
		PrintStatistics:             rootConfiguration.printStatistics,
		DisableSkippedSocketWarning: rootConfiguration.disableSkippedSocketWarning,
		Sources:                     sources,
		DestDir:                     destDir,
	}
	return session.RunClient(opts, logger)
}

var rootCommand = &cobra.Command{
	Use:   "ubtc SRC_DIR... DEST_DIR",
	Short: "Walk a source tree and stream it to a ubts snapshot server",
	Args:  cobra.MinimumNArgs(2),
	Run:   cmd.Mainify(rootMain),
}

func init() {
	flags := rootCommand.Flags()
	flags.StringVar(&rootConfiguration.root, "root", "/", "root directory ancestor emission stops at")
	flags.StringVar(&rootConfiguration.command, "command", "", "transport command template (default depends on --local)")
	flags.StringVar(&rootConfiguration.hostname, "hostname", "", "remote hostname substituted for {hostname}")
	flags.StringVar(&rootConfiguration.ubtsPath, "ubts-path", "ubts", "remote ubts path substituted for {ubts_path}")
	flags.BoolVar(&rootConfiguration.local, "local", false, "run the server locally instead of over ssh")
	flags.BoolVar(&rootConfiguration.printStatistics, "print-statistics", false, "print a summary of the session on completion")
	flags.BoolVar(&rootConfiguration.disableSkippedSocketWarning, "disable-skipped-socket-warning", false, "don't warn when skipping UNIX domain sockets")
	flags.BoolVar(&rootConfiguration.version, "version", false, "show version information")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
