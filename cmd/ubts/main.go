// Command ubts is the server-side snapshot engine driver (spec.md §6).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SumiTomohiko/ubackup/pkg/logging"
	"github.com/SumiTomohiko/ubackup/pkg/session"
	"github.com/SumiTomohiko/ubackup/pkg/ubackup"
)

// contentHashEnabled reports whether content-hash mode (SPEC_FULL.md
// supplemented feature 5) should be enabled for this run. It's an
// environment variable rather than a flag because spec.md §6 fixes ubts's
// CLI surface to --version and BACKUP_DIR only.
func contentHashEnabled() bool {
	switch strings.ToLower(os.Getenv("UBACKUP_CONTENT_HASH")) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

var rootConfiguration struct {
	version bool
}

func rootMain(command *cobra.Command, arguments []string) (int, error) {
	if rootConfiguration.version {
		fmt.Println(ubackup.Version)
		return 0, nil
	}

	if len(arguments) != 1 {
		return 1, command.Help()
	}

	backend, err := logging.NewSyslogBackend(fmt.Sprintf("ubts[%d]", os.Getpid()))
	if err != nil {
		return 1, err
	}
	defer backend.Close()
	logger := logging.New(backend)

	opts := session.ServerOptions{BackupRoot: arguments[0], ContentHash: contentHashEnabled()}
	return session.RunServer(opts, logger)
}

var rootCommand = &cobra.Command{
	Use:   "ubts BACKUP_DIR",
	Short: "Accept a stream of snapshot records and materialize a snapshot",
	Run: func(command *cobra.Command, arguments []string) {
		code, err := rootMain(command, arguments)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		os.Exit(code)
	},
}

func init() {
	flags := rootCommand.Flags()
	flags.BoolVar(&rootConfiguration.version, "version", false, "show version information")
}

func main() {
	rootCommand.Execute()
}
