// client.go implements the "askgate client" command: the detached terminal
// surface that a calling agent spawns to show one pending session.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askgate-dev/askgate/internal/term"
)

var (
	clientSession string
	clientServer  string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Show a pending session in this terminal",
	Long: `Attach to a running engine and present one session in this
terminal. The command exits when the session resolves here, resolves on
another surface, or is left pending with q.`,
	RunE: runClient,
}

func init() {
	clientCmd.Flags().StringVar(&clientSession, "session", "", "Session id to display")
	clientCmd.Flags().StringVar(&clientServer, "server", "", "Engine base URL, e.g. http://127.0.0.1:8765")
	_ = clientCmd.MarkFlagRequired("session")
}

func runClient(cmd *cobra.Command, args []string) error {
	serverURL := clientServer
	if serverURL == "" {
		serverURL = fmt.Sprintf("http://%s:%d", defaultHost(), defaultPort())
	}
	return term.Run(serverURL, clientSession)
}
