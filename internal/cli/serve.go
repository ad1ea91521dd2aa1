// serve.go implements the "askgate serve" command running the engine as a
// long-lived process for external callers.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interaction engine",
	Long: `Start the HTTP server that callers create sessions against. The
process runs until interrupted; on shutdown every pending session
resolves as interrupted so no caller is left waiting.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", defaultHost(), "Address to bind")
	serveCmd.Flags().IntVar(&servePort, "port", defaultPort(), "Port to bind (0 picks a free port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(serveHost, servePort)
	if err != nil {
		return err
	}

	fmt.Printf("askgate listening on %s\n", eng.server.BaseURL())

	errCh := make(chan error, 1)
	go func() { errCh <- eng.server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		eng.shutdown()
		return err
	case <-sigCh:
		fmt.Println("\nshutting down")
		eng.shutdown()
		return nil
	}
}
