// ask.go implements the "askgate ask" command: a one-shot flow that starts
// an ephemeral engine, presents one question, and prints the outcome as JSON.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	xterm "golang.org/x/term"

	"github.com/askgate-dev/askgate/internal/choice"
	"github.com/askgate-dev/askgate/internal/server"
	"github.com/askgate-dev/askgate/internal/session"
	"github.com/askgate-dev/askgate/internal/term"
)

var (
	askTitle       string
	askPrompt      string
	askMode        string
	askOptions     []string
	askRecommended []string
	askTimeout     int
	askTransport   string
	askFile        string
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask one question and print the outcome",
	Long: `Start an ephemeral engine, show the question in this terminal (or
the browser), wait for the resolution, and print the outcome as JSON
on stdout. Exactly one outcome is printed, whether the human answered,
cancelled, or the timeout fired.`,
	Example: `  askgate ask --title "Deploy?" --prompt "Ship release 1.4 to prod?" \
      --option "deploy:Roll out now" --option "hold:Wait for QA" --recommended deploy`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askTitle, "title", "", "Question title")
	askCmd.Flags().StringVar(&askPrompt, "prompt", "", "Question body")
	askCmd.Flags().StringVar(&askMode, "mode", choice.SelectionSingle, "Selection mode: single or multi")
	askCmd.Flags().StringArrayVar(&askOptions, "option", nil, `Option as "id" or "id:description" (repeatable)`)
	askCmd.Flags().StringSliceVar(&askRecommended, "recommended", nil, "Option ids to mark recommended (defaults to the first option)")
	askCmd.Flags().IntVar(&askTimeout, "timeout", 0, "Timeout in seconds (0 uses the configured default)")
	askCmd.Flags().StringVar(&askTransport, "transport", "", "Surface: terminal or web (defaults to the configured transport)")
	askCmd.Flags().StringVar(&askFile, "file", "", "Read the full request as JSON from a file instead of flags (- for stdin)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	body, err := buildCreateRequest()
	if err != nil {
		return err
	}

	// Ephemeral engine on a random port; the session never outlives this
	// process.
	eng, err := newEngine("127.0.0.1", 0)
	if err != nil {
		return err
	}
	defer eng.shutdown()

	errCh := make(chan error, 1)
	go func() { errCh <- eng.server.Start() }()

	desc, err := eng.server.CreateSession(body)
	if err != nil {
		return err
	}

	interactive := desc.Transport == choice.TransportTerminal && xterm.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		go func() {
			_ = term.Run(eng.server.BaseURL(), desc.SessionID)
		}()
	} else {
		fmt.Fprintf(os.Stderr, "answer at: %s\n", desc.SurfaceURL)
		openBrowser(desc.SurfaceURL)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	for {
		out, status := eng.registry.Poll(ctx, desc.SessionID, 0)
		switch status {
		case session.PollOutcome:
			return printOutcome(out)
		case session.PollNotFound:
			return fmt.Errorf("session vanished before resolving")
		}
		if ctx.Err() != nil {
			// Interrupted: shutdown resolves the session and we report that.
			eng.registry.CloseAll()
			if out, ok := lookupOutcome(eng, desc.SessionID); ok {
				return printOutcome(out)
			}
			return printOutcome(choice.Interrupted(desc.SurfaceURL))
		}
	}
}

func lookupOutcome(eng *engine, id string) (choice.Outcome, bool) {
	sess, ok := eng.registry.Get(id)
	if !ok {
		return choice.Outcome{}, false
	}
	return sess.Outcome()
}

func printOutcome(out choice.Outcome) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func buildCreateRequest() (server.CreateSessionRequest, error) {
	var body server.CreateSessionRequest

	if askFile != "" {
		data, err := readRequestFile(askFile)
		if err != nil {
			return body, err
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return body, fmt.Errorf("parsing request file: %w", err)
		}
		if askTransport != "" {
			body.Transport = askTransport
		}
		return body, nil
	}

	if askTitle == "" || askPrompt == "" || len(askOptions) == 0 {
		return body, fmt.Errorf("--title, --prompt and at least one --option are required (or use --file)")
	}

	options := make([]choice.Option, 0, len(askOptions))
	for _, raw := range askOptions {
		id, desc, _ := strings.Cut(raw, ":")
		if strings.TrimSpace(id) == "" {
			return body, fmt.Errorf("option %q has an empty id", raw)
		}
		options = append(options, choice.Option{ID: strings.TrimSpace(id), Description: strings.TrimSpace(desc)})
	}

	if len(askRecommended) == 0 {
		options[0].Recommended = true
	} else {
		marked := make(map[string]bool, len(askRecommended))
		for _, id := range askRecommended {
			marked[strings.TrimSpace(id)] = true
		}
		for i := range options {
			options[i].Recommended = marked[options[i].ID]
		}
	}

	body.Request = choice.Request{
		Title:          askTitle,
		Prompt:         askPrompt,
		SelectionMode:  askMode,
		Options:        options,
		TimeoutSeconds: askTimeout,
	}
	body.Transport = askTransport
	return body, nil
}

func readRequestFile(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request file: %w", err)
	}
	return data, nil
}

// openBrowser is best-effort; the printed URL is the fallback.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}
