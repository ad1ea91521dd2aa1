package term

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// Run shows the session in the current terminal and blocks until the user
// acts, the session resolves elsewhere, or the user leaves it pending.
func Run(serverURL, sessionID string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("stdout is not a terminal; open the web surface instead")
	}

	p := tea.NewProgram(NewModel(NewClient(serverURL), sessionID))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running terminal client: %w", err)
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}
