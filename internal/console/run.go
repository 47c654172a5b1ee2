package console

import (
	"errors"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"
)

// ErrNoTerminal is returned when the console is started without a TTY.
var ErrNoTerminal = errors.New("the console needs an interactive terminal")

// Run starts the console on the current terminal and blocks until the
// operator quits.
func Run(app *App) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNoTerminal
	}

	p := tea.NewProgram(app)
	app.send = p.Send

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console UI error: %w", err)
	}
	return nil
}
