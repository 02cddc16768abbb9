package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrInterrupted is returned by an Interaction when the operator aborts a
// prompt. The provisioner treats it as a clean cancellation of that step.
var ErrInterrupted = errors.New("interaction interrupted")

// Interaction supplies operator answers to the provisioner. The terminal
// implementation reads stdin; tests substitute a scripted one.
type Interaction interface {
	// Prompt asks for a visible line of input.
	Prompt(label string) (string, error)

	// PromptSecret asks for input with terminal echo disabled.
	PromptSecret(label string) (string, error)

	// Say prints a message to the operator.
	Say(format string, args ...any)
}

// Terminal is the interactive stdin/stdout Interaction.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal creates an Interaction over the process streams.
func NewTerminal() *Terminal {
	return &Terminal{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (t *Terminal) Prompt(label string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", label)
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrInterrupted
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) PromptSecret(label string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", label)
	value, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(value)), nil
}

func (t *Terminal) Say(format string, args ...any) {
	fmt.Fprintf(t.out, format+"\n", args...)
}
