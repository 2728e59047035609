package shared

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads credentials interactively. Secret input is hidden when the input is a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

// NewPrompter creates a [Prompter] over stdin/stdout.
func NewPrompter() *Prompter {
	fd := int(os.Stdin.Fd())
	return &Prompter{in: bufio.NewReader(os.Stdin), out: os.Stderr, fd: fd, tty: term.IsTerminal(fd)}
}

// NewPrompterFrom creates a [Prompter] over arbitrary streams; input is never treated as a terminal.
func NewPrompterFrom(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
}

// Ask prints label and returns one trimmed line of input.
func (p *Prompter) Ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return strings.TrimSpace(line), nil
}

// AskSecret prints label and reads a line without echo when attached to a terminal.
func (p *Prompter) AskSecret(label string) (string, error) {
	if !p.tty {
		return p.Ask(label)
	}

	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// PromptCredentials fills in whichever of token and clientID is empty.
func (p *Prompter) PromptCredentials(token, clientID string) (string, string, error) {
	var err error
	if token == "" {
		if token, err = p.AskSecret("OAuth token"); err != nil {
			return "", "", err
		}
	}
	if clientID == "" {
		if clientID, err = p.Ask("Client ID"); err != nil {
			return "", "", err
		}
	}
	if token == "" || clientID == "" {
		return "", "", ErrMissingCredentials
	}
	return token, clientID, nil
}
