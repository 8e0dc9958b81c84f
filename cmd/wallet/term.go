package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalPrompt implements the interaction provider on the controlling
// terminal. EOF (ctrl-D) declines a prompt; secrets are read without echo.
type terminalPrompt struct {
	in  *bufio.Reader
	out *os.File
}

func newTerminalPrompt() *terminalPrompt {
	return &terminalPrompt{in: bufio.NewReader(os.Stdin), out: os.Stderr}
}

func (p *terminalPrompt) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	line, err := p.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (p *terminalPrompt) ReadSecret(ctx context.Context, prompt string) (string, bool, error) {
	fmt.Fprintf(p.out, "%s\n> ", prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", false, err
	}
	if len(secret) == 0 {
		return "", false, nil
	}
	return string(secret), true, nil
}

func (p *terminalPrompt) ReadLine(ctx context.Context, prompt string) (string, bool, error) {
	fmt.Fprintf(p.out, "%s\n> ", prompt)
	line, err := p.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimRight(line, "\r\n"), true, nil
}
