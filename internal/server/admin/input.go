// Package admin holds the operator-facing helpers behind the server's
// administrative subcommands.
package admin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword           = term.ReadPassword
	isTerminal             = term.IsTerminal
	stdin        io.Reader = os.Stdin
)

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// PromptPassword prints prompt to w and reads a password without echo. When
// stdin is not a terminal the first line of stdin is used instead, so the
// command can be scripted.
func PromptPassword(w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// PromptNewPassword asks twice on a terminal and fails on mismatch.
func PromptNewPassword(w io.Writer) (string, error) {
	pw, err := PromptPassword(w, "Password: ")
	if err != nil {
		return "", err
	}
	if !isTerminal(int(os.Stdin.Fd())) {
		return pw, nil
	}

	again, err := PromptPassword(w, "Password (again): ")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", ErrPasswordMismatch
	}
	return pw, nil
}
