package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// errNotInteractive refuses a destructive command when nobody can answer
// the confirmation.
var errNotInteractive = errors.New("confirmation needs an interactive terminal, rerun with -yes")

// GetSimpleText prints a prompt to w and reads a single line of input from
// scanner. Surrounding whitespace is trimmed. io.EOF is returned when input
// is exhausted.
//
// Example prompt format:
//
//	Prompt text
//	> _
func GetSimpleText(scanner *bufio.Scanner, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// Confirm asks a yes/no question. assumeYes skips the prompt. Without it
// the answer must come from a terminal on stdin.
func Confirm(scanner *bufio.Scanner, question string, w io.Writer, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !isTerminal(int(os.Stdin.Fd())) {
		return false, errNotInteractive
	}
	answer, err := GetSimpleText(scanner, question+" [y/N]", w)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
