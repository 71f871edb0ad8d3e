package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm asks a y/N question. --yes answers it. Without a terminal and
// without --yes the answer is no, so scripts never hang on a prompt.
func (a *App) confirm(message string) bool {
	if a.yes {
		return true
	}
	return a.ask(message)
}

// ask always prompts, even with --yes. Used for the delete-everything sync.
func (a *App) ask(message string) bool {
	if !a.terminal() {
		fmt.Fprintf(a.out, "%s (y/N): no terminal, answering no\n", message)
		return false
	}
	if a.reader == nil {
		a.reader = bufio.NewReader(a.in)
	}
	return confirmAction(a.reader, a.out, message)
}

// confirmAction reads one line and accepts y or yes.
func confirmAction(reader *bufio.Reader, out io.Writer, message string) bool {
	fmt.Fprintf(out, "%s (y/N): ", message)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
