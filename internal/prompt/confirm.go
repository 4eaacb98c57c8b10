// Package prompt holds the small interactive questions the CLI asks.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Confirmer struct {
	In            io.Reader
	Out           io.Writer
	IsInteractive func() bool

	reader *bufio.Reader
}

func DefaultConfirmer() Confirmer {
	return Confirmer{
		In:  os.Stdin,
		Out: os.Stderr,
		IsInteractive: func() bool {
			info, err := os.Stdin.Stat()
			if err != nil {
				return false
			}
			return (info.Mode() & os.ModeCharDevice) != 0
		},
	}
}

func (c *Confirmer) interactive() bool {
	return c.IsInteractive != nil && c.IsInteractive()
}

func (c *Confirmer) readLine() (string, error) {
	if c.reader == nil {
		c.reader = bufio.NewReader(c.In)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ConfirmOverwrite decides whether an existing report may be replaced.
// force answers yes without asking. A non-interactive stdin answers no, so
// the caller falls back to a sibling path instead of clobbering.
func (c *Confirmer) ConfirmOverwrite(path string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	if !c.interactive() {
		return false, nil
	}
	if c.Out != nil {
		fmt.Fprintf(c.Out, "Output file %s already exists. Overwrite? (y/N): ", path)
	}
	response, err := c.readLine()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	response = strings.ToLower(response)
	return response == "y" || response == "yes", nil
}

// AskPath asks for a file path until a non-empty answer is given.
// Surrounding quotes (as pasted from a file manager) are stripped and a
// leading ~ is expanded.
func (c *Confirmer) AskPath(label string) (string, error) {
	if !c.interactive() {
		return "", fmt.Errorf("non-interactive stdin: pass the input path as an argument")
	}
	for {
		if c.Out != nil {
			fmt.Fprint(c.Out, label)
		}
		line, err := c.readLine()
		if err != nil {
			return "", err
		}
		if path := CleanPath(line); path != "" {
			return path, nil
		}
	}
}

// CleanPath strips matching quotes and expands a leading ~ to the home
// directory.
func CleanPath(raw string) string {
	p := strings.TrimSpace(raw)
	if len(p) >= 2 {
		if (p[0] == '"' && p[len(p)-1] == '"') || (p[0] == '\'' && p[len(p)-1] == '\'') {
			p = strings.TrimSpace(p[1 : len(p)-1])
		}
	}
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}
