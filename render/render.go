// Package render displays the composed status line.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single xsetroot run.
const DefaultTimeout = 2 * time.Second

// XSetRoot sets the name of the X root window, which window managers such as
// dwm show as the status text.
type XSetRoot struct {
	command string
	timeout time.Duration
	last    string
	drawn   bool
}

// NewXSetRoot returns a new [XSetRoot] running the xsetroot executable.
func NewXSetRoot() *XSetRoot {
	return &XSetRoot{
		command: "xsetroot",
		timeout: DefaultTimeout,
	}
}

// Render sets the root window name to text. Unchanged text is not set again.
func (r *XSetRoot) Render(text string) error {
	if r.drawn && text == r.last {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, r.command, "-name", text)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", r.command, err, msg)
		}

		return fmt.Errorf("%s: %w", r.command, err)
	}

	r.last = text
	r.drawn = true

	return nil
}

// Writer writes every status line to an [io.Writer], one per line.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (r *Writer) Render(text string) error {
	_, err := io.WriteString(r.w, text+"\n")
	return err
}
