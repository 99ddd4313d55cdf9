// Package notify prints archive notices and the page count to a terminal.
package notify

import (
	"context"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/user/book-archiver/internal/domain"
)

// Console implements usecase.Notifier and capture.StatusReporter with colored
// terminal output: green for success, yellow for notices, red for errors.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	success *color.Color
	notice  *color.Color
	fail    *color.Color
	status  *color.Color
}

// NewConsole writes to out, or to color.Output when out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = color.Output
	}
	return &Console{
		out:     out,
		success: color.New(color.FgGreen, color.Bold),
		notice:  color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
		status:  color.New(color.FgCyan),
	}
}

func (c *Console) Notify(ctx context.Context, message string) {
	c.print(c.notice, "» ", "%s", message)
}

func (c *Console) ReportCount(ctx context.Context, n int) {
	c.print(c.status, "• ", "%s", domain.StatusText(n))
}

func (c *Console) Successf(format string, args ...any) {
	c.print(c.success, "✓ ", format, args...)
}

func (c *Console) Warnf(format string, args ...any) {
	c.print(c.notice, "⚠ ", format, args...)
}

func (c *Console) Errorf(format string, args ...any) {
	c.print(c.fail, "✗ ", format, args...)
}

func (c *Console) print(col *color.Color, prefix, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col.Fprintf(c.out, prefix+format+"\n", args...)
}
