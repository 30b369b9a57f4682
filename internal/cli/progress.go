package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// MigrationConsole prints the migration log and drives a progress bar per stage.
type MigrationConsole struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	stage  string
	mu     sync.Mutex
}

// NewMigrationConsole creates a console writing to w (stdout when nil).
func NewMigrationConsole(w io.Writer) *MigrationConsole {
	if w == nil {
		w = os.Stdout
	}
	return &MigrationConsole{writer: w}
}

// Entry prints one timestamped log line above the progress bar.
func (c *MigrationConsole) Entry(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		_ = c.bar.Clear()
	}
	if _, err := fmt.Fprintln(c.writer, SubtleStyle.Render(line)); err != nil {
		slog.Warn("Failed to write migration log entry", "error", err)
	}
	if c.bar != nil {
		_ = c.bar.RenderBlank()
	}
}

// Progress advances the bar for stage, starting a new bar when the stage changes.
func (c *MigrationConsole) Progress(stage string, done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if total <= 0 {
		return
	}
	if c.bar == nil || c.stage != stage {
		if c.bar != nil {
			_ = c.bar.Finish()
		}
		c.stage = stage
		c.bar = newBar(c.writer, total, stage)
	}
	_ = c.bar.Set(done)
}

// Finish completes the current bar, if any.
func (c *MigrationConsole) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		_ = c.bar.Finish()
		c.bar = nil
	}
}

func newBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
