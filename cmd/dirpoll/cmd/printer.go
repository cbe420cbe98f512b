package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/dirpoll/internal/blobdir"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

const (
	colorGreen  = "154"
	colorYellow = "220"
	colorRed    = "196"
	colorGray   = "245"
	colorBlue   = "75"
)

// printerStyles styles one column of an event line.
type printerStyles struct {
	Added    lipgloss.Style
	Removed  lipgloss.Style
	Modified lipgloss.Style
	Initial  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
}

func defaultPrinterStyles() printerStyles {
	return printerStyles{
		Added:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorGreen)),
		Removed:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorRed)),
		Modified: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorYellow)),
		Initial:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorBlue)),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorRed)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
	}
}

func plainPrinterStyles() printerStyles {
	return printerStyles{
		Added:    lipgloss.NewStyle(),
		Removed:  lipgloss.NewStyle(),
		Modified: lipgloss.NewStyle(),
		Initial:  lipgloss.NewStyle(),
		Error:    lipgloss.NewStyle(),
		Dim:      lipgloss.NewStyle(),
	}
}

// printer is a listener writing one line per change event:
//
//	15:04:05.000 ADDED     /data/in/report.xml
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	styles  printerStyles
	now     func() time.Time
	initial bool
}

func newPrinter(out io.Writer, color, listInitial bool) *printer {
	styles := plainPrinterStyles()
	if color {
		styles = defaultPrinterStyles()
	}
	return &printer{out: out, styles: styles, now: time.Now, initial: listInitial}
}

func (p *printer) line(label string, style lipgloss.Style, subject string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, "%s %s %s\n",
		p.styles.Dim.Render(p.now().Format("15:04:05.000")),
		style.Render(fmt.Sprintf("%-9s", label)),
		subject)
}

func entryPath(dir poller.Directory, name string) string {
	key := dir.Key()
	if blobdir.IsURL(key) {
		return strings.TrimSuffix(key, "/") + "/" + name
	}
	return filepath.Join(key, name)
}

func (p *printer) InitialContent(_ context.Context, e *poller.InitialContentEvent) error {
	p.line("INITIAL", p.styles.Initial,
		fmt.Sprintf("%s %s", e.Directory.Key(), p.styles.Dim.Render(fmt.Sprintf("(%d entries)", e.Snapshot.Len()))))
	if p.initial {
		for _, name := range e.Snapshot.Names() {
			p.line("", p.styles.Initial, entryPath(e.Directory, name))
		}
	}
	return nil
}

func (p *printer) EntryAdded(_ context.Context, e *poller.EntryAddedEvent) error {
	p.line("ADDED", p.styles.Added, entryPath(e.Directory, e.Cached.Name))
	return nil
}

func (p *printer) EntryRemoved(_ context.Context, e *poller.EntryRemovedEvent) error {
	p.line("REMOVED", p.styles.Removed, entryPath(e.Directory, e.Cached.Name))
	return nil
}

func (p *printer) EntryModified(_ context.Context, e *poller.EntryModifiedEvent) error {
	p.line("MODIFIED", p.styles.Modified, entryPath(e.Directory, e.Cached.Name))
	return nil
}

func (p *printer) IOErrorRaised(_ context.Context, e *poller.IOErrorRaisedEvent) error {
	p.line("IO ERROR", p.styles.Error, fmt.Sprintf("%s: %v", e.Directory.Key(), e.Err))
	return nil
}

func (p *printer) IOErrorCeased(_ context.Context, e *poller.IOErrorCeasedEvent) error {
	p.line("READABLE", p.styles.Initial, e.Directory.Key())
	return nil
}

func (p *printer) AfterStop(_ context.Context, e *poller.AfterStopEvent) error {
	p.line("STOPPED", p.styles.Dim, e.Poller.Name())
	return nil
}
