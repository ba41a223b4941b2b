// Package cli is the interactive terminal front end of the chat client.
package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/buger/goterm"
	"github.com/fatih/color"

	"flow-chat/backend/internal/model"
)

var (
	userColor      = color.New(color.Bold)
	assistantColor = color.New(color.FgCyan)
	titleColor     = color.New(color.FgMagenta, color.Bold)
	noticeColor    = color.New(color.FgHiBlack)
	onlineColor    = color.New(color.FgGreen)
	offlineColor   = color.New(color.FgRed)
	errorColor     = color.New(color.FgRed, color.Bold)
	promptColor    = color.New(color.FgHiBlue)
)

// Printer writes the transcript. It is safe for concurrent use so health
// notices can arrive while a reply is being typed.
type Printer struct {
	mu sync.Mutex
	w  io.Writer

	replyID string
	printed string
	open    bool
	resume  bool // a notice interrupted the reply line
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// fallbackWidth is used when the output is not a terminal.
const fallbackWidth = 60

// Title prints the session banner centred across the terminal.
func (p *Printer) Title(text string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	title := "   " + fmt.Sprintf(text, args...) + "   "
	width := goterm.Width()
	if width <= 0 {
		width = fallbackWidth
	}
	left := max((width-len(title))/2, 3)
	right := max(width-len(title)-left, 3)
	titleColor.Fprintln(p.w, strings.Repeat("-", left)+title+strings.Repeat("-", right))
}

// User echoes a submitted message.
func (p *Printer) User(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	userColor.Fprintf(p.w, "you> %s\n", text)
}

// BeginReply prints the assistant label for the next reply.
func (p *Printer) BeginReply() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyID = ""
	p.printed = ""
	p.open = true
	p.resume = false
	assistantColor.Fprint(p.w, "ai> ")
}

// Reply renders a snapshot of the assistant message. Only the part of
// Displayed not yet on screen is printed. The line is closed once the
// message stops streaming.
func (p *Printer) Reply(msg model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return
	}
	if msg.ID != p.replyID {
		p.replyID = msg.ID
		p.printed = ""
	}

	if !strings.HasPrefix(msg.Displayed, p.printed) {
		// The typewriter restarted from scratch.
		fmt.Fprint(p.w, "\n")
		assistantColor.Fprint(p.w, "ai> ")
		p.printed = ""
	}
	if delta := msg.Displayed[len(p.printed):]; delta != "" {
		if p.resume {
			assistantColor.Fprint(p.w, "ai> ")
			p.resume = false
		}
		assistantColor.Fprint(p.w, delta)
		p.printed = msg.Displayed
	}

	if !msg.Streaming {
		if !p.resume {
			fmt.Fprint(p.w, "\n")
		}
		p.open = false
	}
}

// Status prints a connection state change.
func (p *Printer) Status(connected bool, baseURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	if connected {
		onlineColor.Fprintf(p.w, "[connected] %s\n", baseURL)
		return
	}
	offlineColor.Fprintf(p.w, "[disconnected] %s is not reachable\n", baseURL)
}

// Notice prints an informational line.
func (p *Printer) Notice(text string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	noticeColor.Fprintf(p.w, text+"\n", args...)
}

// Error prints a failure.
func (p *Printer) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	errorColor.Fprintf(p.w, "error: %v\n", err)
}

// breakLine ends a partially typed reply line so notices start on their own.
func (p *Printer) breakLine() {
	if p.open && !p.resume {
		fmt.Fprint(p.w, "\n")
		p.resume = true
	}
}
