// Package ui writes the operator-facing search stream: narration, progress,
// throughput and discoveries.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
	ColorPurple = "\033[35m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// clearLine moves to the start of the line and erases it.
const clearLine = "\r\033[2K"

// Printer serialises writes from concurrent device callbacks. Progress
// output stays on the current line until the next write clears it.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewPrinter writes to w. Colors are only emitted for banners.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

// Stdout returns a printer on standard output.
func Stdout() *Printer {
	return NewPrinter(os.Stdout, true)
}

// Println writes a line without clearing.
func (p *Printer) Println(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Print writes text without a newline.
func (p *Printer) Print(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

// Line clears the current line, then writes a full line.
func (p *Printer) Line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, clearLine+format+"\n", args...)
}

// Progress clears the current line and leaves the cursor after the text.
func (p *Printer) Progress(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, clearLine+format, args...)
}

// Header writes a bold section title.
func (p *Printer) Header(title string) {
	if p.color {
		p.Println("%s%s%s", ColorCyan+ColorBold, title, ColorReset)
		return
	}
	p.Println("%s", title)
}

// Warn writes a highlighted notice line.
func (p *Printer) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.color {
		p.Line("%s%s%s", ColorYellow, msg, ColorReset)
		return
	}
	p.Line("%s", msg)
}

// PrintBanner shows the program name and version.
func (p *Printer) PrintBanner(version string) {
	if p.color {
		p.Println("%s%skeyhunter%s %sv%s%s", ColorGreen, ColorBold, ColorReset, ColorDim, version, ColorReset)
	} else {
		p.Println("keyhunter v%s", version)
	}
	p.Println("")
}

// FormatElapsed formats search time as whole milliseconds below one second,
// otherwise as whole seconds.
func FormatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%ds", int64(d/time.Second))
}

// FormatSpeed formats candidates per second in binary mega or giga units.
func FormatSpeed(speed float64) string {
	speed = speed / 1024 / 1024
	if speed < 1024 {
		return fmt.Sprintf("%.2f MH/s", speed)
	}
	return fmt.Sprintf("%.2f GH/s", speed/1024)
}

// FormatBytes formats a memory size in GiB.
func FormatBytes(n uint64) string {
	return fmt.Sprintf("%.2f GB", float64(n)/1024/1024/1024)
}

// FormatNumber adds commas to large numbers
func FormatNumber(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}
	result := make([]byte, 0, len(s)+(len(s)-1)/3)
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}
