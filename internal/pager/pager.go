// Package pager divides long command output into terminal-sized pages and
// prints them interactively.
package pager

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalHeight is stubbed in tests.
var terminalHeight = func() (int, error) {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	return height, err
}

// ComfortableHeight returns the number of content lines that fit on the
// current terminal, leaving room for the page footer. Returns a value <= 0
// when the terminal is too short or its size cannot be determined.
func ComfortableHeight() int {
	height, err := terminalHeight()
	if err != nil {
		return 0
	}
	return height - 3
}

// CreatePages divides text into pages of at most linesPerPage lines each.
// If linesPerPage <= 0 the terminal height is queried; when the terminal is
// too short to page comfortably, a single page holds the entire text.
//
// Line breaks are preserved, so joining the pages reproduces text exactly.
// Text ending in a newline produces a final empty page.
func CreatePages(text string, linesPerPage int) []string {
	lines := strings.Split(text, "\n")
	if linesPerPage <= 0 {
		if height := ComfortableHeight(); height >= 1 {
			linesPerPage = height
		} else {
			linesPerPage = len(lines)
		}
	}

	pages := []string{""}
	for i, line := range lines {
		if i != 0 && i%linesPerPage == 0 {
			pages = append(pages, "")
		}
		pages[len(pages)-1] += line
		if i < len(lines)-1 {
			pages[len(pages)-1] += "\n"
		}
	}
	return pages
}

// Pager prints pages to Out, waiting for a line on In between pages.
type Pager struct {
	Out io.Writer
	In  io.Reader
}

// New creates a Pager attached to stdout and stdin.
func New() *Pager {
	return &Pager{Out: os.Stdout, In: os.Stdin}
}

// PrintPages prints each page followed by a footer and waits for the reader
// to press enter before showing the next one. An empty page list prints
// nothing.
func (p *Pager) PrintPages(pages []string) {
	in := bufio.NewReader(p.In)
	for i, page := range pages {
		fmt.Fprintln(p.Out, page)
		fmt.Fprintf(p.Out, "Page %d out of %d", i+1, len(pages))
		if i == 0 {
			fmt.Fprint(p.Out, " (press enter to continue)")
		}
		fmt.Fprint(p.Out, "...")
		if _, err := in.ReadString('\n'); err != nil {
			// Input closed; stop paging rather than spinning.
			return
		}
		if i < len(pages)-1 {
			fmt.Fprintln(p.Out)
		}
	}
}
