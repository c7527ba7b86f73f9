// Package prompt holds the per file decisions asked while scheduling and downloading.
// It is the only place that talks to the console.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jgivc/mfdl/internal/util"
)

type consoleDecider struct {
	mu  sync.Mutex
	in  *bufio.Scanner
	out io.Writer
}

// NewConsoleDecider asks questions on out and reads answers line by line from in.
// Questions from concurrent downloads are serialized.
func NewConsoleDecider(in io.Reader, out io.Writer) *consoleDecider {
	return &consoleDecider{
		in:  bufio.NewScanner(in),
		out: out,
	}
}

// ConfirmDownload defaults to yes on an empty answer.
func (d *consoleDecider) ConfirmDownload(num int, name string, size int64) bool {
	question := fmt.Sprintf("[%d] Download %s (%s)? [Y/n]\n", num, name, util.FormatMB(size))

	return d.ask(question, true)
}

// ConfirmOverwrite defaults to no on an empty answer.
func (d *consoleDecider) ConfirmOverwrite(existsMsg string) bool {
	return d.ask(existsMsg+". Overwrite? [y/N]\n", false)
}

func (d *consoleDecider) ask(question string, def bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		fmt.Fprint(d.out, question)

		if !d.in.Scan() {
			return false
		}

		switch strings.TrimSpace(d.in.Text()) {
		case "":
			return def
		case "y", "Y", "1":
			return true
		case "n", "N", "0":
			return false
		}
	}
}

type unattendedDecider struct{}

// NewUnattendedDecider agrees to everything.
func NewUnattendedDecider() unattendedDecider {
	return unattendedDecider{}
}

func (unattendedDecider) ConfirmDownload(int, string, int64) bool {
	return true
}

func (unattendedDecider) ConfirmOverwrite(string) bool {
	return true
}
