package auth

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter presents the sign-in URL to the user and relays anything they
// paste back (an authorization code or the full redirect URL).
type Prompter interface {
	ShowAuthURL(authURL string)
	// Pasted delivers user input. A closed channel means the user gave up.
	Pasted() <-chan string
}

// CLIPrompter prompts on a terminal without a TUI.
type CLIPrompter struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
}

func NewCLIPrompter(in io.Reader, out io.Writer) *CLIPrompter {
	return &CLIPrompter{in: in, out: out, lines: make(chan string, 1)}
}

func (p *CLIPrompter) ShowAuthURL(authURL string) {
	fmt.Fprintln(p.out, "Open this URL in your browser to sign in:")
	fmt.Fprintln(p.out, authURL)
	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "Waiting for the browser redirect. If it never arrives, paste the AUTH CODE or the FULL redirect URL here and press Enter.")
	fmt.Fprint(p.out, "> ")
}

func (p *CLIPrompter) Pasted() <-chan string {
	p.once.Do(func() {
		go func() {
			defer close(p.lines)
			sc := bufio.NewScanner(p.in)
			sc.Buffer(make([]byte, 0, 1024), 1024*1024)
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" {
					continue
				}
				p.lines <- line
			}
		}()
	})
	return p.lines
}
