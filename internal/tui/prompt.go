package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Prompter shows the sign-in URL inside the TUI and relays a pasted code
// back to the auth flow. It satisfies auth.Prompter.
type Prompter struct {
	mu     sync.Mutex
	send   func(tea.Msg)
	pasted chan string
}

func NewPrompter() *Prompter {
	return &Prompter{pasted: make(chan string, 1)}
}

// ShowAuthURL switches the UI to the sign-in view. It is called from the
// fetch goroutine.
func (p *Prompter) ShowAuthURL(authURL string) {
	// Input typed for an earlier sign-in must not satisfy this one.
	for drained := false; !drained; {
		select {
		case <-p.pasted:
		default:
			drained = true
		}
	}
	p.mu.Lock()
	send := p.send
	p.mu.Unlock()
	if send != nil {
		send(authURLMsg(authURL))
	}
}

func (p *Prompter) Pasted() <-chan string { return p.pasted }

func (p *Prompter) attach(send func(tea.Msg)) {
	p.mu.Lock()
	p.send = send
	p.mu.Unlock()
}

// submit hands user input to a waiting sign-in. Extra input is dropped
// while one value is still pending.
func (p *Prompter) submit(input string) {
	select {
	case p.pasted <- input:
	default:
	}
}
