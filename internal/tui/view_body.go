package tui

import (
	"fmt"
	"time"

	"outlookterm/internal/model"
	"outlookterm/internal/present"
	"outlookterm/internal/util"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39")).
	PaddingBottom(1)

func bodyHeader(msg model.Message, now time.Time) string {
	from := util.DisplayName(msg.From.Name, msg.From.Address)
	if msg.From.Address != "" {
		from = fmt.Sprintf("%s <%s>", from, msg.From.Address)
	}
	return headerStyle.Render(present.StripControl(fmt.Sprintf("From: %s\nSubject: %s\nDate: %s",
		from, msg.Subject, present.RelativeDate(msg.Received, now))))
}

// bodyHTML returns the markup bound to the detail pane for msg. Plain text
// bodies are wrapped so they pass through the same renderer.
func bodyHTML(msg model.Message) string {
	content := msg.Body.Content
	if content == "" {
		return present.TextAsHTML(msg.BodyPreview)
	}
	if msg.Body.IsHTML() {
		return content
	}
	return present.TextAsHTML(content)
}

// detailSurface is the present.Surface behind the detail viewport. It keeps
// the rendered text so it can be re-wrapped when the pane is resized.
type detailSurface struct {
	vp   *viewport.Model
	text string
}

func (s *detailSurface) SetContent(text string) {
	s.text = text
	s.rewrap()
	s.vp.GotoTop()
}

func (s *detailSurface) rewrap() {
	style := lipgloss.NewStyle()
	if s.vp.Width > 0 {
		style = style.Width(s.vp.Width)
	}
	s.vp.SetContent(style.Render(s.text))
}
