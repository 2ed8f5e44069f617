package tui

import (
	"fmt"
	"time"

	"outlookterm/internal/model"
	"outlookterm/internal/present"
	"outlookterm/internal/util"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

const (
	unreadMark     = "● "
	attachmentMark = " 📎"
)

// messageItem wraps Message for the list display.
type messageItem struct {
	model.Message
	now time.Time
}

func (m messageItem) FilterValue() string { return m.Subject + " " + m.sender() }

func (m messageItem) Title() string {
	subject := present.StripControl(m.Subject)
	if subject == "" {
		subject = "(no subject)"
	}
	return present.ToVisibility(m.Unread()).Render(unreadMark) +
		subject +
		present.ToVisibility(m.HasAttachments).Render(attachmentMark)
}

func (m messageItem) Description() string {
	if date := present.RelativeDate(m.Received, m.now); date != "" {
		return fmt.Sprintf("%s  %s", m.sender(), date)
	}
	return m.sender()
}

func (m messageItem) sender() string {
	return present.StripControl(util.DisplayName(m.From.Name, m.From.Address))
}

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

func inboxFooter() string {
	return footerStyle.Render("r: refresh  tab: switch pane  o: open in browser  /: filter  q: quit  ●=unread")
}

func messagesToItems(msgs []model.Message, now time.Time) []list.Item {
	items := make([]list.Item, len(msgs))
	for i, msg := range msgs {
		items[i] = messageItem{Message: msg, now: now}
	}
	return items
}
