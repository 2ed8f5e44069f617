package model

import (
	"sort"
	"time"
)

// Address is a sender or recipient as reported by the mail service.
type Address struct {
	Name    string
	Address string
}

// Body holds message content and its declared type ("HTML" or "Text").
type Body struct {
	ContentType string
	Content     string
}

// IsHTML reports whether the content should be rendered as HTML.
func (b Body) IsHTML() bool {
	return b.ContentType == "" || b.ContentType == "HTML" || b.ContentType == "html"
}

// Message is the summary of one inbox message. Fields the service may omit
// are pointers so "absent" stays distinguishable from the zero value.
type Message struct {
	ID             string
	Subject        string
	From           Address
	Received       *time.Time
	BodyPreview    string
	Body           Body
	IsRead         *bool
	HasAttachments *bool
	Importance     string
	WebLink        string
}

// Unread is the inverse of IsRead; nil when the read state is unknown.
func (m Message) Unread() *bool {
	if m.IsRead == nil {
		return nil
	}
	v := !*m.IsRead
	return &v
}

// Page is one result slice of a single inbox query, newest first.
type Page struct {
	Messages  []Message
	FetchedAt time.Time
	HasMore   bool // service reported a next link; it is not followed
}

// SortNewestFirst orders msgs by Received descending; messages without a
// timestamp go last.
func SortNewestFirst(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i].Received, msgs[j].Received
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
}
