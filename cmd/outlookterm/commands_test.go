package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"outlookterm/internal/model"
)

func TestPrintPage(t *testing.T) {
	now := time.Date(2024, 6, 14, 15, 0, 0, 0, time.UTC)
	received := time.Date(2024, 6, 14, 9, 5, 0, 0, time.UTC)
	read, unread, attach := true, false, true
	page := model.Page{
		HasMore: true,
		Messages: []model.Message{
			{Subject: "Quarterly report", From: model.Address{Name: "Alice"}, Received: &received, IsRead: &unread, HasAttachments: &attach},
			{From: model.Address{Address: "bob.smith@example.com"}, IsRead: &read},
		},
	}

	var buf bytes.Buffer
	if err := printPage(&buf, page, now); err != nil {
		t.Fatalf("printPage: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	first := lines[0]
	for _, want := range []string{"*", "9:05 AM", "Alice", "Quarterly report [att]"} {
		if !strings.Contains(first, want) {
			t.Errorf("first line %q missing %q", first, want)
		}
	}
	second := lines[1]
	if strings.Contains(second, "*") || !strings.Contains(second, "Bob Smith") || !strings.Contains(second, "(no subject)") {
		t.Errorf("second line = %q", second)
	}
	if !strings.Contains(lines[2], "showing the 2 most recent") {
		t.Errorf("last line = %q", lines[2])
	}
}

func TestPrintPage_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := printPage(&buf, model.Page{}, time.Now()); err != nil {
		t.Fatalf("printPage: %v", err)
	}
	if got := buf.String(); got != "Inbox is empty.\n" {
		t.Fatalf("output = %q", got)
	}
}
