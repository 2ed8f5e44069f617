package outlook

import (
	"time"

	"outlookterm/internal/model"
)

// Wire types for the OData message resource. Only selected fields appear.

type messageList struct {
	Value    []odataMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type odataMessage struct {
	ID               string          `json:"Id"`
	Subject          string          `json:"Subject"`
	From             *odataRecipient `json:"From"`
	DateTimeReceived *time.Time      `json:"DateTimeReceived"`
	BodyPreview      string          `json:"BodyPreview"`
	Body             *odataBody      `json:"Body"`
	IsRead           *bool           `json:"IsRead"`
	HasAttachments   *bool           `json:"HasAttachments"`
	Importance       string          `json:"Importance"`
	WebLink          string          `json:"WebLink"`
}

type odataRecipient struct {
	EmailAddress struct {
		Name    string `json:"Name"`
		Address string `json:"Address"`
	} `json:"EmailAddress"`
}

type odataBody struct {
	ContentType string `json:"ContentType"`
	Content     string `json:"Content"`
}

type odataError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (m odataMessage) toModel() model.Message {
	out := model.Message{
		ID:             m.ID,
		Subject:        m.Subject,
		Received:       m.DateTimeReceived,
		BodyPreview:    m.BodyPreview,
		IsRead:         m.IsRead,
		HasAttachments: m.HasAttachments,
		Importance:     m.Importance,
		WebLink:        m.WebLink,
	}
	if m.From != nil {
		out.From = model.Address{Name: m.From.EmailAddress.Name, Address: m.From.EmailAddress.Address}
	}
	if m.Body != nil {
		out.Body = model.Body{ContentType: m.Body.ContentType, Content: m.Body.Content}
	}
	return out
}
