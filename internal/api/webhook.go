package api

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/culturalbot/eventbot/internal/model"
)

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []waMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type waMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
}

// ParseInbound extracts the first message of a webhook delivery. Status
// callbacks and other changes without messages report ok=false.
func ParseInbound(body []byte) (msg model.InboundMessage, ok bool, err error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return model.InboundMessage{}, false, err
	}
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 || len(p.Entry[0].Changes[0].Value.Messages) == 0 {
		return model.InboundMessage{}, false, nil
	}

	m := p.Entry[0].Changes[0].Value.Messages[0]
	msg = model.InboundMessage{
		ID:      m.ID,
		From:    m.From,
		Type:    model.TypeOther,
		RawType: m.Type,
	}
	if sec, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		msg.ReceivedAt = time.Unix(sec, 0).UTC()
	}

	switch {
	case m.Type == "text" && m.Text != nil:
		msg.Type = model.TypeText
		msg.Text = m.Text.Body
	case m.Type == "interactive" && m.Interactive != nil && m.Interactive.Type == "button_reply" && m.Interactive.ButtonReply != nil:
		msg.Type = model.TypeButtonReply
		msg.ButtonID = m.Interactive.ButtonReply.ID
		msg.ButtonTitle = m.Interactive.ButtonReply.Title
	}
	return msg, true, nil
}
