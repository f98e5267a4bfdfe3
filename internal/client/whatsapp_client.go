package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/culturalbot/eventbot/internal/model"
)

const maxMediaBytes = 5 << 20

// WhatsAppClient talks to the WhatsApp Cloud API for one business phone
// number.
type WhatsAppClient struct {
	baseURL       string
	token         string
	phoneNumberID string
	client        *http.Client
}

func NewWhatsAppClient(baseURL, token, phoneNumberID string, timeout time.Duration) *WhatsAppClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WhatsAppClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		phoneNumberID: phoneNumberID,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type imageBody struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type interactiveBody struct {
	Type string `json:"type"`
	Body struct {
		Text string `json:"text"`
	} `json:"body"`
	Action struct {
		Buttons []replyButton `json:"buttons"`
	} `json:"action"`
}

type sendRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textBody        `json:"text,omitempty"`
	Image            *imageBody       `json:"image,omitempty"`
	Interactive      *interactiveBody `json:"interactive,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

func (c *WhatsAppClient) SendText(ctx context.Context, to, body string) (string, error) {
	return c.send(ctx, sendRequest{
		To:   to,
		Type: "text",
		Text: &textBody{Body: body, PreviewURL: true},
	})
}

func (c *WhatsAppClient) SendImage(ctx context.Context, to, mediaID, caption string) (string, error) {
	return c.send(ctx, sendRequest{
		To:    to,
		Type:  "image",
		Image: &imageBody{ID: mediaID, Caption: caption},
	})
}

// SendButtons sends an interactive message with up to three reply buttons.
func (c *WhatsAppClient) SendButtons(ctx context.Context, to, body string, buttons []model.Button) (string, error) {
	if len(buttons) == 0 || len(buttons) > 3 {
		return "", fmt.Errorf("reply buttons must be between 1 and 3, got %d", len(buttons))
	}

	in := &interactiveBody{Type: "button"}
	in.Body.Text = body
	for _, b := range buttons {
		var rb replyButton
		rb.Type = "reply"
		rb.Reply.ID = b.ID
		rb.Reply.Title = b.Title
		in.Action.Buttons = append(in.Action.Buttons, rb)
	}

	return c.send(ctx, sendRequest{
		To:          to,
		Type:        "interactive",
		Interactive: in,
	})
}

func (c *WhatsAppClient) send(ctx context.Context, msg sendRequest) (string, error) {
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"

	reqBody, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("messages"), bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if len(sr.Messages) == 0 || sr.Messages[0].ID == "" {
		return "", fmt.Errorf("missing message id in response body=%q", string(body))
	}
	return sr.Messages[0].ID, nil
}

// UploadMedia downloads sourceURL and uploads it as WhatsApp media,
// returning the media id.
func (c *WhatsAppClient) UploadMedia(ctx context.Context, sourceURL string) (string, error) {
	data, contentType, err := c.download(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", sourceURL, err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	if err := w.WriteField("type", contentType); err != nil {
		return "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, mediaFilename(sourceURL, contentType)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("media"), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var ur uploadResponse
	if err := json.Unmarshal(body, &ur); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if ur.ID == "" {
		return "", fmt.Errorf("missing media id in response body=%q", string(body))
	}
	return ur.ID, nil
}

func (c *WhatsAppClient) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxMediaBytes {
		return nil, "", fmt.Errorf("media exceeds %d bytes", maxMediaBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("unsupported media type %q", contentType)
	}
	return data, contentType, nil
}

func (c *WhatsAppClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *WhatsAppClient) endpoint(resource string) string {
	return c.baseURL + "/" + c.phoneNumberID + "/" + resource
}

func mediaFilename(sourceURL, contentType string) string {
	ext := path.Ext(strings.SplitN(sourceURL, "?", 2)[0])
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return "event-" + uuid.NewString() + ext
}
