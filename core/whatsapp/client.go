package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/outbound"
)

const (
	maxErrorBody      = 4 << 10
	defaultListButton = "Show Options"
)

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	Status    int
	Code      int
	Message   string
	FBTraceID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whatsapp api: http %d", e.Status)
	}
	return fmt.Sprintf("whatsapp api: http %d code %d: %s", e.Status, e.Code, e.Message)
}

// StatusCode exposes the HTTP status for retry classification.
func (e *APIError) StatusCode() int {
	return e.Status
}

// ClientConfig addresses the Graph API.
type ClientConfig struct {
	BaseURL    string
	Version    string
	Token      string
	HTTPClient *http.Client
}

// Client sends messages through the Cloud API messages endpoint.
type Client struct {
	base    string
	version string
	token   string
	http    *http.Client
}

var _ outbound.Sender = (*Client)(nil)

// NewClient validates cfg and builds a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("whatsapp: token is required")
	}
	if cfg.BaseURL == "" || cfg.Version == "" {
		return nil, errors.New("whatsapp: base url and version are required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		version: strings.Trim(cfg.Version, "/"),
		token:   cfg.Token,
		http:    hc,
	}, nil
}

// Send implements outbound.Sender. to.From is the sending phone-number id.
func (c *Client) Send(ctx context.Context, to outbound.Recipient, msg outbound.Message) error {
	_, err := c.SendMessage(ctx, to, msg)
	return err
}

// SendMessage posts msg and returns the provider message id.
func (c *Client) SendMessage(ctx context.Context, to outbound.Recipient, msg outbound.Message) (string, error) {
	if to.From == "" || to.To == "" {
		return "", fmt.Errorf("whatsapp: incomplete recipient %+v", to)
	}
	req, err := buildRequest(to.To, msg)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp: encode: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.base, c.version, to.From)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("whatsapp: request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("whatsapp: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := decodeError(resp)
		logger.Warn(ctx, "wa", "wa.send",
			slog.String("status", "fail"),
			slog.String("kind", string(msg.Kind)),
			slog.Int("http_code", resp.StatusCode),
			slog.Int("err_code", apiErr.Code),
			slog.Duration("duration", logger.Took(start)),
		)
		return "", apiErr
	}

	var out SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("whatsapp: decode response: %w", err)
	}
	id := ""
	if len(out.Messages) > 0 {
		id = out.Messages[0].ID
	}
	logger.Debug(ctx, "wa", "wa.send",
		slog.String("status", "ok"),
		slog.String("kind", string(msg.Kind)),
		slog.String("conversation_id", logger.MaskAddress(to.To)),
		slog.String("message_id", logger.CompactRID(id)),
		slog.Duration("duration", logger.Took(start)),
	)
	return id, nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env errorEnvelope
	if json.Unmarshal(data, &env) == nil && env.Error.Message != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.FBTraceID = env.Error.FBTraceID
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}

func buildRequest(to string, msg outbound.Message) (sendRequest, error) {
	if err := msg.Validate(); err != nil {
		return sendRequest{}, err
	}
	req := sendRequest{MessagingProduct: "whatsapp", RecipientType: "individual", To: to}
	switch msg.Kind {
	case outbound.KindText:
		req.Type = "text"
		req.Text = &TextContent{Body: msg.Body}
	case outbound.KindButtons:
		buttons := make([]replyButton, 0, len(msg.Options))
		for _, o := range msg.Options {
			buttons = append(buttons, replyButton{Type: "reply", Reply: Reply{ID: o.ID, Title: o.Title}})
		}
		req.Type = "interactive"
		req.Interactive = &interactiveRequest{
			Type:   "button",
			Body:   textObject{Text: msg.Body},
			Action: interactiveAction{Buttons: buttons},
		}
	case outbound.KindList:
		rows := make([]Reply, 0, len(msg.Options))
		for _, o := range msg.Options {
			rows = append(rows, Reply{ID: o.ID, Title: o.Title, Description: o.Description})
		}
		button := msg.Button
		if button == "" {
			button = defaultListButton
		}
		ir := &interactiveRequest{
			Type:   "list",
			Body:   textObject{Text: msg.Body},
			Action: interactiveAction{Button: button, Sections: []listSection{{Title: msg.Header, Rows: rows}}},
		}
		if msg.Header != "" {
			ir.Header = &interactiveHeader{Type: "text", Text: msg.Header}
		}
		req.Type = "interactive"
		req.Interactive = ir
	}
	return req, nil
}
