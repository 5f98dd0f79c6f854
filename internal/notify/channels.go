package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"campusmarket/internal/apperr"
)

// Channel is an external message transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, to, body string) error
}

// SMSSender posts messages to an HTTP SMS gateway.
type SMSSender struct {
	apiURL     string
	apiKey     string
	sender     string
	httpClient *http.Client
}

func NewSMSSender(apiURL, apiKey, sender string) (*SMSSender, error) {
	if apiURL == "" || apiKey == "" {
		return nil, errors.New("SMS_API_URL and SMS_API_KEY must be set")
	}
	return &SMSSender{
		apiURL:     apiURL,
		apiKey:     apiKey,
		sender:     sender,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *SMSSender) Name() string { return "sms" }

type smsMessage struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Message string `json:"message"`
}

func (s *SMSSender) Send(ctx context.Context, to, body string) error {
	_, err := postJSON(ctx, s.httpClient, s.apiURL, s.apiKey, smsMessage{From: s.sender, To: to, Message: body})
	if err != nil {
		return apperr.External("sms gateway", err)
	}
	return nil
}

// WhatsAppSender sends messages via WhatsApp Cloud API
type WhatsAppSender struct {
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
	baseURL       string
}

func NewWhatsAppSender(accessToken, phoneNumberID, baseURL string) (*WhatsAppSender, error) {
	if accessToken == "" || phoneNumberID == "" {
		return nil, errors.New("WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_NUMBER_ID must be set")
	}
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v18.0"
	}
	return &WhatsAppSender{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
	}, nil
}

func (w *WhatsAppSender) Name() string { return "whatsapp" }

// WhatsAppTextMessage represents a text message
type WhatsAppTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

// WhatsAppResponse represents the API response
type WhatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (w *WhatsAppSender) Send(ctx context.Context, to, body string) error {
	message := WhatsAppTextMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	message.Text.Body = body

	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)
	respBody, err := postJSON(ctx, w.httpClient, url, w.accessToken, message)
	if err != nil {
		return apperr.External("whatsapp api", err)
	}

	var resp WhatsAppResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return apperr.External("whatsapp api", fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if len(resp.Messages) == 0 {
		return apperr.External("whatsapp api", errors.New("no message ID in response"))
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url, bearer string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
