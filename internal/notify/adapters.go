package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"dispatch-and-delivery/internal/models"
)

// EmailAdapter sends via Amazon SES v2.
type EmailAdapter struct {
	client *sesv2.Client
	from   string
}

// NewEmailAdapter wraps an sesv2 client configured by the caller
// (region/credentials come from the standard AWS config chain).
func NewEmailAdapter(client *sesv2.Client, from string) *EmailAdapter {
	return &EmailAdapter{client: client, from: from}
}

func (a *EmailAdapter) Send(ctx context.Context, recipient models.Recipient, title, body string) error {
	_, err := a.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(a.from),
		Destination:      &types.Destination{ToAddresses: []string{recipient.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(title)},
				Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}

// PushAdapter delivers to a push gateway authenticated via OAuth2
// client-credentials (the gateway's own token endpoint, not a
// per-user flow).
type PushAdapter struct {
	endpoint   string
	httpClient *http.Client
}

// NewPushAdapter builds an http.Client wrapping an
// oauth2/clientcredentials TokenSource, so every request the adapter
// issues carries a fresh bearer token.
func NewPushAdapter(ctx context.Context, tokenURL, clientID, clientSecret, endpoint string) *PushAdapter {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &PushAdapter{
		endpoint:   endpoint,
		httpClient: oauth2.NewClient(ctx, cfg.TokenSource(ctx)),
	}
}

type pushPayload struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (a *PushAdapter) Send(ctx context.Context, recipient models.Recipient, title, body string) error {
	payload, err := json.Marshal(pushPayload{Token: recipient.PushToken, Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// WebhookAdapter posts an HMAC-SHA256-signed payload to the
// recipient's configured webhook URL.
type WebhookAdapter struct {
	secret     []byte
	httpClient *http.Client
}

// NewWebhookAdapter builds an adapter signing every outbound body
// with secret.
func NewWebhookAdapter(secret []byte, httpClient *http.Client) *WebhookAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WebhookAdapter{secret: secret, httpClient: httpClient}
}

type webhookPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (a *WebhookAdapter) Send(ctx context.Context, recipient models.Recipient, title, body string) error {
	payload, err := json.Marshal(webhookPayload{Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, recipient.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signBody(a.secret, payload))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func signBody(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SMSAdapter and ChatAdapter are thin function-backed adapters; the
// caller's SendFunc connects them to whichever concrete SMS/chat
// gateway a deployment uses without this package depending on it.
// cmd/dispatchd's buildNotifier configures neither.
type SMSAdapter struct {
	SendFunc func(ctx context.Context, phone, body string) error
}

func (a *SMSAdapter) Send(ctx context.Context, recipient models.Recipient, title, body string) error {
	return a.SendFunc(ctx, recipient.Phone, body)
}

type ChatAdapter struct {
	SendFunc func(ctx context.Context, chatID, title, body string) error
}

func (a *ChatAdapter) Send(ctx context.Context, recipient models.Recipient, title, body string) error {
	return a.SendFunc(ctx, recipient.ChatID, title, body)
}
