// Package dingtalk implements the Notifier port against a DingTalk group
// robot webhook.
package dingtalk

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"prdigest/internal/domain/port/driven"
)

// maxResponseBytes caps how much of the webhook response body is read for
// logging and error reporting.
const maxResponseBytes = 4 << 10

// Compile-time interface satisfaction check.
var _ driven.Notifier = (*Notifier)(nil)

// Notifier implements the driven.Notifier port by posting text messages to a
// DingTalk robot webhook URL.
type Notifier struct {
	httpClient *http.Client
	webhookURL string
	secret     string
}

// NewNotifier creates a webhook notifier. secret may be empty; when set,
// requests carry the timestamp and sign query parameters DingTalk's signed
// robots require.
func NewNotifier(webhookURL, secret string, timeout time.Duration) *Notifier {
	return &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		webhookURL: webhookURL,
		secret:     secret,
	}
}

// NewNotifierWithHTTPClient creates a Notifier with a custom http.Client.
// This constructor is intended for testing.
func NewNotifierWithHTTPClient(httpClient *http.Client, webhookURL, secret string) *Notifier {
	return &Notifier{
		httpClient: httpClient,
		webhookURL: webhookURL,
		secret:     secret,
	}
}

// message is the envelope DingTalk expects for plain text robot messages.
type message struct {
	MsgType string      `json:"msgtype"`
	Text    textContent `json:"text"`
	At      atSpec      `json:"at"`
}

type textContent struct {
	Content string `json:"content"`
}

type atSpec struct {
	IsAtAll bool `json:"isAtAll"`
}

// Notify posts the body as a text message mentioning the whole channel.
// Delivery is judged by the HTTP status; the response body is read only for
// logging.
func (n *Notifier) Notify(ctx context.Context, body string) error {
	payload, err := json.Marshal(message{
		MsgType: "text",
		Text:    textContent{Content: body},
		At:      atSpec{IsAtAll: true},
	})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	target, err := n.requestURL(time.Now())
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting digest to webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook rejected digest: status %s, body %q", resp.Status, respBody)
	}

	slog.Debug("webhook delivery accepted",
		"status", resp.StatusCode,
		"response", string(respBody),
	)
	return nil
}

// requestURL returns the webhook URL, extended with timestamp and sign query
// parameters when a signing secret is configured. The signature is the
// base64-encoded HMAC-SHA256 of "{timestamp}\n{secret}" keyed with the
// secret, with the timestamp in milliseconds.
func (n *Notifier) requestURL(now time.Time) (string, error) {
	if n.secret == "" {
		return n.webhookURL, nil
	}

	u, err := url.Parse(n.webhookURL)
	if err != nil {
		return "", fmt.Errorf("parsing webhook URL: %w", err)
	}

	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write([]byte(timestamp + "\n" + n.secret))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	q := u.Query()
	q.Set("timestamp", timestamp)
	q.Set("sign", sign)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
