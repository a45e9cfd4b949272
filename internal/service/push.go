package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// PushReceipt is the delivery outcome for one device token.
type PushReceipt struct {
	Token     string
	Delivered bool
	Error     string
}

// PushSender delivers offers to riders with no open realtime connection.
// Best effort: failures are logged by callers and never fail dispatch.
type PushSender interface {
	SendBatch(ctx context.Context, tokens []string, payload map[string]any) []PushReceipt
}

// FCMSender posts data messages to the FCM HTTP endpoint.
type FCMSender struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

// NewFCMSender creates an FCMSender for the given endpoint and server key.
func NewFCMSender(endpoint, key string) *FCMSender {
	return &FCMSender{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

// SendBatch posts one message per token and collects per-token receipts.
func (f *FCMSender) SendBatch(ctx context.Context, tokens []string, payload map[string]any) []PushReceipt {
	receipts := make([]PushReceipt, 0, len(tokens))
	for _, token := range tokens {
		receipts = append(receipts, f.sendOne(ctx, token, payload))
	}
	return receipts
}

func (f *FCMSender) sendOne(ctx context.Context, token string, payload map[string]any) PushReceipt {
	body := map[string]any{
		"message": map[string]any{
			"token": token,
			"data":  payload,
		},
	}

	b, err := json.Marshal(body)
	if err != nil {
		return PushReceipt{Token: token, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return PushReceipt{Token: token, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return PushReceipt{Token: token, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return PushReceipt{Token: token, Error: resp.Status}
	}
	return PushReceipt{Token: token, Delivered: true}
}

var _ PushSender = (*FCMSender)(nil)

// NoopPushSender is used when no FCM credentials are configured.
type NoopPushSender struct{}

// SendBatch logs and reports every token as undelivered.
func (NoopPushSender) SendBatch(ctx context.Context, tokens []string, payload map[string]any) []PushReceipt {
	if len(tokens) > 0 {
		log.Printf("push disabled, dropping %d notifications", len(tokens))
	}
	receipts := make([]PushReceipt, 0, len(tokens))
	for _, t := range tokens {
		receipts = append(receipts, PushReceipt{Token: t, Error: "push disabled"})
	}
	return receipts
}
