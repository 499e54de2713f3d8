package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushCooldown silences a (studentID, driverName, kind) key after a
// delivered device push. Disjoint from the guardian-panel dedup.
const PushCooldown = 5 * time.Minute

// PushKind selects which alerts ride the device-push channel.
type PushKind string

const (
	PushKindProximity PushKind = "proximity"
	PushKindArrival   PushKind = "arrival"
	PushKindDelay     PushKind = "delay"
)

// PushSender delivers one message to a set of device tokens.
type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// TokenSource resolves a user's registered device tokens. A user with no
// tokens has not granted push permission; they are skipped, not retried.
type TokenSource interface {
	UserTokens(userID string) ([]string, error)
}

// FCMSender is the Firebase Cloud Messaging implementation of PushSender.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender creates a sender from a credentials file.
func NewFCMSender(credentialsFile string) (*FCMSender, error) {
	return newFCMSender(option.WithCredentialsFile(credentialsFile))
}

// NewFCMSenderFromBase64 creates a sender from base64-encoded credentials.
// Useful for cloud deployments where you can't upload files easily.
func NewFCMSenderFromBase64(credentialsBase64 string) (*FCMSender, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
	}
	return newFCMSender(option.WithCredentialsJSON(credentialsJSON))
}

func newFCMSender(opt option.ClientOption) (*FCMSender, error) {
	ctx := context.Background()

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMSender{client: client}, nil
}

// SendMulticast sends the same message to multiple tokens.
func (s *FCMSender) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}

	response, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending multicast message: %w", err)
	}

	log.Printf("✅ Push multicast sent: %d success, %d failures", response.SuccessCount, response.FailureCount)
	return nil
}

// PushNotifier is the second, independent dispatch path: device-level
// banners for proximity/arrival/delay alerts. It coexists with the
// guardian-panel path without double counting because the two use
// disjoint idempotency keys and disjoint delivery channels.
type PushNotifier struct {
	sender PushSender
	tokens TokenSource

	mu   sync.Mutex
	sent map[string]time.Time // (studentID|driverName|kind) -> silenced until
	now  func() time.Time
}

// NewPushNotifier wires the push path. sender may be nil when FCM is not
// configured; Notify then degrades to a no-op.
func NewPushNotifier(sender PushSender, tokens TokenSource) *PushNotifier {
	return &PushNotifier{
		sender: sender,
		tokens: tokens,
		sent:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Notify pushes one alert to all of the user's devices, at most once per
// (studentID, driverName, kind) per cooldown window. Failures never
// propagate past this channel.
func (p *PushNotifier) Notify(userID string, kind PushKind, studentID, driverName, title, body string) {
	if p.sender == nil {
		return
	}

	key := studentID + "|" + driverName + "|" + string(kind)
	now := p.now()

	p.mu.Lock()
	if until, ok := p.sent[key]; ok && now.Before(until) {
		p.mu.Unlock()
		return
	}
	p.sent[key] = now.Add(PushCooldown)
	p.mu.Unlock()

	tokens, err := p.tokens.UserTokens(userID)
	if err != nil {
		log.Printf("❌ Push token lookup failed for %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		// No registered device: permission never granted or revoked.
		// Terminal until the user re-registers; nothing to retry.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data := map[string]string{
		"type":        string(kind),
		"student_id":  studentID,
		"driver_name": driverName,
	}
	if err := p.sender.SendMulticast(ctx, tokens, title, body, data); err != nil {
		log.Printf("❌ Push delivery failed for %s: %v", userID, err)
	}
}

// Reset clears the push dedup memory. Called on trip finish.
func (p *PushNotifier) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = make(map[string]time.Time)
}
