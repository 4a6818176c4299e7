package services

import (
	"context"
	"encoding/json"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// NotificationPayload represents the notification data
type NotificationPayload struct {
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	ChannelID string                 `json:"channelId,omitempty"` // Android notification channel
	Tag       string                 `json:"tag,omitempty"`       // collapses updates for one booking
}

// FCMPusher sends push notifications through Firebase Cloud Messaging.
type FCMPusher struct {
	client *messaging.Client
}

// NewFCMPusher initializes the Firebase Admin SDK from a service account file.
func NewFCMPusher(ctx context.Context, serviceAccountPath string) (*FCMPusher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return &FCMPusher{client: client}, nil
}

func (p *FCMPusher) Push(ctx context.Context, token string, payload NotificationPayload) error {
	_, err := p.client.Send(ctx, buildFCMMessage(token, payload))
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	return nil
}

func buildFCMMessage(token string, payload NotificationPayload) *messaging.Message {
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data:    stringifyData(payload.Data),
		Token:   token,
		Android: getAndroidConfig(payload),
		APNS:    getAPNSConfig(),
	}
}

// stringifyData flattens values to strings, as FCM data payloads require.
func stringifyData(data map[string]interface{}) map[string]string {
	out := make(map[string]string, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case string:
			out[key] = v
		case int, int64, float64, bool:
			out[key] = fmt.Sprintf("%v", v)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			out[key] = string(raw)
		}
	}
	return out
}

func getAndroidConfig(payload NotificationPayload) *messaging.AndroidConfig {
	channelID := payload.ChannelID
	if channelID == "" {
		channelID = "haulbook_bookings"
	}

	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			Sound:                 "default",
			ChannelID:             channelID,
			Priority:              messaging.PriorityHigh,
			DefaultSound:          true,
			Tag:                   payload.Tag,
			DefaultVibrateTimings: true,
		},
	}
}

func getAPNSConfig() *messaging.APNSConfig {
	badge := 1
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Sound:            "default",
				Badge:            &badge,
				MutableContent:   true,
				ContentAvailable: true,
			},
		},
	}
}
