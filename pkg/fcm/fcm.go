package fcm

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	messagingClient *messaging.Client
	dryRun          bool
	logger          *zap.Logger
}

// NewClient creates a new FCM client using the provided credentials file.
// In dry-run mode messages are validated by FCM but never delivered.
func NewClient(ctx context.Context, credentialsFile string, dryRun bool, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	logger.Info("FCM client initialized", zap.Bool("dry_run", dryRun))
	return &Client{
		messagingClient: messagingClient,
		dryRun:          dryRun,
		logger:          logger,
	}, nil
}

// NotificationData contains the data to send in a push notification
type NotificationData struct {
	Title    string
	Body     string
	ImageURL string            // Optional notification image
	Data     map[string]string // Custom data payload
	// Android accent color, e.g. "#4CAF50"
	Color string
	// Badge count for iOS; zero leaves the badge untouched
	Badge int
}

// DeliveryError is returned when FCM rejects or fails a send
type DeliveryError struct {
	Err error
	// Unregistered is set when the token is no longer valid for this app
	Unregistered bool
}

func (e *DeliveryError) Error() string {
	if e.Unregistered {
		return fmt.Sprintf("fcm token unregistered: %v", e.Err)
	}
	return fmt.Sprintf("failed to send FCM message: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsUnregistered reports whether err means the device token should be retired
func IsUnregistered(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Unregistered
}

// Send delivers a push notification to a single device token
func (c *Client) Send(ctx context.Context, token string, notification NotificationData) error {
	message := BuildMessage(token, notification)

	var (
		response string
		err      error
	)
	if c.dryRun {
		response, err = c.messagingClient.SendDryRun(ctx, message)
	} else {
		response, err = c.messagingClient.Send(ctx, message)
	}
	if err != nil {
		// Classify before wrapping, the messaging helpers do not unwrap
		return &DeliveryError{
			Err:          err,
			Unregistered: messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err),
		}
	}

	c.logger.Debug("FCM message sent", zap.String("message_id", response))
	return nil
}

// BuildMessage assembles the platform specific FCM message
func BuildMessage(token string, notification NotificationData) *messaging.Message {
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title:    notification.Title,
			Body:     notification.Body,
			ImageURL: notification.ImageURL,
		},
		Data: notification.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Icon:  "ic_notification",
				Color: notification.Color,
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: notification.Title,
				Body:  notification.Body,
				Icon:  "/icon-192.svg",
			},
		},
	}
	if notification.Badge > 0 {
		badge := notification.Badge
		message.APNS.Payload.Aps.Badge = &badge
	}
	return message
}
