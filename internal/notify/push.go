package notify

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"rentalshop-trusted/internal/logger"
)

type pushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Push sends alerts to the staff devices subscribed to a branch topic.
type Push struct {
	client      pushSender
	topicPrefix string
}

// NewPush builds an FCM client from a service-account credentials file.
func NewPush(ctx context.Context, credentialsFile, topicPrefix string) (*Push, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase messaging: %w", err)
	}
	return &Push{client: client, topicPrefix: topicPrefix}, nil
}

// Topic is the FCM topic for a branch, e.g. "branch-3".
func (p *Push) Topic(branchID int64) string {
	return p.topicPrefix + strconv.FormatInt(branchID, 10)
}

func (p *Push) Notify(ctx context.Context, a Alert) error {
	msg := &messaging.Message{
		Topic: p.Topic(a.BranchID),
		Notification: &messaging.Notification{
			Title: a.Title(),
			Body:  a.Body(),
		},
		Data: map[string]string{
			"alert_id":  a.ID,
			"kind":      string(a.Kind),
			"rental_id": strconv.FormatInt(a.RentalID, 10),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
	}

	logger.ExternalServiceCall("fcm", "send", "topic", msg.Topic, "rental_id", a.RentalID)
	_, err := p.client.Send(ctx, msg)
	logger.ExternalServiceResult("fcm", "send", err, "topic", msg.Topic)
	if err != nil {
		return fmt.Errorf("failed to push alert: %w", err)
	}
	return nil
}
