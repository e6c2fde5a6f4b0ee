// Package notify delivers "item is in stock" notifications to
// subscribers over a per-subscriber channel (SMTP or Telegram), with
// bounded retries around each delivery.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"stockwatch/internal/catalog"
)

// Message is one outbound notification.
type Message struct {
	ItemKey    string
	URL        string
	Subject    string
	Body       string
	DetectedAt time.Time
}

// NewMessage builds the notification for an availability detection.
func NewMessage(item *catalog.Item, detectedAt time.Time) Message {
	subject := fmt.Sprintf("%s is (possibly) in stock!", item.Key)
	body := fmt.Sprintf("%s\n\nDetected %s (%s)",
		item.URL, humanize.Time(detectedAt), detectedAt.Format(time.RFC1123))
	return Message{
		ItemKey:    item.Key,
		URL:        item.URL,
		Subject:    subject,
		Body:       body,
		DetectedAt: detectedAt,
	}
}

// Sink attempts a single delivery. Errors are considered transient;
// the Deliverer decides whether to retry.
type Sink interface {
	Send(ctx context.Context, sub *catalog.Subscriber, msg Message) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, sub *catalog.Subscriber, msg Message) error

func (f SinkFunc) Send(ctx context.Context, sub *catalog.Subscriber, msg Message) error {
	return f(ctx, sub, msg)
}
