package email

import (
	"context"
	"fmt"
	"log"
)

// CompositeEmailSender fans a message out to multiple Senders. The first sender
// is the primary one; its error is the one reported.
type CompositeEmailSender struct {
	senders []Sender
}

// NewCompositeEmailSender creates a CompositeEmailSender.
func NewCompositeEmailSender(senders ...Sender) *CompositeEmailSender {
	return &CompositeEmailSender{senders: senders}
}

// AddSender appends another sender to the fan-out.
func (cs *CompositeEmailSender) AddSender(sender Sender) {
	cs.senders = append(cs.senders, sender)
}

// Send delivers through every configured sender. Secondary sender failures are
// logged but do not fail the send.
func (cs *CompositeEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(cs.senders) == 0 {
		return fmt.Errorf("no senders configured in CompositeEmailSender")
	}

	var primaryErr error
	for i, sender := range cs.senders {
		if err := sender.Send(ctx, to, subject, rawMessage); err != nil {
			if i == 0 {
				primaryErr = err
			} else {
				log.Printf("Secondary email sender %d failed: %v", i, err)
			}
		}
	}
	return primaryErr
}
