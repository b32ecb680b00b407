package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
)

// EventPaymentSucceeded is the only event type that triggers allocation.
const EventPaymentSucceeded = "payment_intent.succeeded"

// PaymentIntent is the processor payment object carried by payment_intent.* events.
type PaymentIntent = stripe.PaymentIntent

// Event is a verified processor event. PaymentIntent is set for payment_intent.* types.
type Event struct {
	ID            string
	Type          string
	PaymentIntent *PaymentIntent
}

func fromStripe(evt stripe.Event) (*Event, error) {
	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if out.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	if !strings.HasPrefix(out.Type, "payment_intent.") {
		return out, nil
	}
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: missing payment intent", ErrMalformedEvent)
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("%w: decode payment intent: %w", ErrMalformedEvent, err)
	}
	out.PaymentIntent = &intent
	return out, nil
}
