package webhook

import (
	"errors"
	"fmt"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
)

// SignatureHeader is the request header carrying the processor signature.
const SignatureHeader = "Stripe-Signature"

var (
	ErrMissingSecret    = errors.New("webhook signing secret missing")
	ErrInvalidSignature = errors.New("webhook signature invalid")
	ErrMalformedEvent   = errors.New("webhook event malformed")
)

// Verifier checks processor signatures and decodes the signed event.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier constructs a verifier. A non-positive tolerance uses the processor default.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = stripewebhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// ConstructEvent verifies header against payload and decodes the event.
// Signature failures wrap ErrInvalidSignature; undecodable bodies wrap ErrMalformedEvent.
func (v *Verifier) ConstructEvent(payload []byte, header string) (*Event, error) {
	if v.secret == "" {
		return nil, ErrMissingSecret
	}
	evt, err := stripewebhook.ConstructEventWithOptions(payload, header, v.secret, stripewebhook.ConstructEventOptions{
		Tolerance: v.tolerance,
		// Only stable PaymentIntent fields are read, so the account API version may differ from the SDK pin.
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return fromStripe(evt)
}

// Sign returns a header value for payload at ts, in the processor's format.
func (v *Verifier) Sign(payload []byte, ts time.Time) (string, error) {
	if v.secret == "" {
		return "", ErrMissingSecret
	}
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    v.secret,
		Timestamp: ts,
		Scheme:    "v1",
	})
	return signed.Header, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, stripewebhook.ErrNotSigned) ||
		errors.Is(err, stripewebhook.ErrInvalidHeader) ||
		errors.Is(err, stripewebhook.ErrNoValidSignature) ||
		errors.Is(err, stripewebhook.ErrTooOld)
}
