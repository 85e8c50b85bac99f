// Package payments confirms card payments with the payment provider before an appointment is settled.
package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
)

const MetadataAppointmentID = "appointment_id"

// Verdicts against a payment wrap booking.ErrPaymentRejected; fetch failures do not.
var (
	ErrNotSucceeded   = fmt.Errorf("%w: not succeeded", booking.ErrPaymentRejected)
	ErrAmountMismatch = fmt.Errorf("%w: amount mismatch", booking.ErrPaymentRejected)
	ErrWrongReference = fmt.Errorf("%w: belongs to another appointment", booking.ErrPaymentRejected)
)

type fetchFunc func(ctx context.Context, id string) (*stripe.PaymentIntent, error)

// StripeVerifier checks a PaymentIntent reference against the appointment being closed.
type StripeVerifier struct {
	fetch    fetchFunc
	currency string
}

func NewStripeVerifier(secretKey, currency string) *StripeVerifier {
	client := &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
	return &StripeVerifier{
		currency: strings.ToLower(strings.TrimSpace(currency)),
		fetch: func(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
			params := &stripe.PaymentIntentParams{}
			params.Context = ctx
			return client.Get(id, params)
		},
	}
}

func (v *StripeVerifier) VerifyPayment(ctx context.Context, appointmentID, reference string, amount decimal.Decimal) error {
	pi, err := v.fetch(ctx, reference)
	if err != nil {
		return fmt.Errorf("stripe: fetch payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: status %s", ErrNotSucceeded, pi.Status)
	}
	if v.currency != "" && !strings.EqualFold(string(pi.Currency), v.currency) {
		return fmt.Errorf("%w: currency %s", ErrAmountMismatch, pi.Currency)
	}
	want := MinorUnits(amount)
	if pi.AmountReceived != want {
		return fmt.Errorf("%w: received %d, expected %d", ErrAmountMismatch, pi.AmountReceived, want)
	}
	if id := pi.Metadata[MetadataAppointmentID]; id != "" && id != appointmentID {
		return fmt.Errorf("%w: %s", ErrWrongReference, id)
	}
	return nil
}

// MinorUnits converts a two-decimal amount to cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// NoopVerifier accepts every payment; used when no provider key is configured.
type NoopVerifier struct{}

func (NoopVerifier) VerifyPayment(context.Context, string, string, decimal.Decimal) error {
	return nil
}
