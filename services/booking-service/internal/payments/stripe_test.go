package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
)

func verifierReturning(pi *stripe.PaymentIntent, err error) *StripeVerifier {
	return &StripeVerifier{
		currency: "usd",
		fetch: func(context.Context, string) (*stripe.PaymentIntent, error) {
			return pi, err
		},
	}
}

func TestMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"100":    10000,
		"100.00": 10000,
		"19.99":  1999,
		"0.005":  1,
		"0":      0,
	}
	for in, want := range cases {
		if got := MinorUnits(decimal.RequireFromString(in)); got != want {
			t.Fatalf("%s: expected %d, got %d", in, want, got)
		}
	}
}

func TestVerifyPayment(t *testing.T) {
	price := decimal.RequireFromString("100.00")
	ok := &stripe.PaymentIntent{
		Status:         stripe.PaymentIntentStatusSucceeded,
		Currency:       stripe.CurrencyUSD,
		AmountReceived: 10000,
		Metadata:       map[string]string{MetadataAppointmentID: "appt-1"},
	}
	if err := verifierReturning(ok, nil).VerifyPayment(context.Background(), "appt-1", "pi_1", price); err != nil {
		t.Fatalf("expected verified, got %v", err)
	}

	pending := *ok
	pending.Status = stripe.PaymentIntentStatusProcessing
	if err := verifierReturning(&pending, nil).VerifyPayment(context.Background(), "appt-1", "pi_1", price); !errors.Is(err, ErrNotSucceeded) {
		t.Fatalf("expected not succeeded, got %v", err)
	}

	short := *ok
	short.AmountReceived = 5000
	if err := verifierReturning(&short, nil).VerifyPayment(context.Background(), "appt-1", "pi_1", price); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected amount mismatch, got %v", err)
	}

	euro := *ok
	euro.Currency = stripe.CurrencyEUR
	if err := verifierReturning(&euro, nil).VerifyPayment(context.Background(), "appt-1", "pi_1", price); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}

	if err := verifierReturning(ok, nil).VerifyPayment(context.Background(), "appt-2", "pi_1", price); !errors.Is(err, ErrWrongReference) {
		t.Fatalf("expected wrong reference, got %v", err)
	}

	for _, err := range []error{
		verifierReturning(&pending, nil).VerifyPayment(context.Background(), "appt-1", "pi_1", price),
		verifierReturning(&short, nil).VerifyPayment(context.Background(), "appt-1", "pi_1", price),
		verifierReturning(ok, nil).VerifyPayment(context.Background(), "appt-2", "pi_1", price),
	} {
		if !errors.Is(err, booking.ErrPaymentRejected) {
			t.Fatalf("expected payment rejected, got %v", err)
		}
	}

	boom := errors.New("network down")
	err := verifierReturning(nil, boom).VerifyPayment(context.Background(), "appt-1", "pi_1", price)
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if errors.Is(err, booking.ErrPaymentRejected) {
		t.Fatalf("fetch failure must not read as a rejection: %v", err)
	}
}

func TestNoopVerifierAcceptsEverything(t *testing.T) {
	if err := (NoopVerifier{}).VerifyPayment(context.Background(), "a", "r", decimal.Zero); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
