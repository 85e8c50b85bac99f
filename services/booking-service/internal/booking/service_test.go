package booking_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage/memory"
)

const (
	unit = "unit-1"
	prof = "prof-1"
	svc  = "svc-cut"
	day  = "2026-03-02"
)

type fixture struct {
	svc      *booking.Service
	store    *memory.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	_ = store.UpsertService(ctx, model.Service{ID: svc, Name: "Cut", DurationMinutes: 60, Price: decimal.RequireFromString("100.00")})
	_ = store.UpsertService(ctx, model.Service{ID: "svc-trim", Name: "Trim", DurationMinutes: 30, Price: decimal.RequireFromString("35.50")})
	_ = store.UpsertProfessional(ctx, model.Professional{ID: prof, Name: "Ana", CommissionPercentage: decimal.NewFromInt(50)})

	policies, err := calendar.NewStaticSource(calendar.Default)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	n := &recordingNotifier{}
	s, err := booking.NewService(booking.Deps{
		Catalog:  store,
		Blocked:  store,
		Store:    store,
		Policies: policies,
		Notifier: n,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return fixture{svc: s, store: store, notifier: n}
}

func (f fixture) book(t *testing.T, start string, serviceID string) (model.Appointment, error) {
	t.Helper()
	res, err := f.svc.CreateAppointment(context.Background(), booking.CreateAppointmentRequest{
		UnitID:         unit,
		ProfessionalID: prof,
		ServiceID:      serviceID,
		Date:           day,
		StartTime:      start,
		ClientName:     "Client",
		ClientPhone:    "+10000000",
	})
	return res.Appointment, err
}

type recordingNotifier struct {
	mu      sync.Mutex
	booked  []string
	settled []string
	fail    bool
}

func (n *recordingNotifier) AppointmentBooked(_ context.Context, a model.Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("sink down")
	}
	n.booked = append(n.booked, a.ID)
	return nil
}

func (n *recordingNotifier) AppointmentSettled(_ context.Context, s model.Settlement) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("sink down")
	}
	n.settled = append(n.settled, s.AppointmentID)
	return nil
}

func TestGetAvailableSlotsScenario(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book(t, "10:00", svc); err != nil {
		t.Fatalf("book: %v", err)
	}
	slots, err := f.svc.GetAvailableSlots(context.Background(), booking.SlotsQuery{ProfessionalID: prof, Date: day, ServiceID: svc})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	for _, excluded := range []int{570, 600, 630} {
		if slices.Contains(slots, excluded) {
			t.Fatalf("expected %s excluded, got %v", model.FormatClock(excluded), slots)
		}
	}
	if !slices.Contains(slots, 540) || !slices.Contains(slots, 660) {
		t.Fatalf("expected 09:00 and 11:00 available, got %v", slots)
	}
	if slots[len(slots)-1] != 1020 {
		t.Fatalf("expected 17:00 last, got %s", model.FormatClock(slots[len(slots)-1]))
	}
}

func TestGetAvailableSlotsErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.GetAvailableSlots(ctx, booking.SlotsQuery{ProfessionalID: prof, Date: day, ServiceID: "nope"}); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.GetAvailableSlots(ctx, booking.SlotsQuery{ProfessionalID: prof, ServiceID: svc}); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.GetAvailableSlots(ctx, booking.SlotsQuery{ProfessionalID: prof, Date: "02/03/2026", ServiceID: svc}); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad date, got %v", err)
	}
	// An unknown professional still gets the default calendar.
	slots, err := f.svc.GetAvailableSlots(ctx, booking.SlotsQuery{ProfessionalID: "new-hire", Date: day, ServiceID: svc})
	if err != nil || len(slots) != 17 {
		t.Fatalf("expected 17 slots for a fresh calendar, got %d (%v)", len(slots), err)
	}
}

func TestGetAvailableSlotsHonoursBlockedTime(t *testing.T) {
	f := newFixture(t)
	d := availability.Day{Year: 2026, Month: time.March, Day: 2, Loc: time.UTC}
	_ = f.store.AddBlockedTime(context.Background(), model.BlockedTime{ID: "b1", ProfessionalID: prof, Start: d.At(720), End: d.At(780)})

	slots, err := f.svc.GetAvailableSlots(context.Background(), booking.SlotsQuery{ProfessionalID: prof, Date: day, ServiceID: svc})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	for _, excluded := range []int{690, 720, 750} {
		if slices.Contains(slots, excluded) {
			t.Fatalf("expected %s excluded by lunch block, got %v", model.FormatClock(excluded), slots)
		}
	}
	if !slices.Contains(slots, 660) || !slices.Contains(slots, 780) {
		t.Fatalf("expected 11:00 and 13:00 available, got %v", slots)
	}
}

func TestEverySlotIsBookable(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book(t, "13:00", svc); err != nil {
		t.Fatalf("book: %v", err)
	}
	slots, err := f.svc.GetAvailableSlots(context.Background(), booking.SlotsQuery{ProfessionalID: prof, Date: day, ServiceID: svc})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	for _, s := range slots {
		g := newFixture(t)
		if _, err := g.book(t, "13:00", svc); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if _, err := g.book(t, model.FormatClock(s), svc); err != nil {
			t.Fatalf("slot %s was offered but booking failed: %v", model.FormatClock(s), err)
		}
	}
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)
	appt, err := f.book(t, "09:00", svc)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.Status != model.StatusPending || appt.StartMinute != 540 || appt.EndMinute != 600 {
		t.Fatalf("unexpected appointment %+v", appt)
	}
	if !appt.Price.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected price snapshot 100, got %s", appt.Price)
	}
	if len(f.notifier.booked) != 1 || f.notifier.booked[0] != appt.ID {
		t.Fatalf("expected one booked notification, got %v", f.notifier.booked)
	}

	// Back-to-back is fine, overlap is not.
	if _, err := f.book(t, "10:00", svc); err != nil {
		t.Fatalf("adjacent booking should succeed: %v", err)
	}
	if _, err := f.book(t, "09:30", "svc-trim"); !errors.Is(err, booking.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := booking.CreateAppointmentRequest{
		UnitID: unit, ProfessionalID: prof, ServiceID: svc, Date: day, StartTime: "09:00",
		ClientName: "C", ClientPhone: "1",
	}
	mutations := []func(*booking.CreateAppointmentRequest){
		func(r *booking.CreateAppointmentRequest) { r.UnitID = "" },
		func(r *booking.CreateAppointmentRequest) { r.ClientName = "  " },
		func(r *booking.CreateAppointmentRequest) { r.ClientPhone = "" },
		func(r *booking.CreateAppointmentRequest) { r.StartTime = "9am" },
		func(r *booking.CreateAppointmentRequest) { r.Date = "2026-13-01" },
		func(r *booking.CreateAppointmentRequest) { r.StartTime = "23:30" },
	}
	for i, mutate := range mutations {
		req := base
		mutate(&req)
		if _, err := f.svc.CreateAppointment(ctx, req); !errors.Is(err, booking.ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
	req := base
	req.ServiceID = "missing"
	if _, err := f.svc.CreateAppointment(ctx, req); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAppointmentOffHoursAllowed(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book(t, "07:00", svc); err != nil {
		t.Fatalf("off-hours booking should be admitted: %v", err)
	}
}

func TestCreateAppointmentNotificationFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true
	appt, err := f.book(t, "09:00", svc)
	if err != nil {
		t.Fatalf("expected booking to succeed despite notifier failure: %v", err)
	}
	if _, err := f.store.GetAppointment(context.Background(), appt.ID); err != nil {
		t.Fatalf("appointment must persist: %v", err)
	}
}

func TestCreateAppointmentIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	req := booking.CreateAppointmentRequest{
		UnitID: unit, ProfessionalID: prof, ServiceID: svc, Date: day, StartTime: "09:00",
		ClientName: "C", ClientPhone: "1", IdempotencyKey: "key-1",
	}
	first, err := f.svc.CreateAppointment(context.Background(), req)
	if err != nil || first.Replayed {
		t.Fatalf("first create: %+v %v", first, err)
	}
	second, err := f.svc.CreateAppointment(context.Background(), req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed || second.Appointment.ID != first.Appointment.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Appointment.ID, second)
	}
	if len(f.notifier.booked) != 1 {
		t.Fatalf("expected a single notification, got %d", len(f.notifier.booked))
	}
}

func TestConcurrentIdenticalAdmissions(t *testing.T) {
	f := newFixture(t)
	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.book(t, "15:00", svc)
		}()
	}
	wg.Wait()

	created, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, booking.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 created and %d conflicts, got %d/%d", n-1, created, conflicts)
	}
}

func TestAcceptedAppointmentsNeverOverlap(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for m := 540; m < 1080; m += 15 {
		for _, s := range []string{svc, "svc-trim"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = f.book(t, model.FormatClock(m), s)
			}()
		}
	}
	wg.Wait()

	appts, _ := f.store.ActiveAppointments(context.Background(), prof, day)
	if len(appts) == 0 {
		t.Fatalf("expected some appointments")
	}
	for i := range appts {
		for j := i + 1; j < len(appts); j++ {
			a, b := appts[i], appts[j]
			if availability.Overlaps(a.StartMinute, a.EndMinute, b.StartMinute, b.EndMinute) {
				t.Fatalf("overlapping appointments %+v and %+v", a, b)
			}
		}
	}
}

func TestCloseAppointment(t *testing.T) {
	f := newFixture(t)
	appt, err := f.book(t, "09:00", svc)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	s, err := f.svc.CloseAppointment(context.Background(), booking.CloseAppointmentRequest{AppointmentID: appt.ID, PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	fifty := decimal.RequireFromString("50.00")
	if !s.CommissionAmount.Equal(fifty) || !s.SalonAmount.Equal(fifty) || !s.Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected settlement %+v", s)
	}
	if s.Income.Type != model.TxIncome || s.Commission.Type != model.TxCommission {
		t.Fatalf("unexpected transaction types")
	}
	if s.Commission.ProfessionalID == nil || *s.Commission.ProfessionalID != prof {
		t.Fatalf("commission must be tagged with the professional")
	}
	if s.Income.ProfessionalID != nil {
		t.Fatalf("income must not carry a professional")
	}

	got, _ := f.store.GetAppointment(context.Background(), appt.ID)
	if got.Status != model.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("expected completed, got %+v", got)
	}
	txs, _ := f.svc.ListTransactions(context.Background(), appt.ID, unit)
	if len(txs) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(txs))
	}
	if len(f.notifier.settled) != 1 {
		t.Fatalf("expected a settled notification")
	}
}

func TestCloseAppointmentTwice(t *testing.T) {
	f := newFixture(t)
	appt, _ := f.book(t, "09:00", svc)
	req := booking.CloseAppointmentRequest{AppointmentID: appt.ID, PaymentMethod: "cash"}
	if _, err := f.svc.CloseAppointment(context.Background(), req); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if _, err := f.svc.CloseAppointment(context.Background(), req); !errors.Is(err, booking.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}
	txs, _ := f.store.ListTransactions(context.Background(), appt.ID)
	if len(txs) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(txs))
	}
}

func TestConcurrentClose(t *testing.T) {
	f := newFixture(t)
	appt, _ := f.book(t, "09:00", svc)

	const n = 12
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.CloseAppointment(context.Background(), booking.CloseAppointmentRequest{AppointmentID: appt.ID, PaymentMethod: "cash"})
		}()
	}
	wg.Wait()

	ok, settled := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, booking.ErrAlreadySettled):
			settled++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || settled != n-1 {
		t.Fatalf("expected one success, got %d ok / %d already settled", ok, settled)
	}
	txs, _ := f.store.ListTransactions(context.Background(), appt.ID)
	if len(txs) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(txs))
	}
	if anomalies, _ := f.store.LedgerAnomalies(context.Background()); len(anomalies) != 0 {
		t.Fatalf("expected clean ledger, got %v", anomalies)
	}
}

func TestCloseAppointmentErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CloseAppointment(ctx, booking.CloseAppointmentRequest{AppointmentID: "missing", PaymentMethod: "cash"}); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	appt, _ := f.book(t, "09:00", svc)
	if _, err := f.svc.CloseAppointment(ctx, booking.CloseAppointmentRequest{AppointmentID: appt.ID}); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without payment method, got %v", err)
	}
	if _, err := f.svc.CloseAppointment(ctx, booking.CloseAppointmentRequest{AppointmentID: appt.ID, PaymentMethod: "cash", UnitID: "other-unit"}); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across units, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, booking.StatusChange{AppointmentID: appt.ID, Status: "cancelled"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.CloseAppointment(ctx, booking.CloseAppointmentRequest{AppointmentID: appt.ID, PaymentMethod: "cash"}); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for cancelled, got %v", err)
	}
}

func TestCloseUsesSnapshotPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt, _ := f.book(t, "09:00", svc)
	_ = f.store.UpsertService(ctx, model.Service{ID: svc, DurationMinutes: 90, Price: decimal.NewFromInt(250), UpdatedAt: time.Now()})

	s, err := f.svc.CloseAppointment(ctx, booking.CloseAppointmentRequest{AppointmentID: appt.ID, PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !s.Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected snapshot price 100, got %s", s.Price)
	}
	got, _ := f.store.GetAppointment(ctx, appt.ID)
	if got.EndMinute != 600 {
		t.Fatalf("end time must not be recomputed, got %d", got.EndMinute)
	}
}

type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) VerifyPayment(context.Context, string, string, decimal.Decimal) error {
	v.calls++
	return v.err
}

func TestCloseVerifiesCardPayments(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"rejected", fmt.Errorf("%w: requires_payment_method", booking.ErrPaymentRejected), booking.ErrInvalidInput},
		{"provider down", errors.New("stripe: connection refused"), booking.ErrStoreFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			ctx := context.Background()
			_ = store.UpsertService(ctx, model.Service{ID: svc, DurationMinutes: 60, Price: decimal.NewFromInt(40)})
			_ = store.UpsertProfessional(ctx, model.Professional{ID: prof, CommissionPercentage: decimal.NewFromInt(10)})
			policies, _ := calendar.NewStaticSource(calendar.Default)
			v := &stubVerifier{err: tc.err}
			s, _ := booking.NewService(booking.Deps{Catalog: store, Blocked: store, Store: store, Policies: policies, Payments: v})

			res, err := s.CreateAppointment(ctx, booking.CreateAppointmentRequest{
				UnitID: unit, ProfessionalID: prof, ServiceID: svc, Date: day, StartTime: "09:00", ClientName: "C", ClientPhone: "1",
			})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			_, err = s.CloseAppointment(ctx, booking.CloseAppointmentRequest{AppointmentID: res.Appointment.ID, PaymentMethod: "card", PaymentReference: "pi_123"})
			if !errors.Is(err, tc.wantErr) || v.calls != 1 {
				t.Fatalf("expected %v, got %v (calls %d)", tc.wantErr, err, v.calls)
			}
			got, _ := store.GetAppointment(ctx, res.Appointment.ID)
			if got.Status != model.StatusPending {
				t.Fatalf("appointment must be unchanged, got %s", got.Status)
			}
			if _, err := s.CloseAppointment(ctx, booking.CloseAppointmentRequest{AppointmentID: res.Appointment.ID, PaymentMethod: "cash"}); err != nil {
				t.Fatalf("cash close: %v", err)
			}
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt, _ := f.book(t, "09:00", svc)

	got, err := f.svc.UpdateStatus(ctx, booking.StatusChange{AppointmentID: appt.ID, Status: "confirmed"})
	if err != nil || got.Status != model.StatusConfirmed {
		t.Fatalf("confirm: %+v %v", got, err)
	}
	if _, err := f.svc.UpdateStatus(ctx, booking.StatusChange{AppointmentID: appt.ID, Status: "confirmed"}); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput re-confirming, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, booking.StatusChange{AppointmentID: appt.ID, Status: "completed"}); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("expected completed to be rejected, got %v", err)
	}

	// Cancelling frees the slot.
	if _, err := f.svc.UpdateStatus(ctx, booking.StatusChange{AppointmentID: appt.ID, Status: "cancelled"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.book(t, "09:00", svc); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}

	done, _ := f.book(t, "12:00", svc)
	_, _ = f.svc.CloseAppointment(ctx, booking.CloseAppointmentRequest{AppointmentID: done.ID, PaymentMethod: "cash"})
	if _, err := f.svc.UpdateStatus(ctx, booking.StatusChange{AppointmentID: done.ID, Status: "cancelled"}); !errors.Is(err, booking.ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}
}

func TestListAppointments(t *testing.T) {
	f := newFixture(t)
	_, _ = f.book(t, "14:00", svc)
	first, _ := f.book(t, "09:00", svc)
	_, _ = f.svc.UpdateStatus(context.Background(), booking.StatusChange{AppointmentID: first.ID, Status: "cancelled"})

	appts, err := f.svc.ListAppointments(context.Background(), prof, day)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(appts) != 2 || appts[0].StartMinute != 540 || appts[1].StartMinute != 840 {
		t.Fatalf("expected both appointments ordered by start, got %+v", appts)
	}
	if _, err := f.svc.ListAppointments(context.Background(), "", day); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
