package app

import (
	"context"
	"errors"
	"testing"

	"github.com/example/taxilink/internal/booking"
	"github.com/example/taxilink/internal/channel/sms"
	"github.com/example/taxilink/internal/dispatch"
	"github.com/example/taxilink/internal/events"
	"github.com/example/taxilink/internal/geo"
	"github.com/example/taxilink/internal/matcher"
	"github.com/example/taxilink/internal/models"
	"github.com/example/taxilink/internal/storage"
)

type recordingNotifier struct{ got []dispatch.Assignment }

func (r *recordingNotifier) Notify(a dispatch.Assignment) error {
	r.got = append(r.got, a)
	return nil
}

type recordingPublisher struct{ got []events.Event }

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.got = append(r.got, e)
	return nil
}

type fixture struct {
	state    *State
	store    *storage.MemoryStore
	notifier *recordingNotifier
	events   *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{store: storage.NewMemoryStore(), notifier: &recordingNotifier{}, events: &recordingPublisher{}}
	f.state = Load(context.Background(), Deps{Store: f.store, Notifier: f.notifier, Publisher: f.events})
	return f
}

func TestRegisteredDriverIsAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.state.RegisterDriver(ctx, models.NewRegistrationDraft("Jane", "071 234 5678", "CA 123", true))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, a := range f.state.AvailableDrivers() {
		if a.ID == d.ID && a.Name == "Jane" && a.Car == "CA 123" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Jane missing from available drivers: %+v", f.state.AvailableDrivers())
	}
	if len(f.events.got) != 1 || f.events.got[0].Type != events.TypeDriverRegistered {
		t.Fatalf("expected driver.registered event, got %+v", f.events.got)
	}
}

func TestOnlineCommitRecordsBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jane, _ := f.state.RegisterDriver(ctx, models.DriverDraft{Name: "Jane", Price: "R20", ETA: "4 min", Rating: 4.6})
	before := len(f.state.History())

	sess := f.state.NewOnlineSession()
	draft, _ := booking.NewOnlineDraft("Church Square", "Menlyn", models.Time30Min, 2)
	if err := sess.Apply(draft); err != nil {
		t.Fatal(err)
	}
	if _, err := f.state.FindDrivers(sess); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Select(jane.ID); err != nil {
		t.Fatal(err)
	}
	b, err := f.state.ConfirmOnline(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}

	hist := f.state.History()
	if len(hist) != before+1 {
		t.Fatalf("expected exactly one new booking, have %d -> %d", before, len(hist))
	}
	newest := hist[0]
	if newest.ID != b.ID || newest.Price != "R20" || newest.Method != models.MethodOnline || newest.Status != models.StatusActive || newest.Driver != "Jane" {
		t.Fatalf("unexpected newest booking %+v", newest)
	}
	if newest.From != "Church Square" || newest.To != "Menlyn" {
		t.Fatalf("locations not copied: %+v", newest)
	}
	if len(f.notifier.got) != 1 || f.notifier.got[0].DriverID != jane.ID {
		t.Fatalf("assigned driver not notified: %+v", f.notifier.got)
	}

	// later driver changes never reach the committed booking
	if _, err := f.state.SetDriverAvailable(ctx, jane.ID, false); err != nil {
		t.Fatal(err)
	}
	again, _ := f.state.Ledger().Get(b.ID)
	if again != b {
		t.Fatalf("committed booking changed: %+v vs %+v", again, b)
	}
}

func TestConfirmWithoutSelectionLeavesLedger(t *testing.T) {
	f := newFixture(t)
	sess := f.state.NewOnlineSession()
	_ = sess.SetPickup("Church Square")
	before := f.state.History()
	if _, err := f.state.ConfirmOnline(context.Background(), sess); !errors.Is(err, booking.ErrNoDriverSelected) {
		t.Fatalf("expected ErrNoDriverSelected, got %v", err)
	}
	if after := f.state.History(); len(after) != len(before) {
		t.Fatalf("ledger changed: %d -> %d", len(before), len(after))
	}
	if len(f.notifier.got) != 0 {
		t.Fatal("notification sent for refused confirm")
	}
}

func TestFindDriversOnlyOffersAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.state.SetDriverAvailable(ctx, 1, false)
	sess := f.state.NewOnlineSession()
	_ = sess.SetPickup("A")
	_ = sess.SetDestination("B")
	cands, err := f.state.FindDrivers(sess)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cands {
		if c.ID == 1 {
			t.Fatal("unavailable driver offered")
		}
	}
	if d, _ := sess.Selected(); d.ID != 2 {
		t.Fatalf("expected lowest-index available driver 2, got %d", d.ID)
	}
}

func TestLoginPersistsAndGuestDoesNot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.state.Login(ctx, "  ", "071"); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := f.state.Login(ctx, "Lerato", "071 000 1111"); err != nil {
		t.Fatal(err)
	}
	f.state.Guest()
	if u := f.state.CurrentUser(); !u.IsGuest() {
		t.Fatalf("expected guest, got %+v", u)
	}

	restored := Load(ctx, Deps{Store: f.store})
	if u := restored.CurrentUser(); u == nil || u.Name != "Lerato" {
		t.Fatalf("expected persisted rider, got %+v", u)
	}
}

func TestBookingRecordsRiderName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.state.Login(ctx, "Lerato", "071")
	sess := f.state.NewOnlineSession()
	_ = sess.SetPickup("Hatfield")
	_ = sess.SetDestination("Menlyn")
	_, _ = f.state.FindDrivers(sess)
	b, err := f.state.ConfirmOnline(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if b.User != "Lerato" || b.Driver != "Thabo Mthembu" || b.Price != "R15" {
		t.Fatalf("unexpected booking %+v", b)
	}
}

func TestHistorySurvivesReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.state.NewOnlineSession()
	_ = sess.SetPickup("A")
	_ = sess.SetDestination("B")
	_, _ = f.state.FindDrivers(sess)
	b, _ := f.state.ConfirmOnline(ctx, sess)

	reloaded := Load(ctx, Deps{Store: f.store})
	if got := reloaded.Recent(1); len(got) != 1 || got[0] != b {
		t.Fatalf("booking not restored: %+v", got)
	}
}

func TestSetBookingStatusPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.state.SetBookingStatus(ctx, 2, models.StatusCompleted)
	if err != nil || b.Status != models.StatusCompleted {
		t.Fatalf("got %+v %v", b, err)
	}
	last := f.events.got[len(f.events.got)-1]
	if last.Type != events.TypeBookingStatus || last.Booking.ID != 2 {
		t.Fatalf("unexpected event %+v", last)
	}
	n := len(f.events.got)
	if _, err := f.state.SetBookingStatus(ctx, 999, models.StatusCancelled); err == nil {
		t.Fatal("expected not found")
	}
	if len(f.events.got) != n {
		t.Fatal("event published for failed status change")
	}
}

func TestDestinationFromTap(t *testing.T) {
	f := newFixture(t)
	sess := f.state.NewOnlineSession()
	label, err := f.state.DestinationFromTap(sess, geo.Position{Lat: -26.2021, Lon: 28.0351})
	if err != nil || label != "Bree Taxi Rank" || sess.Draft().Destination != "Bree Taxi Rank" {
		t.Fatalf("got %q %v %+v", label, err, sess.Draft())
	}
	if _, err := f.state.DestinationFromTap(sess, geo.Position{Lat: 123}); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestPluggableStrategy(t *testing.T) {
	s := Load(context.Background(), Deps{Store: storage.NewMemoryStore(), Strategy: matcher.Fastest{}})
	sess := s.NewOnlineSession()
	_ = sess.SetPickup("A")
	_ = sess.SetDestination("B")
	_, _ = s.FindDrivers(sess)
	if d, _ := sess.Selected(); d.Name != "John Sithole" {
		t.Fatalf("expected fastest driver, got %+v", d)
	}
}

func TestSMSCommandThroughState(t *testing.T) {
	f := newFixture(t)
	got := f.state.SMSCommand(sms.TextDraft{Destination: "Menlyn", Time: models.TimeNow, Passengers: 1})
	if got != booking.Guidance {
		t.Fatalf("expected guidance, got %q", got)
	}
}

func TestHomeAndDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.state.Home(false)
	if h.Welcome != "Welcome" || len(h.Recent) != HomeRecent || len(h.Channels) != 3 || h.Online {
		t.Fatalf("unexpected home %+v", h)
	}
	_, _ = f.state.Login(ctx, "Lerato", "071")
	if h := f.state.Home(true); h.Welcome != "Welcome, Lerato" || !h.Online {
		t.Fatalf("unexpected home %+v", h)
	}

	_, _ = f.state.RegisterDriver(ctx, models.NewRegistrationDraft("Jane", "071", "CA 123", true))
	dash := f.state.Dashboard()
	if len(dash) != 4 || dash[0].Car != NoCar || dash[3].Car != "CA 123" {
		t.Fatalf("unexpected dashboard %+v", dash)
	}
}
