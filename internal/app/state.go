// Package app is the explicit application state shared by every booking
// channel. All mutations of drivers, history and the rider identity go
// through its named operations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/example/taxilink/internal/booking"
	"github.com/example/taxilink/internal/channel/sms"
	"github.com/example/taxilink/internal/dispatch"
	"github.com/example/taxilink/internal/events"
	"github.com/example/taxilink/internal/geo"
	"github.com/example/taxilink/internal/ledger"
	"github.com/example/taxilink/internal/logging"
	"github.com/example/taxilink/internal/matcher"
	"github.com/example/taxilink/internal/models"
	"github.com/example/taxilink/internal/observability"
	"github.com/example/taxilink/internal/registry"
	"github.com/example/taxilink/internal/storage"
)

var ErrNameRequired = errors.New("name is required")

// Deps are the collaborators State is built from. Only Store is required.
type Deps struct {
	Store     storage.Store
	Strategy  matcher.Strategy
	Notifier  dispatch.Notifier
	Publisher events.Publisher
	Ranks     geo.Ranks
	Log       *slog.Logger
}

type State struct {
	mu sync.Mutex

	store    storage.Store
	drivers  *registry.Registry
	history  *ledger.Ledger
	user     *models.User
	strategy matcher.Strategy
	notifier dispatch.Notifier
	events   events.Publisher
	ranks    geo.Ranks
	log      *slog.Logger
}

// Load restores drivers, history and the logged-in rider from the store.
// Missing or corrupt values fall back to the built-in data set.
func Load(ctx context.Context, d Deps) *State {
	log := logging.OrDiscard(d.Log)
	s := &State{
		store:    d.Store,
		drivers:  registry.Load(ctx, d.Store, log.With("component", "registry")),
		history:  ledger.Load(ctx, d.Store, log.With("component", "ledger")),
		strategy: d.Strategy,
		notifier: d.Notifier,
		events:   d.Publisher,
		ranks:    d.Ranks,
		log:      log,
	}
	if s.strategy == nil {
		s.strategy = matcher.First{}
	}
	if s.notifier == nil {
		s.notifier = dispatch.LogNotifier{Log: log}
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.ranks == nil {
		s.ranks = geo.NewIndex(geo.DefaultRanks()...)
	}
	if u := storage.LoadOr[*models.User](ctx, d.Store, storage.KeyUser, nil, log); u != nil && u.Name != "" {
		s.user = u
	}
	return s
}

func (s *State) Registry() *registry.Registry { return s.drivers }
func (s *State) Ledger() *ledger.Ledger       { return s.history }

// Login records the rider and persists the identity.
func (s *State) Login(ctx context.Context, name, phone string) (models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.User{}, ErrNameRequired
	}
	u := models.User{Name: name, Phone: strings.TrimSpace(phone)}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	if err := storage.SaveJSON(ctx, s.store, storage.KeyUser, u); err != nil {
		s.log.Error("persist user failed", "error", err)
		return u, err
	}
	s.log.Info("rider logged in")
	return u, nil
}

// Guest continues without an identity. The placeholder is not persisted, so
// a previously stored rider is restored on the next start.
func (s *State) Guest() models.User {
	u := models.User{Name: models.GuestName}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	return u
}

// CurrentUser returns a copy of the rider, or nil before login.
func (s *State) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *State) RegisterDriver(ctx context.Context, draft models.DriverDraft) (models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.drivers.Register(ctx, draft)
	s.publish(ctx, events.DriverRegistered(d))
	return d, err
}

func (s *State) SetDriverAvailable(ctx context.Context, id int64, available bool) (models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.drivers.SetAvailable(ctx, id, available)
	if errors.Is(err, registry.ErrDriverNotFound) {
		return d, err
	}
	s.publish(ctx, events.DriverAvailabilityChanged(d))
	return d, err
}

// NewOnlineSession starts a fresh session in Collecting. Sessions are never
// persisted; dropping the value abandons it.
func (s *State) NewOnlineSession() *booking.Session {
	return booking.New(s.strategy)
}

// FindDrivers offers the available drivers to the session.
func (s *State) FindDrivers(sess *booking.Session) ([]models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.FindDrivers(s.drivers.ListAvailable())
}

// DestinationFromTap sets the session's destination from a map tap.
func (s *State) DestinationFromTap(sess *booking.Session, tap geo.Position) (string, error) {
	if err := tap.Validate(); err != nil {
		return "", err
	}
	label := geo.Label(s.ranks, tap)
	return label, sess.SetDestination(label)
}

// NearbyRanks lists taxi ranks nearest to pos first.
func (s *State) NearbyRanks(pos geo.Position, limit int) []geo.RankDistance {
	return s.ranks.Nearby(pos, limit)
}

// ConfirmOnline commits the session into the ledger and notifies the
// assigned driver. A refused confirm leaves the ledger unchanged.
func (s *State) ConfirmOnline(ctx context.Context, sess *booking.Session) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	driver, _ := sess.Selected()
	draft, err := sess.Confirm(s.user)
	if err != nil {
		return models.Booking{}, err
	}
	b, err := s.history.Record(ctx, draft)
	if b.ID == 0 {
		return models.Booking{}, fmt.Errorf("record booking: %w", err)
	}
	if nerr := s.notifier.Notify(dispatch.Assignment{Type: dispatch.TypeAssigned, DriverID: driver.ID, Booking: b}); nerr != nil {
		s.log.Warn("driver notification failed", "driver_id", driver.ID, "booking_id", b.ID, "error", nerr)
	}
	s.publish(ctx, events.BookingCommitted(b))
	return b, err
}

func (s *State) SetBookingStatus(ctx context.Context, id int64, status models.Status) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.history.SetStatus(ctx, id, status)
	if b.ID == 0 {
		return b, err
	}
	s.publish(ctx, events.BookingStatusChanged(b))
	return b, err
}

func (s *State) Recent(n int) []models.Booking { return s.history.Recent(n) }

func (s *State) History() []models.Booking { return s.history.All() }

func (s *State) Drivers() []models.Driver { return s.drivers.All() }

func (s *State) AvailableDrivers() []models.Driver { return s.drivers.ListAvailable() }

// SMSCommand renders the text command for d and counts the outcome.
func (s *State) SMSCommand(d sms.TextDraft) string {
	cmd := sms.Command(d)
	result := "command"
	if !d.Ready() {
		result = "guidance"
	}
	observability.SMSCommands.WithLabelValues(result).Inc()
	return cmd
}

func (s *State) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("publish event failed", "type", e.Type, "error", err)
	}
}
