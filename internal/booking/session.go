// Package booking implements the online booking session: the transient,
// per-screen state a rider fills in before a driver is confirmed.
package booking

import (
	"errors"
	"strings"

	"github.com/example/taxilink/internal/matcher"
	"github.com/example/taxilink/internal/models"
)

// Guidance is shown whenever a commit-relevant field is still empty.
const Guidance = "Please fill in pickup and destination"

// Unknown stands in for a location left empty at commit.
const Unknown = "Unknown"

var (
	ErrMissingLocations = errors.New(Guidance)
	ErrNoDrivers        = errors.New("no drivers available")
	ErrNoDriverSelected = errors.New("select a driver first")
	ErrNotCandidate     = errors.New("driver is not among the offered candidates")
	ErrNotEditable      = errors.New("booking details can only change before searching for drivers")
	ErrNotSelecting     = errors.New("no driver search in progress")
	ErrCommitted        = errors.New("booking already confirmed")
	ErrInvalidDraft     = errors.New("invalid booking details")
)

type State int

const (
	Collecting State = iota
	Selecting
	Committed
)

func (s State) String() string {
	switch s {
	case Selecting:
		return "selecting"
	case Committed:
		return "committed"
	default:
		return "collecting"
	}
}

// OnlineDraft is the rider-editable part of a session.
type OnlineDraft struct {
	Pickup      string            `json:"pickup"`
	Destination string            `json:"destination"`
	Time        models.TimeWindow `json:"time"`
	Passengers  int               `json:"passengers"`
}

// NewOnlineDraft validates the fields. Empty locations are allowed here;
// they are checked when searching for drivers.
func NewOnlineDraft(pickup, destination string, when models.TimeWindow, passengers int) (OnlineDraft, error) {
	d := OnlineDraft{Pickup: pickup, Destination: destination, Time: when, Passengers: passengers}
	return d, d.Validate()
}

func (d OnlineDraft) Validate() error {
	if !d.Time.Valid() || d.Passengers < 1 {
		return ErrInvalidDraft
	}
	return nil
}

// Ready reports whether both locations are filled in.
func (d OnlineDraft) Ready() bool {
	return strings.TrimSpace(d.Pickup) != "" && strings.TrimSpace(d.Destination) != ""
}

// Session walks Collecting -> Selecting -> Committed. It is not safe for
// concurrent use; the owner serializes access.
type Session struct {
	draft      OnlineDraft
	state      State
	candidates []models.Driver
	selected   *models.Driver
	strategy   matcher.Strategy
}

// New starts a session in Collecting with the default fields (now, one
// passenger). A nil strategy means matcher.First.
func New(strategy matcher.Strategy) *Session {
	if strategy == nil {
		strategy = matcher.First{}
	}
	return &Session{
		draft:    OnlineDraft{Time: models.TimeNow, Passengers: 1},
		strategy: strategy,
	}
}

func (s *Session) State() State       { return s.state }
func (s *Session) Draft() OnlineDraft { return s.draft }
func (s *Session) Strategy() string   { return s.strategy.Name() }

// Candidates returns the drivers offered by the last search.
func (s *Session) Candidates() []models.Driver {
	return append([]models.Driver(nil), s.candidates...)
}

// Selected returns a copy of the chosen driver.
func (s *Session) Selected() (models.Driver, bool) {
	if s.selected == nil {
		return models.Driver{}, false
	}
	return *s.selected, true
}

func (s *Session) editable() error {
	switch s.state {
	case Collecting:
		return nil
	case Committed:
		return ErrCommitted
	default:
		return ErrNotEditable
	}
}

func (s *Session) SetPickup(v string) error {
	if err := s.editable(); err != nil {
		return err
	}
	s.draft.Pickup = v
	return nil
}

func (s *Session) SetDestination(v string) error {
	if err := s.editable(); err != nil {
		return err
	}
	s.draft.Destination = v
	return nil
}

func (s *Session) SetTime(t models.TimeWindow) error {
	if err := s.editable(); err != nil {
		return err
	}
	if !t.Valid() {
		return ErrInvalidDraft
	}
	s.draft.Time = t
	return nil
}

func (s *Session) SetPassengers(n int) error {
	if err := s.editable(); err != nil {
		return err
	}
	if n < 1 {
		return ErrInvalidDraft
	}
	s.draft.Passengers = n
	return nil
}

// Apply replaces every editable field at once.
func (s *Session) Apply(d OnlineDraft) error {
	if err := s.editable(); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	s.draft = d
	return nil
}

// FindDrivers moves to Selecting, offering candidates and preselecting the
// strategy's pick. It refuses while pickup or destination is empty and
// leaves the session untouched on failure.
func (s *Session) FindDrivers(candidates []models.Driver) ([]models.Driver, error) {
	if err := s.editable(); err != nil {
		return nil, err
	}
	if !s.draft.Ready() {
		return nil, ErrMissingLocations
	}
	pick, ok := s.strategy.Pick(candidates)
	if !ok {
		return nil, ErrNoDrivers
	}
	s.candidates = append([]models.Driver(nil), candidates...)
	s.selected = &pick
	s.state = Selecting
	return s.Candidates(), nil
}

// Select re-picks among the offered candidates.
func (s *Session) Select(driverID int64) (models.Driver, error) {
	if s.state == Committed {
		return models.Driver{}, ErrCommitted
	}
	if s.state != Selecting {
		return models.Driver{}, ErrNotSelecting
	}
	for _, d := range s.candidates {
		if d.ID == driverID {
			s.selected = &d
			return d, nil
		}
	}
	return models.Driver{}, ErrNotCandidate
}

// Back returns to Collecting, dropping the selection but keeping the fields.
func (s *Session) Back() error {
	if s.state == Committed {
		return ErrCommitted
	}
	if s.state != Selecting {
		return ErrNotSelecting
	}
	s.selected = nil
	s.candidates = nil
	s.state = Collecting
	return nil
}

// Confirm freezes the selection into a booking and ends the session. The
// booking has no id yet; the ledger assigns one when it is recorded.
func (s *Session) Confirm(user *models.User) (models.Booking, error) {
	if s.state == Committed {
		return models.Booking{}, ErrCommitted
	}
	if s.selected == nil {
		return models.Booking{}, ErrNoDriverSelected
	}
	b := models.Booking{
		From:   orUnknown(s.draft.Pickup),
		To:     orUnknown(s.draft.Destination),
		Status: models.StatusActive,
		Method: models.MethodOnline,
		Price:  s.selected.Price,
		Driver: s.selected.Name,
		User:   user.RiderName(),
	}
	s.state = Committed
	return b, nil
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return Unknown
	}
	return v
}
