package dispatch

import (
	"log/slog"

	"github.com/example/taxilink/internal/models"
)

// Assignment tells a driver a booking was committed to them.
type Assignment struct {
	Type     string         `json:"type"`
	DriverID int64          `json:"driver_id"`
	Booking  models.Booking `json:"booking"`
}

const TypeAssigned = "booking_assigned"

// Notifier delivers assignments to drivers. Delivery is best-effort; a
// failed notification never undoes a commit.
type Notifier interface {
	Notify(a Assignment) error
}

// LogNotifier only logs. Used when no driver app is connected.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(a Assignment) error {
	if n.Log != nil {
		n.Log.Info("dispatch", "driver_id", a.DriverID, "booking_id", a.Booking.ID, "from", a.Booking.From, "to", a.Booking.To)
	}
	return nil
}

// Fallback tries Primary and falls back to Secondary on error.
type Fallback struct {
	Primary   Notifier
	Secondary Notifier
}

func (f Fallback) Notify(a Assignment) error {
	if err := f.Primary.Notify(a); err != nil {
		return f.Secondary.Notify(a)
	}
	return nil
}
