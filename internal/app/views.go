package app

import (
	"github.com/example/taxilink/internal/channel/sms"
	"github.com/example/taxilink/internal/channel/ussd"
	"github.com/example/taxilink/internal/models"
)

// HomeRecent is how many bookings the home view previews.
const HomeRecent = 2

type Channel struct {
	Method      models.Method `json:"method"`
	Title       string        `json:"title"`
	Badge       string        `json:"badge"`
	Description string        `json:"description"`
}

// Channels are the three booking entry points in display order.
var Channels = []Channel{
	{Method: models.MethodOnline, Title: "Online Booking", Badge: "Available", Description: "Full-featured booking with driver selection."},
	{Method: models.MethodSMS, Title: "SMS Booking", Badge: "Free SMS", Description: "Book via text message - perfect when data is expensive."},
	{Method: models.MethodUSSD, Title: "USSD Menu", Badge: "Completely Free", Description: "Dial " + ussd.DialString + " from any phone."},
}

type HomeView struct {
	Welcome   string           `json:"welcome"`
	Online    bool             `json:"online"`
	Channels  []Channel        `json:"channels"`
	Recent    []models.Booking `json:"recent"`
	ShortCode string           `json:"short_code"`
	Dial      string           `json:"dial"`
}

// Home assembles the landing screen. online is the device connectivity
// flag; it is displayed only.
func (s *State) Home(online bool) HomeView {
	welcome := "Welcome"
	if u := s.CurrentUser(); u != nil {
		welcome += ", " + u.Name
	}
	return HomeView{
		Welcome:   welcome,
		Online:    online,
		Channels:  Channels,
		Recent:    s.history.Recent(HomeRecent),
		ShortCode: sms.ShortCode,
		Dial:      ussd.DialString,
	}
}

type DashboardEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Car  string `json:"car"`
}

// NoCar is shown for drivers registered without a car.
const NoCar = "—"

// Dashboard lists available drivers for the driver portal.
func (s *State) Dashboard() []DashboardEntry {
	avail := s.drivers.ListAvailable()
	out := make([]DashboardEntry, 0, len(avail))
	for _, d := range avail {
		car := d.Car
		if car == "" {
			car = NoCar
		}
		out = append(out, DashboardEntry{ID: d.ID, Name: d.Name, Car: car})
	}
	return out
}
