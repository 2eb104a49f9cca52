package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a committed booking.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Method is the channel a booking was committed through.
type Method string

const (
	MethodOnline Method = "Online"
	MethodSMS    Method = "SMS"
	MethodUSSD   Method = "USSD"
)

func (m Method) Valid() bool {
	switch m {
	case MethodOnline, MethodSMS, MethodUSSD:
		return true
	}
	return false
}

// TimeWindow is when the rider wants to be picked up.
type TimeWindow string

const (
	TimeNow     TimeWindow = "now"
	Time30Min   TimeWindow = "30min"
	TimeOneHour TimeWindow = "1hour"
)

// TimeWindows lists the selectable windows in display order.
var TimeWindows = []TimeWindow{TimeNow, Time30Min, TimeOneHour}

func ParseTimeWindow(s string) (TimeWindow, error) {
	t := TimeWindow(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown time window %q", s)
	}
	return t, nil
}

func (t TimeWindow) Valid() bool {
	switch t {
	case TimeNow, Time30Min, TimeOneHour:
		return true
	}
	return false
}

// Label is the human wording used in selection lists.
func (t TimeWindow) Label() string {
	switch t {
	case Time30Min:
		return "In 30 min"
	case TimeOneHour:
		return "In 1 hour"
	default:
		return "Now"
	}
}

type Driver struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Rating    float64 `json:"rating"` // 0..5
	Phone     string  `json:"phone"`
	Distance  string  `json:"distance"`
	ETA       string  `json:"eta"`
	Price     string  `json:"price"`
	Car       string  `json:"car,omitempty"`
	Available bool    `json:"available"`
}

// UnmarshalJSON treats a missing available field as true. Driver lists
// saved before availability existed carry no such field.
func (d *Driver) UnmarshalJSON(data []byte) error {
	type plain Driver
	aux := struct {
		*plain
		Available *bool `json:"available"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Available = aux.Available == nil || *aux.Available
	return nil
}

// DriverDraft is the registration input. Available nil means true.
type DriverDraft struct {
	Name      string  `json:"name"`
	Phone     string  `json:"phone"`
	Rating    float64 `json:"rating"`
	Distance  string  `json:"distance"`
	ETA       string  `json:"eta"`
	Price     string  `json:"price"`
	Car       string  `json:"car,omitempty"`
	Available *bool   `json:"available,omitempty"`
}

// NewRegistrationDraft fills the placeholder figures a self-registered
// driver starts with.
func NewRegistrationDraft(name, phone, car string, available bool) DriverDraft {
	return DriverDraft{
		Name:      name,
		Phone:     phone,
		Car:       car,
		Rating:    5,
		Distance:  "0 km",
		ETA:       "0 min",
		Price:     "R0",
		Available: &available,
	}
}

type Booking struct {
	ID     int64  `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Status Status `json:"status"`
	Method Method `json:"method"`
	Price  string `json:"price"`
	Driver string `json:"driver"`
	User   string `json:"user,omitempty"`
}

// GuestName is the placeholder identity used when the rider skips login.
const GuestName = "Guest"

type User struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (u *User) IsGuest() bool { return u == nil || (u.Name == GuestName && u.Phone == "") }

// RiderName is the name recorded on a booking; empty for guests.
func (u *User) RiderName() string {
	if u.IsGuest() {
		return ""
	}
	return u.Name
}
