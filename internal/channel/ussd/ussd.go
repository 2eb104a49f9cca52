// Package ussd models the fixed menu a rider walks through after dialling
// the service code.
package ussd

import (
	"fmt"
	"strings"
)

const DialString = "*120*8294#"

// Keypad is the accepted input alphabet in on-screen order.
const Keypad = "123456789*0#"

type Step struct {
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Input   bool     `json:"input,omitempty"`
	Final   bool     `json:"final,omitempty"`
}

var steps = []Step{
	{Text: "Welcome to TaxiLink\n1. Book a ride\n2. Check booking\n3. Cancel ride\n4. Help", Options: []string{"1", "2", "3", "4"}},
	{Text: "Enter pickup location:", Input: true},
	{Text: "Enter destination:", Input: true},
	{Text: "When do you need the ride?\n1. Now\n2. In 30 min\n3. In 1 hour", Options: []string{"1", "2", "3"}},
	{Text: "How many passengers?\n1. 1 person\n2. 2-3 people\n3. 4+ people", Options: []string{"1", "2", "3"}},
	{Text: "Booking confirmed!\nDriver: Thabo M.\nETA: 5 minutes\nPrice: R15\n\nThank you for using TaxiLink!", Final: true},
}

// Steps returns a copy of the menu.
func Steps() []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		s.Options = append([]string(nil), s.Options...)
		out[i] = s
	}
	return out
}

func ValidKey(k rune) bool { return strings.ContainsRune(Keypad, k) }

// MenuState is the position in the menu. The zero value is the first step.
type MenuState struct {
	index int
}

func (m *MenuState) Index() int  { return m.index }
func (m *MenuState) Len() int    { return len(steps) }
func (m *MenuState) Final() bool { return m.index == len(steps)-1 }

func (m *MenuState) Current() Step { return Steps()[m.index] }

// Header is the "Step i/N" banner shown above the menu text.
func (m *MenuState) Header() string { return fmt.Sprintf("Step %d/%d", m.index+1, len(steps)) }

// Press advances one step for any keypad key. Keys outside the alphabet are
// ignored, and so is any key on the final step. The key's value is not
// interpreted. It reports whether the step changed.
func (m *MenuState) Press(k rune) bool {
	if !ValidKey(k) || m.Final() {
		return false
	}
	m.index++
	return true
}
