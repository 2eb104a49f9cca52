package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/example/taxilink/internal/app"
	"github.com/example/taxilink/internal/booking"
	"github.com/example/taxilink/internal/channel/sms"
	"github.com/example/taxilink/internal/channel/ussd"
	"github.com/example/taxilink/internal/geo"
	"github.com/example/taxilink/internal/models"
)

var errQuit = errors.New("quit")

// cli drives the booking screens over a line-oriented terminal.
type cli struct {
	state  *app.State
	in     *bufio.Scanner
	out    io.Writer
	splash time.Duration
	online bool
}

func newCLI(state *app.State, in io.Reader, out io.Writer, splash time.Duration) *cli {
	return &cli{state: state, in: bufio.NewScanner(in), out: out, splash: splash, online: true}
}

func (c *cli) printf(format string, args ...any) { fmt.Fprintf(c.out, format, args...) }

// ask prints label and reads one trimmed line. End of input quits.
func (c *cli) ask(label string) (string, error) {
	c.printf("%s", label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *cli) run(ctx context.Context) error {
	if err := c.showSplash(ctx); err != nil {
		return err
	}
	if c.state.CurrentUser() == nil {
		if err := c.authScreen(ctx); err != nil {
			return quitIsNil(err)
		}
	}
	return quitIsNil(c.homeLoop(ctx))
}

func quitIsNil(err error) error {
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func (c *cli) showSplash(ctx context.Context) error {
	c.printf("TaxiLink SA\nConnecting South Africa, one ride at a time\n\n")
	if c.splash <= 0 {
		return nil
	}
	t := time.NewTimer(c.splash)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *cli) authScreen(ctx context.Context) error {
	for {
		choice, err := c.ask("1. Log in\n2. Continue as guest\n3. Driver portal\n> ")
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			name, err := c.ask("Name: ")
			if err != nil {
				return err
			}
			phone, err := c.ask("Phone: ")
			if err != nil {
				return err
			}
			if _, err := c.state.Login(ctx, name, phone); err != nil {
				c.printf("%v\n", err)
				if errors.Is(err, app.ErrNameRequired) {
					continue
				}
			}
			return nil
		case "2":
			c.state.Guest()
			return nil
		case "3":
			if err := c.driverPortal(ctx); err != nil {
				return err
			}
		default:
			c.printf("Choose 1, 2 or 3\n")
		}
	}
}

func (c *cli) homeLoop(ctx context.Context) error {
	for {
		h := c.state.Home(c.online)
		c.printf("\n%s\n", h.Welcome)
		if !h.Online {
			c.printf("Offline: SMS and USSD still work\n")
		}
		for i, ch := range h.Channels {
			c.printf("%d. %s [%s] %s\n", i+1, ch.Title, ch.Badge, ch.Description)
		}
		c.printf("4. Booking history\n5. Driver portal\n6. Nearby taxi ranks\n0. Quit\n")
		for _, b := range h.Recent {
			c.printf("  recent: %s -> %s (%s, %s)\n", b.From, b.To, b.Status, b.Method)
		}
		choice, err := c.ask("> ")
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			err = c.onlineFlow(ctx)
		case "2":
			err = c.smsFlow()
		case "3":
			err = c.ussdFlow()
		case "4":
			err = c.historyScreen(ctx)
		case "5":
			err = c.driverPortal(ctx)
		case "6":
			err = c.ranksScreen()
		case "0", "q":
			return errQuit
		default:
			c.printf("Unknown option\n")
		}
		if err != nil {
			return err
		}
	}
}

// askDefault reads one line, answering def on a blank line.
func (c *cli) askDefault(label, def string) (string, error) {
	if def != "" {
		label += " [" + def + "]"
	}
	v, err := c.ask(label + ": ")
	if err != nil {
		return "", err
	}
	if v == "" {
		return def, nil
	}
	return v, nil
}

func (c *cli) askTime(def models.TimeWindow) (models.TimeWindow, error) {
	choice := 1
	var b strings.Builder
	for i, t := range models.TimeWindows {
		fmt.Fprintf(&b, "%d. %s  ", i+1, t.Label())
		if t == def {
			choice = i + 1
		}
	}
	for {
		v, err := c.ask("When? " + b.String() + "[" + strconv.Itoa(choice) + "]: ")
		if err != nil {
			return "", err
		}
		if v == "" {
			return models.TimeWindows[choice-1], nil
		}
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= len(models.TimeWindows) {
			return models.TimeWindows[n-1], nil
		}
		c.printf("Choose 1-%d\n", len(models.TimeWindows))
	}
}

func (c *cli) askPassengers(def int) (int, error) {
	if def < 1 {
		def = 1
	}
	for {
		v, err := c.ask("Passengers [" + strconv.Itoa(def) + "]: ")
		if err != nil {
			return 0, err
		}
		if v == "" {
			return def, nil
		}
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			return n, nil
		}
		c.printf("Enter a number of at least 1\n")
	}
}

// onlineFlow loops through the Collecting screen until a booking is
// committed or abandoned. Coming back from driver selection offers the
// fields already entered as defaults.
func (c *cli) onlineFlow(ctx context.Context) error {
	sess := c.state.NewOnlineSession()
	for {
		cur := sess.Draft()
		pickup, err := c.askDefault("Pickup location", cur.Pickup)
		if err != nil {
			return err
		}
		dest, err := c.askDefault("Destination (or tap lat,lon)", cur.Destination)
		if err != nil {
			return err
		}
		when, err := c.askTime(cur.Time)
		if err != nil {
			return err
		}
		n, err := c.askPassengers(cur.Passengers)
		if err != nil {
			return err
		}
		rest, tapped := strings.CutPrefix(dest, "tap ")
		if tapped {
			dest = cur.Destination
		}
		draft, _ := booking.NewOnlineDraft(pickup, dest, when, n)
		if err := sess.Apply(draft); err != nil {
			return err
		}
		if tapped {
			tap, perr := geo.ParsePosition(rest)
			if perr != nil {
				c.printf("%v\n", perr)
			} else if label, terr := c.state.DestinationFromTap(sess, tap); terr != nil {
				c.printf("%v\n", terr)
			} else {
				c.printf("Destination: %s\n", label)
			}
		}

		if _, err := c.state.FindDrivers(sess); err != nil {
			c.printf("%v\n", err)
			if again, aerr := c.ask("Try again? [y/N]: "); aerr != nil || !strings.EqualFold(again, "y") {
				return aerr
			}
			continue
		}
		done, err := c.selectDriver(ctx, sess)
		if err != nil || done {
			return err
		}
	}
}

// selectDriver runs the Selecting screen. It reports true once the session
// is committed or abandoned, false after Back.
func (c *cli) selectDriver(ctx context.Context, sess *booking.Session) (bool, error) {
	for {
		sel, _ := sess.Selected()
		for i, d := range sess.Candidates() {
			mark := " "
			if d.ID == sel.ID {
				mark = "*"
			}
			c.printf("%s %d. %s  %.1f  %s away  ETA %s  %s\n", mark, i+1, d.Name, d.Rating, d.Distance, d.ETA, d.Price)
		}
		v, err := c.ask("Number to select, c to confirm, b to go back, x to cancel: ")
		if err != nil {
			return true, err
		}
		switch strings.ToLower(v) {
		case "c":
			b, err := c.state.ConfirmOnline(ctx, sess)
			if b.ID == 0 {
				c.printf("%v\n", err)
				continue
			}
			if err != nil {
				c.printf("Booked, but saving failed: %v\n", err)
			}
			c.printf("Booking confirmed! %s is on the way. Price %s\n", b.Driver, b.Price)
			return true, nil
		case "b":
			return false, sess.Back()
		case "x":
			return true, nil
		}
		idx, err := strconv.Atoi(v)
		cands := sess.Candidates()
		if err != nil || idx < 1 || idx > len(cands) {
			c.printf("Unknown option\n")
			continue
		}
		if _, err := sess.Select(cands[idx-1].ID); err != nil {
			c.printf("%v\n", err)
		}
	}
}

func (c *cli) smsFlow() error {
	c.printf("Send a free SMS to %s\n", sms.ShortCode)
	pickup, err := c.ask("Pickup location: ")
	if err != nil {
		return err
	}
	dest, err := c.ask("Destination: ")
	if err != nil {
		return err
	}
	when, err := c.askTime(models.TimeNow)
	if err != nil {
		return err
	}
	n, err := c.askPassengers(1)
	if err != nil {
		return err
	}
	d, err := sms.NewTextDraft(pickup, dest, when, n)
	if err != nil {
		return err
	}
	c.printf("%s\n", c.state.SMSCommand(d))
	return nil
}

func (c *cli) ussdFlow() error {
	c.printf("Dialling %s\n", ussd.DialString)
	var m ussd.MenuState
	for {
		step := m.Current()
		c.printf("%s\n%s\n", m.Header(), step.Text)
		if m.Final() {
			return nil
		}
		v, err := c.ask("Keys (q to hang up): ")
		if err != nil {
			return err
		}
		if v == "q" {
			return nil
		}
		for _, k := range v {
			m.Press(k)
		}
	}
}

func (c *cli) historyScreen(ctx context.Context) error {
	for {
		for _, b := range c.state.History() {
			c.printf("#%d %s -> %s  %s  %s  %s  %s\n", b.ID, b.From, b.To, b.Status, b.Method, b.Price, b.Driver)
		}
		v, err := c.ask("Enter \"<id> completed|cancelled\" to update, blank to return: ")
		if err != nil || v == "" {
			return err
		}
		fields := strings.Fields(v)
		if len(fields) != 2 {
			c.printf("Unknown option\n")
			continue
		}
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			c.printf("Unknown booking\n")
			continue
		}
		if _, err := c.state.SetBookingStatus(ctx, id, models.Status(strings.ToLower(fields[1]))); err != nil {
			c.printf("%v\n", err)
		}
	}
}

func (c *cli) driverPortal(ctx context.Context) error {
	for {
		c.printf("\nDriver portal\n")
		for _, e := range c.state.Dashboard() {
			c.printf("  #%d %s  %s\n", e.ID, e.Name, e.Car)
		}
		v, err := c.ask("1. Register\n2. Go offline/online\n0. Back\n> ")
		if err != nil {
			return err
		}
		switch v {
		case "1":
			if err := c.registerDriver(ctx); err != nil {
				return err
			}
		case "2":
			if err := c.toggleDriver(ctx); err != nil {
				return err
			}
		case "0", "":
			return nil
		default:
			c.printf("Unknown option\n")
		}
	}
}

func (c *cli) registerDriver(ctx context.Context) error {
	name, err := c.ask("Full name: ")
	if err != nil {
		return err
	}
	phone, err := c.ask("Phone: ")
	if err != nil {
		return err
	}
	car, err := c.ask("Car registration (optional): ")
	if err != nil {
		return err
	}
	if name == "" || phone == "" {
		c.printf("Name and phone are required\n")
		return nil
	}
	d, err := c.state.RegisterDriver(ctx, models.NewRegistrationDraft(name, phone, car, true))
	if err != nil {
		c.printf("Registered, but saving failed: %v\n", err)
	}
	c.printf("Welcome aboard, %s (#%d)\n", d.Name, d.ID)
	return nil
}

func (c *cli) toggleDriver(ctx context.Context) error {
	v, err := c.ask("Driver id: ")
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		c.printf("Unknown driver\n")
		return nil
	}
	d, ok := c.state.Registry().Get(id)
	if !ok {
		c.printf("Unknown driver\n")
		return nil
	}
	if _, err := c.state.SetDriverAvailable(ctx, id, !d.Available); err != nil {
		c.printf("%v\n", err)
	}
	return nil
}

func (c *cli) ranksScreen() error {
	v, err := c.ask("Your position lat,lon [" + geo.DefaultPosition.String() + "]: ")
	if err != nil {
		return err
	}
	pos := geo.DefaultPosition
	if v != "" {
		p, err := geo.ParsePosition(v)
		if err != nil {
			c.printf("%v\n", err)
			return nil
		}
		pos = p
	}
	for _, r := range c.state.NearbyRanks(pos, 0) {
		c.printf("%s  %.1f km\n", r.Name, r.Meters/1000)
	}
	return nil
}
