package dispatch

import (
	"errors"
	"testing"

	"github.com/example/taxilink/internal/models"
)

type fakeConn struct {
	sent   []interface{}
	err    error
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeConn) Close() error { f.closed = true; return nil }

func assignment(driverID int64) Assignment {
	return Assignment{Type: TypeAssigned, DriverID: driverID, Booking: models.Booking{ID: 5, From: "A", To: "B"}}
}

func TestRegistryDeliversToConnectedDriver(t *testing.T) {
	r := NewWSRegistry()
	c := &fakeConn{}
	r.Add(7, c)
	if err := r.Notify(assignment(7)); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(c.sent))
	}
	if err := r.Notify(assignment(8)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestRegistryReplacesAndDropsBrokenSessions(t *testing.T) {
	r := NewWSRegistry()
	first := &fakeConn{}
	r.Add(7, first)
	broken := &fakeConn{err: errors.New("eof")}
	r.Add(7, broken)
	if !first.closed {
		t.Fatal("replaced connection not closed")
	}
	if err := r.Notify(assignment(7)); err == nil {
		t.Fatal("expected write error")
	}
	if r.Connected(7) {
		t.Fatal("broken session kept")
	}
}

type failing struct{}

func (failing) Notify(Assignment) error { return errors.New("offline") }

func TestFallback(t *testing.T) {
	c := &fakeConn{}
	r := NewWSRegistry()
	r.Add(1, c)
	f := Fallback{Primary: failing{}, Secondary: r}
	if err := f.Notify(assignment(1)); err != nil || len(c.sent) != 1 {
		t.Fatalf("fallback not used: %v", err)
	}
	if err := (Fallback{Primary: r, Secondary: LogNotifier{}}).Notify(assignment(2)); err != nil {
		t.Fatalf("secondary should absorb missing session: %v", err)
	}
}
