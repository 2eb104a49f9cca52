package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/taxilink/internal/app"
	"github.com/example/taxilink/internal/booking"
	"github.com/example/taxilink/internal/channel/sms"
	"github.com/example/taxilink/internal/channel/ussd"
	"github.com/example/taxilink/internal/dispatch"
	"github.com/example/taxilink/internal/geo"
	"github.com/example/taxilink/internal/ledger"
	"github.com/example/taxilink/internal/logging"
	"github.com/example/taxilink/internal/models"
	"github.com/example/taxilink/internal/observability"
	"github.com/example/taxilink/internal/registry"
)

type Options struct {
	WS          *dispatch.WSRegistry
	Logger      *slog.Logger
	MaxSessions int
	SessionTTL  time.Duration
}

type Server struct {
	state  *app.State
	ws     *dispatch.WSRegistry
	logger *slog.Logger
	mux    *mux.Router

	online *sessions[*booking.Session]
	menus  *sessions[*ussd.MenuState]
}

func NewServer(state *app.State, o Options) *Server {
	if o.WS == nil {
		o.WS = dispatch.NewWSRegistry()
	}
	s := &Server{
		state:  state,
		ws:     o.WS,
		logger: logging.OrDiscard(o.Logger),
		mux:    mux.NewRouter(),
		online: newSessions[*booking.Session](o.MaxSessions, o.SessionTTL),
		menus:  newSessions[*ussd.MenuState](o.MaxSessions, o.SessionTTL),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/guest", s.handleGuest).Methods(http.MethodPost)
	api.HandleFunc("/home", s.handleHome).Methods(http.MethodGet)

	api.HandleFunc("/drivers", s.handleRegisterDriver).Methods(http.MethodPost)
	api.HandleFunc("/drivers", s.handleListDrivers).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id:[0-9]+}/availability", s.handleSetAvailability).Methods(http.MethodPatch)
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)

	api.HandleFunc("/online/sessions", s.handleNewOnline).Methods(http.MethodPost)
	api.HandleFunc("/online/sessions/{id}", s.handleGetOnline).Methods(http.MethodGet)
	api.HandleFunc("/online/sessions/{id}", s.handleEditOnline).Methods(http.MethodPatch)
	api.HandleFunc("/online/sessions/{id}", s.handleDeleteOnline).Methods(http.MethodDelete)
	api.HandleFunc("/online/sessions/{id}/tap", s.handleTap).Methods(http.MethodPost)
	api.HandleFunc("/online/sessions/{id}/find", s.handleFind).Methods(http.MethodPost)
	api.HandleFunc("/online/sessions/{id}/select", s.handleSelect).Methods(http.MethodPost)
	api.HandleFunc("/online/sessions/{id}/back", s.handleBack).Methods(http.MethodPost)
	api.HandleFunc("/online/sessions/{id}/confirm", s.handleConfirm).Methods(http.MethodPost)

	api.HandleFunc("/sms/command", s.handleSMSCommand).Methods(http.MethodPost)

	api.HandleFunc("/ussd/sessions", s.handleNewMenu).Methods(http.MethodPost)
	api.HandleFunc("/ussd/sessions/{id}", s.handleDeleteMenu).Methods(http.MethodDelete)
	api.HandleFunc("/ussd/sessions/{id}/keys", s.handleKeys).Methods(http.MethodPost)

	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{id:[0-9]+}/status", s.handleSetStatus).Methods(http.MethodPatch)

	api.HandleFunc("/ranks", s.handleRanks).Methods(http.MethodGet)

	s.mux.HandleFunc("/ws/drivers/{id:[0-9]+}", s.handleWS).Methods(http.MethodGet)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type loginRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.read(w, r, &req) {
		return
	}
	u, err := s.state.Login(r.Context(), req.Name, req.Phone)
	if errors.Is(err, app.ErrNameRequired) {
		s.fail(w, r, err)
		return
	}
	s.warnIfUnsaved(r, err)
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Guest())
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	online := true
	if v := r.URL.Query().Get("online"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "online must be true or false")
			return
		}
		online = b
	}
	writeJSON(w, http.StatusOK, s.state.Home(online))
}

type registerRequest struct {
	Name      string   `json:"name" validate:"required"`
	Phone     string   `json:"phone" validate:"required"`
	Car       string   `json:"car"`
	Rating    *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Distance  string   `json:"distance"`
	ETA       string   `json:"eta"`
	Price     string   `json:"price"`
	Available *bool    `json:"available"`
}

// draft fills fields left out of the request with the self-registration
// placeholders.
func (in registerRequest) draft() models.DriverDraft {
	available := in.Available == nil || *in.Available
	d := models.NewRegistrationDraft(in.Name, in.Phone, in.Car, available)
	if in.Rating != nil {
		d.Rating = *in.Rating
	}
	if in.Distance != "" {
		d.Distance = in.Distance
	}
	if in.ETA != "" {
		d.ETA = in.ETA
	}
	if in.Price != "" {
		d.Price = in.Price
	}
	return d
}

func (s *Server) handleRegisterDriver(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.read(w, r, &req) {
		return
	}
	d, err := s.state.RegisterDriver(r.Context(), req.draft())
	s.warnIfUnsaved(r, err)
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("available"); v != "" {
		only, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "available must be true or false")
			return
		}
		if only {
			writeJSON(w, http.StatusOK, s.state.AvailableDrivers())
			return
		}
	}
	writeJSON(w, http.StatusOK, s.state.Drivers())
}

type availabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

func (s *Server) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req availabilityRequest
	if !s.read(w, r, &req) {
		return
	}
	d, err := s.state.SetDriverAvailable(r.Context(), id, *req.Available)
	if errors.Is(err, registry.ErrDriverNotFound) {
		s.fail(w, r, err)
		return
	}
	s.warnIfUnsaved(r, err)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Dashboard())
}

type onlineView struct {
	ID         string              `json:"id"`
	State      string              `json:"state"`
	Strategy   string              `json:"strategy"`
	Draft      booking.OnlineDraft `json:"draft"`
	Candidates []models.Driver     `json:"candidates,omitempty"`
	Selected   *models.Driver      `json:"selected,omitempty"`
}

func viewOnline(id string, sess *booking.Session) onlineView {
	v := onlineView{
		ID:         id,
		State:      sess.State().String(),
		Strategy:   sess.Strategy(),
		Draft:      sess.Draft(),
		Candidates: sess.Candidates(),
	}
	if d, ok := sess.Selected(); ok {
		v.Selected = &d
	}
	return v
}

func (s *Server) handleNewOnline(w http.ResponseWriter, r *http.Request) {
	sess := s.state.NewOnlineSession()
	id := s.online.add(sess)
	writeJSON(w, http.StatusCreated, viewOnline(id, sess))
}

// withOnline runs fn on the session named in the path and answers with the
// resulting view.
func (s *Server) withOnline(w http.ResponseWriter, r *http.Request, fn func(*booking.Session) error) {
	id := mux.Vars(r)["id"]
	var view onlineView
	err := s.online.with(id, func(sess *booking.Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		view = viewOnline(id, sess)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteOnline(w http.ResponseWriter, r *http.Request) {
	s.discard(w, r, s.online.remove)
}

// discard ends the session named in the path.
func (s *Server) discard(w http.ResponseWriter, r *http.Request, remove func(string) bool) {
	if !remove(mux.Vars(r)["id"]) {
		s.fail(w, r, ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetOnline(w http.ResponseWriter, r *http.Request) {
	s.withOnline(w, r, func(*booking.Session) error { return nil })
}

type editRequest struct {
	Pickup      *string `json:"pickup"`
	Destination *string `json:"destination"`
	Time        *string `json:"time" validate:"omitempty,oneof=now 30min 1hour"`
	Passengers  *int    `json:"passengers" validate:"omitempty,gte=1"`
}

func (s *Server) handleEditOnline(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !s.read(w, r, &req) {
		return
	}
	s.withOnline(w, r, func(sess *booking.Session) error {
		d := sess.Draft()
		if req.Pickup != nil {
			d.Pickup = *req.Pickup
		}
		if req.Destination != nil {
			d.Destination = *req.Destination
		}
		if req.Time != nil {
			t, err := models.ParseTimeWindow(*req.Time)
			if err != nil {
				return booking.ErrInvalidDraft
			}
			d.Time = t
		}
		if req.Passengers != nil {
			d.Passengers = *req.Passengers
		}
		return sess.Apply(d)
	})
}

func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	var tap geo.Position
	if !s.read(w, r, &tap) {
		return
	}
	s.withOnline(w, r, func(sess *booking.Session) error {
		_, err := s.state.DestinationFromTap(sess, tap)
		return err
	})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	s.withOnline(w, r, func(sess *booking.Session) error {
		_, err := s.state.FindDrivers(sess)
		return err
	})
}

type selectRequest struct {
	DriverID int64 `json:"driver_id" validate:"required"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !s.read(w, r, &req) {
		return
	}
	s.withOnline(w, r, func(sess *booking.Session) error {
		_, err := sess.Select(req.DriverID)
		return err
	})
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.withOnline(w, r, func(sess *booking.Session) error { return sess.Back() })
}

// handleConfirm commits the session. A committed session is discarded; a
// refused one stays open for correction.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var b models.Booking
	var unsaved error
	err := s.online.with(id, func(sess *booking.Session) error {
		var err error
		b, err = s.state.ConfirmOnline(r.Context(), sess)
		if b.ID == 0 {
			return err
		}
		unsaved = err
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.online.remove(id)
	s.warnIfUnsaved(r, unsaved)
	writeJSON(w, http.StatusCreated, b)
}

type smsRequest struct {
	Pickup      string `json:"pickup"`
	Destination string `json:"destination"`
	Time        string `json:"time" validate:"omitempty,oneof=now 30min 1hour"`
	Passengers  int    `json:"passengers" validate:"gte=0"`
}

type smsResponse struct {
	Command   string `json:"command"`
	Ready     bool   `json:"ready"`
	ShortCode string `json:"short_code"`
}

func (s *Server) handleSMSCommand(w http.ResponseWriter, r *http.Request) {
	var req smsRequest
	if !s.read(w, r, &req) {
		return
	}
	when := models.TimeNow
	if req.Time != "" {
		t, err := models.ParseTimeWindow(req.Time)
		if err != nil {
			s.fail(w, r, booking.ErrInvalidDraft)
			return
		}
		when = t
	}
	if req.Passengers == 0 {
		req.Passengers = 1
	}
	d, err := sms.NewTextDraft(req.Pickup, req.Destination, when, req.Passengers)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, smsResponse{Command: s.state.SMSCommand(d), Ready: d.Ready(), ShortCode: sms.ShortCode})
}

type menuView struct {
	ID       string   `json:"id"`
	Header   string   `json:"header"`
	Text     string   `json:"text"`
	Options  []string `json:"options,omitempty"`
	Input    bool     `json:"input"`
	Final    bool     `json:"final"`
	Accepted int      `json:"accepted"`
}

func viewMenu(id string, m *ussd.MenuState, accepted int) menuView {
	step := m.Current()
	return menuView{
		ID:       id,
		Header:   m.Header(),
		Text:     step.Text,
		Options:  step.Options,
		Input:    step.Input,
		Final:    m.Final(),
		Accepted: accepted,
	}
}

func (s *Server) handleNewMenu(w http.ResponseWriter, r *http.Request) {
	m := &ussd.MenuState{}
	id := s.menus.add(m)
	writeJSON(w, http.StatusCreated, viewMenu(id, m, 0))
}

type keysRequest struct {
	Keys string `json:"keys" validate:"required"`
}

func (s *Server) handleDeleteMenu(w http.ResponseWriter, r *http.Request) {
	s.discard(w, r, s.menus.remove)
}

// handleKeys presses each key in order. Keys off the keypad are ignored.
// The session ends once the final step is shown.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if !s.read(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	var view menuView
	err := s.menus.with(id, func(m *ussd.MenuState) error {
		accepted := 0
		for _, k := range req.Keys {
			if m.Press(k) {
				accepted++
			}
		}
		observability.USSDKeypresses.Add(float64(accepted))
		view = viewMenu(id, m, accepted)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if view.Final {
		s.menus.remove(id)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		writeJSON(w, http.StatusOK, s.state.History())
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	writeJSON(w, http.StatusOK, s.state.Recent(n))
}

type statusRequest struct {
	Status models.Status `json:"status" validate:"required"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !s.read(w, r, &req) {
		return
	}
	b, err := s.state.SetBookingStatus(r.Context(), id, req.Status)
	if b.ID == 0 {
		s.fail(w, r, err)
		return
	}
	s.warnIfUnsaved(r, err)
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleRanks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pos := geo.DefaultPosition
	if q.Get("lat") != "" || q.Get("lon") != "" {
		p, err := geo.ParsePosition(q.Get("lat") + "," + q.Get("lon"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pos = p
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.state.NearbyRanks(pos, limit))
}

var upgrader = websocket.Upgrader{}

// handleWS attaches a driver's assignment feed. The connection stays
// registered until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, known := s.state.Registry().Get(id); !known {
		s.fail(w, r, registry.ErrDriverNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "driver_id", id, "error", err)
		return
	}
	s.ws.Add(id, conn)
	s.logger.Info("driver connected", "driver_id", id)
	go func() {
		defer s.ws.Remove(id, conn)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.logger.Info("driver disconnected", "driver_id", id)
				return
			}
		}
	}()
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrMissingLocations),
		errors.Is(err, booking.ErrInvalidDraft),
		errors.Is(err, app.ErrNameRequired),
		errors.Is(err, ledger.ErrInvalidStatus),
		errors.Is(err, ledger.ErrInvalidBooking),
		errors.Is(err, geo.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrDriverNotFound),
		errors.Is(err, ledger.ErrBookingNotFound),
		errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrNoDriverSelected),
		errors.Is(err, booking.ErrNotCandidate),
		errors.Is(err, booking.ErrNotEditable),
		errors.Is(err, booking.ErrNotSelecting),
		errors.Is(err, booking.ErrCommitted):
		return http.StatusConflict
	case errors.Is(err, booking.ErrNoDrivers):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

// warnIfUnsaved logs a store failure after the in-memory change succeeded.
func (s *Server) warnIfUnsaved(r *http.Request, err error) {
	if err != nil {
		s.logger.Warn("change kept in memory but not persisted", "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()), "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
