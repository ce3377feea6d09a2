// Package gatewaytest runs an in-process stand-in for the IBKR Client Portal
// gateway: the REST endpoints the scanner calls plus the quote WebSocket.
package gatewaytest

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wonny/putscan/pkg/config"
)

// BasePath is where the fake serves the API
const BasePath = "/v1/api"

// Underlying is a searchable stock listing
type Underlying struct {
	ConID       int64
	Symbol      string
	Description string   // primary exchange
	Months      []string // option months, e.g. JAN24
}

// Option is one listed option contract
type Option struct {
	ConID        int64
	Underlying   int64
	Expiration   string // YYYYMMDD
	Strike       float64
	Right        string
	TradingClass string
	Multiplier   string
}

// Bar is a daily bar served by both history endpoints
type Bar struct {
	Open, High, Low, Close, Volume float64
	Time                           time.Time
}

// Server is a scriptable fake gateway
type Server struct {
	*httptest.Server

	mu sync.Mutex

	Authenticated bool
	Competing     bool
	SessionToken  string
	DisableStream bool

	Underlyings map[string]Underlying
	Options     []Option
	// Quotes holds raw field maps keyed by conid ("31", "84", "86", "7296")
	Quotes map[int64]map[string]interface{}
	Bars   map[int64][]Bar
	// HistoryStatus forces an error status on history calls when non-zero
	HistoryStatus int

	requests map[string]int
	sessions []string
	streamed map[int64]bool

	upgrader websocket.Upgrader
}

// New starts a fake gateway with an authenticated session
func New() *Server {
	s := &Server{
		Authenticated: true,
		SessionToken:  "f00dcafe",
		Underlyings:   make(map[string]Underlying),
		Quotes:        make(map[int64]map[string]interface{}),
		Bars:          make(map[int64][]Bar),
		requests:      make(map[string]int),
		streamed:      make(map[int64]bool),
	}

	r := mux.NewRouter()
	api := r.PathPrefix(BasePath).Subrouter()
	api.Use(s.count)
	api.HandleFunc("/iserver/auth/status", s.handleAuthStatus).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/tickle", s.handleTickle).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/iserver/secdef/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/iserver/secdef/strikes", s.handleStrikes).Methods(http.MethodGet)
	api.HandleFunc("/iserver/secdef/info", s.handleInfo).Methods(http.MethodGet)
	api.HandleFunc("/iserver/marketdata/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/iserver/marketdata/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/hmds/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.handleStream)

	s.Server = httptest.NewServer(r)
	return s
}

// Config returns process config pointing at the fake
func (s *Server) Config() *config.Config {
	host, port, _ := net.SplitHostPort(strings.TrimPrefix(s.URL, "http://"))
	p, _ := strconv.Atoi(port)

	return &config.Config{
		Env:       "development",
		LogLevel:  "error",
		LogFormat: "json",
		Gateway: config.GatewayConfig{
			Host:      host,
			Port:      p,
			ClientID:  1,
			Scheme:    "http",
			BasePath:  BasePath,
			RateLimit: 1000,
			Streaming: true,
			Timeout:   5 * time.Second,
		},
	}
}

// AddUnderlying registers a stock listing
func (s *Server) AddUnderlying(u Underlying) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Underlyings[strings.ToUpper(u.Symbol)] = u
}

// AddOption registers an option listing
func (s *Server) AddOption(o Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Right == "" {
		o.Right = "P"
	}
	if o.Multiplier == "" {
		o.Multiplier = "100"
	}
	s.Options = append(s.Options, o)
}

// SetQuote sets the raw fields served for conid
func (s *Server) SetQuote(conID int64, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Quotes[conID] = fields
}

// SetBars sets the bars served for conid
func (s *Server) SetBars(conID int64, bars ...Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Bars[conID] = bars
}

// Requests returns how often path (below BasePath) was called
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// Sessions returns the session messages received on the stream
func (s *Server) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sessions...)
}

// Streamed reports whether conid is currently subscribed on the stream
func (s *Server) Streamed(conID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamed[conID]
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[strings.TrimPrefix(r.URL.Path, BasePath)]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": s.Authenticated,
		"connected":     s.Authenticated,
		"competing":     s.Competing,
		"serverInfo": map[string]string{
			"serverName":    "gatewaytest",
			"serverVersion": "Build 10.25.0",
		},
	})
}

func (s *Server) handleTickle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Authenticated {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": s.SessionToken,
		"iserver": map[string]interface{}{
			"authStatus": map[string]bool{"authenticated": true, "connected": true},
		},
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	u, ok := s.Underlyings[symbol]
	if !ok {
		writeJSON(w, http.StatusOK, []interface{}{})
		return
	}

	writeJSON(w, http.StatusOK, []map[string]interface{}{{
		// string conid, as older gateways send it
		"conid":       strconv.FormatInt(u.ConID, 10),
		"symbol":      u.Symbol,
		"companyName": u.Symbol + " INC",
		"description": u.Description,
		"sections": []map[string]string{
			{"secType": "STK"},
			{"secType": "OPT", "months": strings.Join(u.Months, ";"), "exchange": "SMART;AMEX;CBOE"},
		},
	}})
}

func monthCode(exp string) string {
	t, err := time.Parse("20060102", exp)
	if err != nil {
		return ""
	}
	return strings.ToUpper(t.Format("Jan06"))
}

func (s *Server) handleStrikes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	conID, _ := strconv.ParseInt(q.Get("conid"), 10, 64)
	month := q.Get("month")

	seen := make(map[float64]bool)
	put := []float64{}
	for _, o := range s.Options {
		if o.Underlying != conID || monthCode(o.Expiration) != month || o.Right != "P" || seen[o.Strike] {
			continue
		}
		seen[o.Strike] = true
		put = append(put, o.Strike)
	}
	writeJSON(w, http.StatusOK, map[string][]float64{"call": {}, "put": put})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	conID, _ := strconv.ParseInt(q.Get("conid"), 10, 64)
	month := q.Get("month")
	strike, _ := strconv.ParseFloat(q.Get("strike"), 64)
	right := q.Get("right")

	out := []map[string]interface{}{}
	for _, o := range s.Options {
		if o.Underlying != conID || monthCode(o.Expiration) != month || o.Strike != strike || o.Right != right {
			continue
		}
		out = append(out, map[string]interface{}{
			"conid":        o.ConID,
			"symbol":       "",
			"strike":       o.Strike,
			"right":        o.Right,
			"maturityDate": o.Expiration,
			"multiplier":   o.Multiplier,
			"tradingClass": o.TradingClass,
			"exchange":     "SMART",
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []map[string]interface{}{}
	for _, id := range strings.Split(r.URL.Query().Get("conids"), ",") {
		conID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		item := map[string]interface{}{"conid": conID}
		for k, v := range s.Quotes[conID] {
			item[k] = v
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.HistoryStatus != 0 {
		writeJSON(w, s.HistoryStatus, map[string]string{"error": "history unavailable"})
		return
	}

	conID, _ := strconv.ParseInt(r.URL.Query().Get("conid"), 10, 64)
	data := []map[string]interface{}{}
	for _, b := range s.Bars[conID] {
		data = append(data, map[string]interface{}{
			"o": b.Open, "h": b.High, "l": b.Low, "c": b.Close, "v": b.Volume,
			"t": b.Time.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbol": "", "data": data})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	disabled := s.DisableStream
	s.mu.Unlock()
	if disabled {
		http.Error(w, "stream disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		text := string(msg)

		switch {
		case strings.HasPrefix(text, "{"):
			var session map[string]string
			if json.Unmarshal(msg, &session) == nil {
				s.mu.Lock()
				s.sessions = append(s.sessions, session["session"])
				s.mu.Unlock()
			}
		case strings.HasPrefix(text, "smd+"):
			conID, ok := topicConID(text)
			if !ok {
				continue
			}
			s.mu.Lock()
			s.streamed[conID] = true
			update := map[string]interface{}{
				"topic": "smd+" + strconv.FormatInt(conID, 10),
				"conid": conID,
			}
			for k, v := range s.Quotes[conID] {
				update[k] = v
			}
			s.mu.Unlock()
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case strings.HasPrefix(text, "umd+"):
			if conID, ok := topicConID(text); ok {
				s.mu.Lock()
				delete(s.streamed, conID)
				s.mu.Unlock()
			}
		}
	}
}

// topicConID extracts the conid from "smd+<conid>+{...}"
func topicConID(msg string) (int64, bool) {
	parts := strings.SplitN(msg, "+", 3)
	if len(parts) < 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	return id, err == nil
}
