package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	stlog "snailtrail.dev/st2/internal/log"
	"snailtrail.dev/st2/internal/metrics"
	"snailtrail.dev/st2/internal/pag"
)

// Request kinds the dashboard protocol accepts (spec §6): ALL and PAG both
// return raw edges (ALL ignores Epoch and returns everything still
// buffered), AGG and MET both return the aggregated per-activity summary for
// one epoch, INV is answered with only the type, epoch and frontier fields;
// it carries no invariant-violation data.
const (
	RequestAll = "ALL"
	RequestAgg = "AGG"
	RequestPag = "PAG"
	RequestMet = "MET"
	RequestInv = "INV"
)

// request is the `{type, epoch}` message a dashboard client sends.
type request struct {
	Type  string `json:"type"`
	Epoch uint64 `json:"epoch"`
}

// response carries the payload matching the request's type, plus the
// server's current frontier (the "last-observed frontier" spec §7 promises
// on disconnection).
type response struct {
	Type      string                 `json:"type"`
	Epoch     uint64                 `json:"epoch"`
	Payload   []pag.Edge             `json:"payload,omitempty"`
	Aggregate []metrics.AggregateRow `json:"aggregate,omitempty"`
	Frontier  uint64                 `json:"frontier"`
}

// Server is the dashboard's WebSocket endpoint, binding a single address and
// upgrading every connection to its own read/reply goroutine (gorilla's
// documented one-goroutine-per-connection pattern).
type Server struct {
	addr     string
	ring     *Ring
	log      *logrus.Logger
	upgrader websocket.Upgrader
	listener net.Listener
	server   *http.Server
}

// NewServer builds a dashboard Server bound to addr, serving epoch slices
// out of ring. A nil log falls back to internal/log.Default.
func NewServer(addr string, ring *Ring, log *logrus.Logger) *Server {
	if log == nil {
		log = stlog.Default
	}
	return &Server{
		addr: addr,
		ring: ring,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Loopback-only server (spec §6 binds 127.0.0.1); origin checks
			// serve no purpose here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start binds addr and begins serving WebSocket connections in the
// background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleConn)
	s.server = &http.Server{Handler: mux}

	s.log.WithFields(logrus.Fields{"addr": s.addr}).Info("dashboard server started")
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithFields(logrus.Fields{"error": err}).Error("dashboard server error")
		}
	}()
	return nil
}

// Stop closes the listener, terminating all connections.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info("dashboard server stopped")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithFields(logrus.Fields{"error": err}).Warn("dashboard upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		frontier, _ := s.ring.Frontier()
		resp := response{Type: req.Type, Epoch: req.Epoch, Frontier: frontier}

		switch req.Type {
		case RequestAll:
			resp.Payload = s.ring.All()
		case RequestPag:
			resp.Payload = s.ring.Epoch(req.Epoch)
		case RequestAgg, RequestMet:
			resp.Aggregate = metrics.AggregateEdges(s.ring.Epoch(req.Epoch))
		case RequestInv:
			// Invariant violations are logged as they're detected
			// (internal/invariants.Checker) but not buffered per epoch, so
			// there is nothing to replay here yet; the frontier marker is
			// still meaningful on its own.
		default:
			continue
		}

		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}
