package relay

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xReLogic/nerdrelay/internal/logging"
)

// Routes builds the relay's HTTP handler. allowedOrigin feeds the CORS
// headers; an empty value disables them.
func (rl *Relay) Routes(allowedOrigin string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, cors(allowedOrigin), instrument, recoverJSON)

	r.Get("/", rl.ServeIndex)
	r.Get("/index", rl.ServeIndex)
	r.Get("/index.html", rl.ServeIndex)

	r.Post(endpointQuery, rl.ForwardQuery)
	r.Post(endpointEntity, rl.ForwardEntityLookup)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Server runs the relay handler until Shutdown is called.
type Server struct {
	ListenAddr string
	srv        *http.Server
}

// NewServer prepares a server on listenAddr. A non-nil tlsConfig makes it
// serve HTTPS with the certificates it carries.
func NewServer(listenAddr string, handler http.Handler, tlsConfig *tls.Config) *Server {
	return &Server{
		ListenAddr: listenAddr,
		srv: &http.Server{
			Addr:              listenAddr,
			Handler:           handler,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       90 * time.Second,
		},
	}
}

// Start listens and serves; it blocks until the server stops. A clean
// Shutdown returns nil.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l.
func (s *Server) Serve(l net.Listener) error {
	logging.LogHTTPServerStart(l.Addr().String(), s.srv.TLSConfig != nil)

	var err error
	if s.srv.TLSConfig != nil {
		err = s.srv.ServeTLS(l, "", "") // certificates in TLSConfig
	} else {
		err = s.srv.Serve(l)
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
