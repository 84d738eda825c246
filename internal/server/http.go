package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	jsonwriter "github.com/tiffinstash/ops-front/internal/json"
	"github.com/tiffinstash/ops-front/internal/log"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
)

// HTTPServer owns the listener lifecycle. No WriteTimeout: the CSV
// export streams while paginating through Shopify with a delay per
// page, so long responses are legitimate.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer wraps the handler in a server with sane edge timeouts
func NewHTTPServer(handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
		},
	}
}

// Start blocks serving requests until Stop is called. A clean shutdown
// is not an error.
func (h *HTTPServer) Start() error {
	log.Logf("http server listening on %s", h.server.Addr)

	if err := h.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until the context expires
func (h *HTTPServer) Stop(ctx context.Context) error {
	log.Logf("http server draining connections")
	return h.server.Shutdown(ctx)
}

// HealthHandler answers load balancer liveness checks. Unauthenticated
// and deliberately content-free.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	_ = jsonwriter.Write(w, map[string]string{"status": "ok"})
}
