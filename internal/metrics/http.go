package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Serve starts a minimal HTTP server exposing /metrics on addr, mirroring
// the teacher's internal/gateway/http_server.go's
// mux.Handle("/metrics", promhttp.Handler()) line. The caller owns
// shutting it down via the returned server's Shutdown.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go srv.ListenAndServe()
	return srv
}

// Shutdown is a small convenience wrapper with a bounded grace period.
func Shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
