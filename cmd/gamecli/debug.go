package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/trace"

	"badc0de.net/pkg/gamenet/client"
)

func debugRouter(c *client.Client) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/debug/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c.Snapshot()); err != nil {
			glog.Errorf("encoding status: %v", err)
		}
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/debug/requests", trace.Traces)
	r.HandleFunc("/debug/events", trace.Events)
	return handlers.LoggingHandler(os.Stderr, r)
}

// serveDebug runs the debug web server until ctx is done. It only ever reads
// the client's snapshot, never the client itself.
func serveDebug(ctx context.Context, addr string, c *client.Client) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           debugRouter(c),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	glog.Infof("debug web server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "debug web server")
	}
	return nil
}
