package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Serves the prometheus metrics on its own port
type MetricsServer struct {
	httpServer *http.Server
}

// Creates and starts a metrics server
func NewMetricsServer(bindAddress string, port int) *MetricsServer {

	ensureMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	ms := MetricsServer{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", bindAddress, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	go func() {
		GetLogger().Infof("metrics server listening in %s", ms.httpServer.Addr)
		if err := ms.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			GetLogger().Errorf("metrics server error: %s", err)
		}
	}()

	return &ms
}

// Shuts down the http server
func (ms *MetricsServer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ms.httpServer.Shutdown(ctx)
}
