// Package httphandler exposes a small read-only HTTP status interface: the
// authorization decision for a device, for troubleshooting from the portal
// backend, and a liveness probe.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zonawifi/portero/core"
	"github.com/zonawifi/portero/sessions"
)

type HttpHandler struct {

	// Holds the httpserver
	httpServer *http.Server

	// For signaling finalization
	doneChannel chan struct{}
}

// Creates the handler and starts listening
func NewHttpHandler(bindAddress string, bindPort int, authorizer *sessions.Authorizer) *HttpHandler {

	mux := new(http.ServeMux)
	mux.HandleFunc("/authorize", getAuthorizeHandler(authorizer))
	mux.HandleFunc("/ping", pingHandler)

	bindAddrPort := fmt.Sprintf("%s:%d", bindAddress, bindPort)
	core.GetLogger().Infof("http handler listening in %s", bindAddrPort)

	h := HttpHandler{
		httpServer: &http.Server{
			Addr:              bindAddrPort,
			Handler:           mux,
			IdleTimeout:       1 * time.Minute,
			ReadHeaderTimeout: 5 * time.Second,
		},
		doneChannel: make(chan struct{}),
	}

	go h.run()

	return &h
}

// This function blocks. Executed in a goroutine
func (h *HttpHandler) run() {

	err := h.httpServer.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		panic("error starting http handler: " + err.Error())
	}

	close(h.doneChannel)
}

// Gracefully shutdown
func (h *HttpHandler) Close() {
	h.httpServer.Shutdown(context.Background())
	<-h.doneChannel
}

// Answers the authorization decision for ?mac=<address>&nasip=<ip> as JSON.
// Read-only: reports exactly what the radius server would answer, but never
// touches session state
func getAuthorizeHandler(authorizer *sessions.Authorizer) func(w http.ResponseWriter, req *http.Request) {

	return func(w http.ResponseWriter, req *http.Request) {

		macAddress := req.URL.Query().Get("mac")
		if macAddress == "" {
			http.Error(w, "missing mac parameter", http.StatusBadRequest)
			return
		}
		nasIPAddress := req.URL.Query().Get("nasip")

		decision, err := authorizer.Authorize(req.Context(), macAddress, nasIPAddress)
		if err != nil {
			core.GetLogger().Errorf("http authorization error for %s: %s", macAddress, err)
			http.Error(w, "authorization unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(decision); err != nil {
			core.GetLogger().Errorf("error encoding decision: %s", err)
		}
	}
}

func pingHandler(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
