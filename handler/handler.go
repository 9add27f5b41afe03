// Package handler implements the processing of the radius requests accepted by
// the server: admission decisions for Access-Request and CDR generation for
// Accounting-Request.
package handler

import (
	"context"
	"fmt"
	"net"

	"github.com/zonawifi/portero/core"
	"github.com/zonawifi/portero/sessions"
)

// Implemented by cdrwriter.FileCDRWriter. May be nil if accounting packets are
// to be acknowledged but not persisted
type CDRWriter interface {
	WriteRadiusCDR(rp *core.RadiusPacket)
}

// Produces the response for each request packet. Stateless: all the state
// lives in the session store behind the authorizer
type RadiusHandler struct {
	authorizer *sessions.Authorizer
	cdrWriter  CDRWriter
}

func NewRadiusHandler(authorizer *sessions.Authorizer, cdrWriter CDRWriter) *RadiusHandler {
	return &RadiusHandler{
		authorizer: authorizer,
		cdrWriter:  cdrWriter,
	}
}

// Conforms to core.RadiusPacketHandler. origin is the verified source address
// of the NAS, already checked against the registry by the server
func (h *RadiusHandler) Handle(request *core.RadiusPacket, origin net.IP) (*core.RadiusPacket, error) {

	switch request.Code {

	case core.ACCESS_REQUEST:
		return h.handleAccessRequest(request, origin)

	case core.ACCOUNTING_REQUEST:
		return h.handleAccountingRequest(request)

	default:
		// The caller drops the packet without responding
		return nil, fmt.Errorf("unhandled packet code %d", request.Code)
	}
}

// The device MAC address is taken from User-Name, as sent by routers doing MAC
// authentication, falling back to Calling-Station-Id.
//
// A store failure produces an Access-Reject, not a discarded packet: when the
// database is down, nobody gets in
func (h *RadiusHandler) handleAccessRequest(request *core.RadiusPacket, origin net.IP) (*core.RadiusPacket, error) {

	macAddress := request.GetStringAVP("User-Name")
	if macAddress == "" {
		macAddress = request.GetStringAVP("Calling-Station-Id")
	}
	if macAddress == "" {
		core.GetLogger().Warnf("access request from %s without device identifier", origin)
		return reject(request, "no device identifier"), nil
	}

	decision, err := h.authorizer.Authorize(context.Background(), macAddress, origin.String())
	if err != nil {
		core.GetLogger().Errorf("authorization error for %s: %s", macAddress, err)
		return reject(request, "authorization unavailable"), nil
	}

	if !decision.Granted {
		return reject(request, "no active session"), nil
	}

	response := core.NewRadiusResponse(request, true)
	response.Add("Session-Timeout", int(decision.RemainingSeconds))
	return response, nil
}

// Accounting is acknowledged unconditionally. The packet is written as a CDR
// for offline reconciliation but never drives session state
func (h *RadiusHandler) handleAccountingRequest(request *core.RadiusPacket) (*core.RadiusPacket, error) {

	if h.cdrWriter != nil {
		h.cdrWriter.WriteRadiusCDR(request)
	}

	return core.NewRadiusResponse(request, true), nil
}

func reject(request *core.RadiusPacket, reason string) *core.RadiusPacket {
	response := core.NewRadiusResponse(request, false)
	response.Add("Reply-Message", reason)
	return response
}
