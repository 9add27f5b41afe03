// Package radiusserver implements the UDP server sockets where the radius
// requests from the routers are received.
package radiusserver

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/zonawifi/portero/core"
	"github.com/zonawifi/portero/nasregistry"
)

// Valid statuses
const (
	StatusOperational = 0
	StatusTerminated  = 1
)

// Implements a radius server socket.
// Checks the origin of incoming datagrams against the NAS registry, decodes
// and validates them, sends them to the handler and replies back with the
// responses. Datagrams from unregistered origins and malformed datagrams are
// dropped without a response
type RadiusServer struct {

	// Where the shared secrets live, keyed by source IP
	registry *nasregistry.Registry

	// Handler function for incoming packets
	handler core.RadiusPacketHandler

	// The UDP socket
	socket net.PacketConn

	// Tracks the in-flight handler goroutines
	wg sync.WaitGroup

	// Initially 0 and 1 (StatusTerminated) if we are shutting down
	status int32
}

// Creates a Radius Server and starts receiving packets
func NewRadiusServer(registry *nasregistry.Registry, bindAddress string, bindPort int, handler core.RadiusPacketHandler) *RadiusServer {

	socket, err := net.ListenPacket("udp", fmt.Sprintf("%s:%d", bindAddress, bindPort))
	if err != nil {
		panic(fmt.Sprintf("could not create listen socket in %s:%d : %s", bindAddress, bindPort, err))
	}
	core.GetLogger().Infof("radius server listening in %s:%d", bindAddress, bindPort)

	radiusServer := RadiusServer{
		registry: registry,
		handler:  handler,
		socket:   socket,
	}

	go radiusServer.readLoop(socket)

	return &radiusServer
}

// The bound address of the server socket, useful when binding to port 0
func (rs *RadiusServer) LocalAddr() net.Addr {
	return rs.socket.LocalAddr()
}

// Frees the server socket and waits for the in-flight requests to finish
func (rs *RadiusServer) Close() {
	atomic.StoreInt32(&rs.status, StatusTerminated)

	// Will generate an error in the loop, and the readLoop will return
	rs.socket.Close()

	rs.wg.Wait()
}

func (rs *RadiusServer) readLoop(socket net.PacketConn) {

	// Single buffer where all incoming packets are read
	// According to RFC 2865, the maximum packet size is 4096
	reqBuf := make([]byte, 4096)

	for {
		packetSize, clientAddr, err := socket.ReadFrom(reqBuf)
		if err != nil {
			// Check here if the error is due to the socket being closed
			if atomic.LoadInt32(&rs.status) == StatusTerminated {
				core.GetLogger().Infof("closed radius server socket %s", socket.LocalAddr().String())
				return
			} else {
				panic(err)
			}
		}

		clientIP := clientAddr.(*net.UDPAddr).IP
		clientIPAddr := clientIP.String()
		nasClient, err := rs.registry.Find(clientIP)
		if err != nil {
			core.RecordRadiusServerDrop(clientIPAddr, 0)
			core.GetLogger().Warnf("message from unknown nas %s", clientIPAddr)
			continue
		}

		// Decode the packet
		radiusPacket, err := core.NewRadiusPacketFromBytes(reqBuf[:packetSize])
		if err != nil {
			core.RecordRadiusServerDrop(clientIPAddr, 0)
			core.GetLogger().Warnf("error decoding packet from %s: %s", clientIPAddr, err)
			continue
		}

		// Validate the request authenticator. Access requests carry a random
		// authenticator that cannot be verified
		if radiusPacket.Code != core.ACCESS_REQUEST {
			if !core.ValidateRequestAuthenticator(reqBuf[:packetSize], nasClient.Secret) {
				core.RecordRadiusServerDrop(clientIPAddr, radiusPacket.Code)
				core.GetLogger().Warnf("invalid request packet from %s. Bad authenticator %s", clientIPAddr, radiusPacket)
				continue
			}
		}

		core.RecordRadiusServerRequest(clientIPAddr, radiusPacket.Code)
		core.GetLogger().Debugf("<- server received RadiusPacket %s", radiusPacket)

		rs.wg.Add(1)
		go func(requestPacket *core.RadiusPacket, origin net.IP, secret string, addr net.Addr) {
			defer rs.wg.Done()

			code := requestPacket.Code

			responsePacket, err := rs.handler(requestPacket, origin)
			if err != nil || responsePacket == nil {
				core.GetLogger().Errorf("discarding packet from %s with code %d: %s", addr.String(), code, err)
				core.RecordRadiusServerDrop(origin.String(), code)
				return
			}

			// Build the response
			respBuf, err := responsePacket.ToBytes(secret, requestPacket.Identifier)
			if err != nil {
				core.GetLogger().Errorf("error serializing packet for %s with code %d: %s", addr.String(), code, err)
				core.RecordRadiusServerDrop(origin.String(), code)
				return
			}

			if _, err = socket.WriteTo(respBuf, addr); err != nil {
				core.GetLogger().Errorf("error sending packet to %s with code %d: %s", addr.String(), code, err)
				core.RecordRadiusServerDrop(origin.String(), code)
				return
			}

			core.RecordRadiusServerResponse(origin.String(), responsePacket.Code)
			core.GetLogger().Debugf("-> server sent RadiusPacket %s", responsePacket)

		}(radiusPacket, clientIP, nasClient.Secret, clientAddr)
	}
}
