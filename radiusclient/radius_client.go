// Package radiusclient implements a minimal radius client, used to probe the
// server sockets and in the server tests.
package radiusclient

import (
	"fmt"
	"net"
	"time"

	"github.com/zonawifi/portero/core"
)

// Sends one request at a time over a dedicated socket and matches the response
// by identifier. Not safe for concurrent use
type RadiusClient struct {

	// The UDP socket, bound to an ephemeral local port
	socket net.PacketConn

	// Address of the server to send the requests to
	serverAddr *net.UDPAddr

	// Shared secret with the server
	secret string

	// Identifier for the next request
	nextIdentifier byte
}

func NewRadiusClient(serverAddress string, secret string) (*RadiusClient, error) {

	serverAddr, err := net.ResolveUDPAddr("udp", serverAddress)
	if err != nil {
		return nil, fmt.Errorf("could not resolve %s: %w", serverAddress, err)
	}

	socket, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("could not create client socket: %w", err)
	}

	return &RadiusClient{
		socket:     socket,
		serverAddr: serverAddr,
		secret:     secret,
	}, nil
}

// Sends the request and waits for the matching response until the timeout
// expires. Responses with a non-matching identifier or a bad response
// authenticator are ignored while waiting
func (c *RadiusClient) SendRequest(request *core.RadiusPacket, timeout time.Duration) (*core.RadiusPacket, error) {

	identifier := c.nextIdentifier
	c.nextIdentifier++

	reqBuf, err := request.ToBytes(c.secret, identifier)
	if err != nil {
		return nil, fmt.Errorf("could not serialize request: %w", err)
	}

	if _, err := c.socket.WriteTo(reqBuf, c.serverAddr); err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}

	if err := c.socket.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	respBuf := make([]byte, 4096)
	for {
		packetSize, _, err := c.socket.ReadFrom(respBuf)
		if err != nil {
			return nil, fmt.Errorf("no response received: %w", err)
		}

		if !core.ValidateResponseAuthenticator(respBuf[:packetSize], request.Authenticator, c.secret) {
			core.GetLogger().Warnf("ignoring response with bad authenticator from %s", c.serverAddr)
			continue
		}

		responsePacket, err := core.NewRadiusPacketFromBytes(respBuf[:packetSize])
		if err != nil {
			core.GetLogger().Warnf("ignoring undecodable response from %s: %s", c.serverAddr, err)
			continue
		}

		if responsePacket.Identifier != identifier {
			core.GetLogger().Warnf("ignoring response with stale identifier %d", responsePacket.Identifier)
			continue
		}

		return responsePacket, nil
	}
}

func (c *RadiusClient) Close() {
	c.socket.Close()
}
