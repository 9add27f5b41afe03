package core

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
)

type RadiusPacketType byte

const (
	ACCESS_REQUEST = 1
	ACCESS_ACCEPT  = 2
	ACCESS_REJECT  = 3

	ACCOUNTING_REQUEST  = 4
	ACCOUNTING_RESPONSE = 5
)

var ZeroAuthenticator = [16]byte{}

// Type for functions that handle the radius requests received by a server socket.
// The origin is the validated source IP of the NAS that sent the request.
// Returning a nil packet or an error makes the server drop the request silently.
type RadiusPacketHandler func(request *RadiusPacket, origin net.IP) (*RadiusPacket, error)

// Radius packet in the wire
// code: 1 byte
// identifier: 1 byte
// length: 2 bytes
// authenticator: 16 octets
// AVP[]

// Represents a Radius packet
type RadiusPacket struct {

	// Radius code
	Code RadiusPacketType

	// Identifier of the request/response pair
	Identifier byte

	// Auto-generated in an access request, and calculated as an md5 over the
	// packet bytes in other requests. In responses it is calculated as md5 of the
	// response where the authenticator bytes are those of the request.
	Authenticator [16]byte

	// The AVPs of the radius packet
	AVPs []RadiusAVP
}

// Reads the RadiusPacket from a Reader interface.
// Returns the number of bytes consumed, which equals the length declared in the header
func (rp *RadiusPacket) FromReader(reader io.Reader) (n int64, err error) {

	var packetLen uint16

	currentIndex := int64(0)

	// Read code
	if err := binary.Read(reader, binary.BigEndian, &rp.Code); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	currentIndex += 1

	// Read identifier
	if err := binary.Read(reader, binary.BigEndian, &rp.Identifier); err != nil {
		return currentIndex, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	currentIndex += 1

	// Read length
	if err := binary.Read(reader, binary.BigEndian, &packetLen); err != nil {
		return currentIndex, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	currentIndex += 2

	if packetLen < 20 {
		return currentIndex, fmt.Errorf("%w: declared length %d smaller than the header", ErrMalformedPacket, packetLen)
	}

	// Read authenticator
	if err := binary.Read(reader, binary.BigEndian, &rp.Authenticator); err != nil {
		return currentIndex, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	currentIndex += 16

	// Read the AVPs. Each one consumes the bytes declared in its own length byte
	rp.AVPs = make([]RadiusAVP, 0)
	for currentIndex < int64(packetLen) {
		nextAVP := RadiusAVP{}

		bytesRead, err := nextAVP.FromReader(reader)
		if err != nil {
			return currentIndex + bytesRead, err
		}
		currentIndex += bytesRead

		if currentIndex > int64(packetLen) {
			return currentIndex, fmt.Errorf("%w: avp %s overruns the declared packet length", ErrMalformedPacket, nextAVP.Name)
		}

		rp.AVPs = append(rp.AVPs, nextAVP)
	}

	return currentIndex, nil
}

// Builds a Radius Packet from a byte slice, rejecting buffers whose size does not
// match the length declared in the header
func NewRadiusPacketFromBytes(inputBytes []byte) (*RadiusPacket, error) {

	if len(inputBytes) < 20 {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrMalformedPacket, len(inputBytes))
	}

	radiusPacket := RadiusPacket{}
	n, err := radiusPacket.FromReader(bytes.NewReader(inputBytes))
	if err != nil {
		return nil, err
	}

	if n != int64(len(inputBytes)) {
		return nil, fmt.Errorf("%w: declared length %d does not match buffer size %d", ErrMalformedPacket, n, len(inputBytes))
	}

	return &radiusPacket, nil
}

// Writes the radius packet to the specified writer
//
// ACCESS_REQUEST
//
//	Authenticator is generated randomly, unless one was set beforehand
//
// ACCOUNTING_REQUEST
//
//	Authenticator is md5(code+identifier+length+zeroed_authenticator+attributes+secret)
//
// RESPONSE
//
//	Authenticator is md5(code+identifier+length+request_authenticator+attributes+secret),
//	where the request authenticator must have been copied into the packet on creation
//	(see NewRadiusResponse)
//
// id is used for requests only. Responses echo the identifier of the request
func (rp *RadiusPacket) ToWriter(outWriter io.Writer, secret string, id byte) (int64, error) {

	currentIndex := int64(0)
	var err error

	// Unless this is an access request with a pre-set authenticator, the
	// authenticator is a hash over the full packet and cannot be written up front.
	// Everything goes through an intermediate buffer
	scratchWriter := new(bytes.Buffer)

	// Write code
	if err = binary.Write(scratchWriter, binary.BigEndian, rp.Code); err != nil {
		return 0, err
	}
	currentIndex += 1

	// Write identifier
	if rp.Code == ACCESS_REQUEST || rp.Code == ACCOUNTING_REQUEST {
		rp.Identifier = id
	}
	if err = binary.Write(scratchWriter, binary.BigEndian, rp.Identifier); err != nil {
		return 0, err
	}
	currentIndex += 1

	// Write length
	packetLen := rp.Len()
	if err = binary.Write(scratchWriter, binary.BigEndian, packetLen); err != nil {
		return 0, err
	}
	currentIndex += 2

	// Write authenticator
	switch rp.Code {
	case ACCESS_REQUEST:
		if rp.Authenticator == ZeroAuthenticator {
			rp.Authenticator = BuildRandomAuthenticator()
		}
	case ACCOUNTING_REQUEST:
		rp.Authenticator = ZeroAuthenticator
	}
	// In responses, the request authenticator in place is hashed over and later replaced
	if err = binary.Write(scratchWriter, binary.BigEndian, rp.Authenticator); err != nil {
		return 0, err
	}
	currentIndex += 16

	// Write all the AVPs
	for i := range rp.AVPs {
		n, err := rp.AVPs[i].ToWriter(scratchWriter)
		if err != nil {
			return 0, err
		}
		currentIndex += n
	}

	// Sanity check
	if currentIndex != int64(packetLen) {
		panic(fmt.Sprintf("assert failed. Bad message size. Current index: %d - Packetlen: %d", currentIndex, packetLen))
	}

	packetBytes := scratchWriter.Bytes()

	// For anything but an access request, the wire authenticator is a hash over
	// the scratch packet, which carries the zeroed (accounting request) or request
	// (response) authenticator at this point
	if rp.Code != ACCESS_REQUEST {
		auth := computeAuthenticator(packetBytes, rp.Authenticator, secret)
		copy(packetBytes[4:20], auth[:])
		rp.Authenticator = auth
	}

	writtenBytes, err := outWriter.Write(packetBytes)
	if err != nil {
		return int64(writtenBytes), err
	}

	// Sanity check
	if uint16(writtenBytes) != packetLen {
		panic(fmt.Sprintf("written %d bytes instead of %d", writtenBytes, packetLen))
	}

	return int64(writtenBytes), nil
}

// Returns a byte slice with the contents of the packet
func (rp *RadiusPacket) ToBytes(secret string, id byte) (data []byte, err error) {
	var buffer bytes.Buffer
	if _, err := rp.ToWriter(&buffer, secret, id); err != nil {
		return buffer.Bytes(), err
	}
	return buffer.Bytes(), nil
}

// Returns the size of the Radius packet in the wire
func (rp *RadiusPacket) Len() uint16 {
	var avpLen uint16 = 0
	for i := range rp.AVPs {
		avpLen += uint16(rp.AVPs[i].Len())
	}

	// Header always has 20 bytes
	return 20 + avpLen
}

// Returns true if the packet is any type of request
func (rp *RadiusPacket) IsRequest() bool {
	switch rp.Code {
	case ACCESS_REQUEST, ACCOUNTING_REQUEST:
		return true
	default:
		return false
	}
}

///////////////////////////////////////////////////////////////
// AVP manipulation
///////////////////////////////////////////////////////////////

// Adds a new AVP to the packet
func (rp *RadiusPacket) AddAVP(avp *RadiusAVP) *RadiusPacket {
	rp.AVPs = append(rp.AVPs, *avp)
	return rp
}

// Adds a new AVP specified by name to the packet
func (rp *RadiusPacket) Add(name string, value interface{}) *RadiusPacket {

	// If avp to add is nil, do nothing
	if value == nil {
		return rp
	}

	if avp, err := NewRadiusAVP(name, value); err != nil {
		GetLogger().Errorf("avp %s could not be added: %v, due to %s", name, value, err)
		return rp
	} else {
		rp.AVPs = append(rp.AVPs, *avp)
		return rp
	}
}

// Adds the AVP specified by name to the packet, if not already present
func (rp *RadiusPacket) AddIfNotPresent(name string, value interface{}) *RadiusPacket {
	for i := range rp.AVPs {
		if rp.AVPs[i].Name == name {
			return rp
		}
	}
	return rp.Add(name, value)
}

// Retrieves the first AVP with the specified name from the packet
func (rp *RadiusPacket) GetAVP(avpName string) (RadiusAVP, error) {
	for i := range rp.AVPs {
		if rp.AVPs[i].Name == avpName {
			return rp.AVPs[i], nil
		}
	}
	return RadiusAVP{}, fmt.Errorf("avp named %s not found", avpName)
}

// Retrieves all AVPs with the specified name from the packet
func (rp *RadiusPacket) GetAllAVP(avpName string) []RadiusAVP {
	avpList := make([]RadiusAVP, 0)
	for i := range rp.AVPs {
		if rp.AVPs[i].Name == avpName {
			avpList = append(avpList, rp.AVPs[i])
		}
	}
	return avpList
}

// Retrieves the specified AVP name as a string, or the empty string if not found
// (instead of returning an error. Use with care)
func (rp *RadiusPacket) GetStringAVP(avpName string) string {
	avp, err := rp.GetAVP(avpName)
	if err != nil {
		return ""
	}
	return avp.GetString()
}

// Same, for int
func (rp *RadiusPacket) GetIntAVP(avpName string) int64 {
	avp, err := rp.GetAVP(avpName)
	if err != nil {
		return 0
	}
	return avp.GetInt()
}

// Same, for IPAddress
func (rp *RadiusPacket) GetIPAddressAVP(avpName string) net.IP {
	avp, err := rp.GetAVP(avpName)
	if err != nil {
		return net.IP{}
	}
	return avp.GetIPAddress()
}

///////////////////////////////////////////////////////////////
// Packet creation
///////////////////////////////////////////////////////////////

// Creates a new radius request with the specified code
func NewRadiusRequest(code RadiusPacketType) *RadiusPacket {
	return &RadiusPacket{Code: code}
}

// Creates a radius answer for the specified request packet.
// The identifier is echoed and the request authenticator is copied in, to be
// hashed over when the response is serialized
func NewRadiusResponse(request *RadiusPacket, isSuccess bool) *RadiusPacket {
	var code RadiusPacketType
	if isSuccess {
		code = request.Code + 1
	} else {
		code = request.Code + 2
	}
	return &RadiusPacket{Code: code, Identifier: request.Identifier, Authenticator: request.Authenticator}
}

///////////////////////////////////////////////////////////////
// Packet validation
///////////////////////////////////////////////////////////////

// The authenticator of a response or an accounting request is an md5 hash over
// code+identifier+length, a 16 byte reference authenticator (the one of the request
// being answered, or zeroes for an accounting request), the attribute bytes, and
// finally the shared secret
func computeAuthenticator(packetBytes []byte, refAuthenticator [16]byte, secret string) [16]byte {
	hasher := md5.New()
	hasher.Write(packetBytes[0:4])
	hasher.Write(refAuthenticator[:])
	hasher.Write(packetBytes[20:])
	hasher.Write([]byte(secret))
	return [16]byte(hasher.Sum(nil))
}

// Computes the response authenticator for the serialized response passed in
// packetBytes. The bytes in positions 4:20 are ignored: the hash covers the
// authenticator of the request instead
func ComputeResponseAuthenticator(packetBytes []byte, requestAuthenticator [16]byte, secret string) [16]byte {
	return computeAuthenticator(packetBytes, requestAuthenticator, secret)
}

// Checks the authenticator of a response against the authenticator of the request it answers
func ValidateResponseAuthenticator(packetBytes []byte, requestAuthenticator [16]byte, secret string) bool {

	if len(packetBytes) < 20 {
		return false
	}

	auth := computeAuthenticator(packetBytes, requestAuthenticator, secret)

	// Compare by brute force, better than reflect
	for i, b := range packetBytes[4:20] {
		if auth[i] != b {
			return false
		}
	}

	return true
}

// Checks the authenticator of an accounting request, which hashes over a zeroed
// authenticator field
func ValidateRequestAuthenticator(packetBytes []byte, secret string) bool {

	if len(packetBytes) < 20 {
		return false
	}

	auth := computeAuthenticator(packetBytes, ZeroAuthenticator, secret)

	// Compare by brute force, better than reflect
	for i, b := range packetBytes[4:20] {
		if auth[i] != b {
			return false
		}
	}

	return true
}

///////////////////////////////////////////////////////////////
// Serialization
///////////////////////////////////////////////////////////////

func (rp RadiusPacket) String() string {
	b, err := json.Marshal(rp)
	if err != nil {
		return ""
	}
	return string(b)
}
