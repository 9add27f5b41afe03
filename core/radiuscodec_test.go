package core

import (
	"bytes"
	"errors"
	"net"
	"testing"
)

var authenticator = [16]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F}
var secret = "mysecret"

func TestAVPNotFound(t *testing.T) {
	var _, err = NewRadiusAVP("Unknown AVP", "hello, world!")
	if err == nil {
		t.Errorf("Unknown AVP was created")
	}
}

func TestStringAVP(t *testing.T) {

	var theValue = "aa:bb:cc:dd:ee:ff"

	// Create avp
	avp, err := NewRadiusAVP("User-Name", theValue)
	if err != nil {
		t.Fatalf("error creating avp: %v", err)
	}
	if avp.GetString() != theValue {
		t.Errorf("value does not match")
	}

	// Serialize and unserialize
	binaryAVP, _ := avp.ToBytes()
	rebuiltAVP, _, _ := RadiusAVPFromBytes(binaryAVP)
	if rebuiltAVP.GetString() != theValue {
		t.Errorf("value does not match after unmarshalling. Got %s", rebuiltAVP.GetString())
	}
}

func TestIntegerAVP(t *testing.T) {

	var theValue = 3600

	avp, err := NewRadiusAVP("Session-Timeout", theValue)
	if err != nil {
		t.Fatalf("error creating avp: %v", err)
	}
	if int(avp.GetInt()) != theValue {
		t.Errorf("value does not match")
	}

	binaryAVP, _ := avp.ToBytes()
	rebuiltAVP, _, _ := RadiusAVPFromBytes(binaryAVP)
	if int(rebuiltAVP.GetInt()) != theValue {
		t.Errorf("value does not match after unmarshalling. Got %d", rebuiltAVP.GetInt())
	}
	if rebuiltAVP.GetString() != "3600" {
		t.Errorf("string value does not match after unmarshalling. Got <%v>", rebuiltAVP.GetString())
	}
}

func TestAddressAVP(t *testing.T) {

	var theValue = "192.168.1.7"

	avp, err := NewRadiusAVP("NAS-IP-Address", theValue)
	if err != nil {
		t.Fatalf("error creating avp: %v", err)
	}
	if avp.GetString() != theValue {
		t.Errorf("value does not match")
	}

	binaryAVP, _ := avp.ToBytes()
	rebuiltAVP, _, _ := RadiusAVPFromBytes(binaryAVP)
	if !rebuiltAVP.GetIPAddress().Equal(net.ParseIP(theValue)) {
		t.Errorf("value does not match after unmarshalling. Got %s", rebuiltAVP.GetString())
	}
}

func TestUnknownCodeAVP(t *testing.T) {

	// Attribute code 99 is not in the dictionary. Must round-trip as octets
	wireBytes := []byte{99, 5, 0x01, 0x02, 0x03}

	avp, n, err := RadiusAVPFromBytes(wireBytes)
	if err != nil {
		t.Fatalf("error decoding unknown avp: %v", err)
	}
	if n != 5 {
		t.Errorf("read %d bytes instead of 5", n)
	}
	if avp.Name != "Unknown-99" {
		t.Errorf("unexpected name %s", avp.Name)
	}

	rebuilt, err := avp.ToBytes()
	if err != nil {
		t.Fatalf("error encoding unknown avp: %v", err)
	}
	if !bytes.Equal(rebuilt, wireBytes) {
		t.Errorf("unknown avp did not round-trip. Got %v", rebuilt)
	}
}

func TestPacketRoundTrip(t *testing.T) {

	request := NewRadiusRequest(ACCESS_REQUEST)
	request.Add("User-Name", "aa:bb:cc:dd:ee:ff").
		Add("Calling-Station-Id", "AA-BB-CC-DD-EE-FF").
		Add("NAS-Identifier", "hotspot-lobby").
		Add("NAS-IP-Address", "10.0.0.1").
		Add("Service-Type", 10)

	requestBytes, err := request.ToBytes(secret, 100)
	if err != nil {
		t.Fatalf("error serializing packet: %v", err)
	}

	rebuilt, err := NewRadiusPacketFromBytes(requestBytes)
	if err != nil {
		t.Fatalf("error deserializing packet: %v", err)
	}

	if rebuilt.Code != ACCESS_REQUEST || rebuilt.Identifier != 100 {
		t.Errorf("header fields do not match")
	}
	if rebuilt.Authenticator != request.Authenticator {
		t.Errorf("authenticator does not match")
	}
	if len(rebuilt.AVPs) != len(request.AVPs) {
		t.Fatalf("got %d avps instead of %d", len(rebuilt.AVPs), len(request.AVPs))
	}
	// Attribute order is preserved
	for i := range request.AVPs {
		if rebuilt.AVPs[i].Name != request.AVPs[i].Name {
			t.Errorf("avp %d is %s instead of %s", i, rebuilt.AVPs[i].Name, request.AVPs[i].Name)
		}
	}
	if rebuilt.GetStringAVP("User-Name") != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("User-Name does not match")
	}
	if rebuilt.GetIntAVP("Service-Type") != 10 {
		t.Errorf("Service-Type does not match")
	}
	if !rebuilt.GetIPAddressAVP("NAS-IP-Address").Equal(net.ParseIP("10.0.0.1")) {
		t.Errorf("NAS-IP-Address does not match")
	}
}

func TestMalformedPackets(t *testing.T) {

	// Too short for a header
	if _, err := NewRadiusPacketFromBytes([]byte{1, 2, 0}); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("short buffer not reported as malformed: %v", err)
	}

	// Declared length bigger than the buffer
	packet := NewRadiusRequest(ACCESS_REQUEST)
	packet.Add("User-Name", "someone")
	packetBytes, _ := packet.ToBytes(secret, 1)
	if _, err := NewRadiusPacketFromBytes(packetBytes[:len(packetBytes)-2]); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("truncated packet not reported as malformed: %v", err)
	}

	// Declared length smaller than the buffer
	grown := append([]byte{}, packetBytes...)
	grown = append(grown, 0x00)
	if _, err := NewRadiusPacketFromBytes(grown); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("oversized buffer not reported as malformed: %v", err)
	}

	// Attribute with length smaller than 2
	bad := append([]byte{}, packetBytes...)
	bad[21] = 1 // length byte of the first attribute
	if _, err := NewRadiusPacketFromBytes(bad); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("bad attribute length not reported as malformed: %v", err)
	}

	// Attribute overrunning the packet boundary
	overrun := append([]byte{}, packetBytes...)
	overrun[21] = byte(len(overrun)) // first attribute claims the whole packet and more
	if _, err := NewRadiusPacketFromBytes(overrun); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("overrunning attribute not reported as malformed: %v", err)
	}
}

// The expected authenticators below were computed independently from the RFC 2865
// §3 definition: md5(code+id+length | request authenticator | attributes | secret)
func TestResponseAuthenticatorVector(t *testing.T) {

	expected := [16]byte{
		0x2b, 0x07, 0x43, 0xd0, 0xc0, 0xf7, 0x8f, 0x58,
		0x92, 0xea, 0x68, 0xde, 0x2d, 0xf4, 0x84, 0xeb,
	}

	// Access-Accept, identifier 42, Session-Timeout = 3600, length 26
	responseBytes := []byte{
		2, 42, 0, 26,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		27, 6, 0x00, 0x00, 0x0e, 0x10,
	}

	auth := ComputeResponseAuthenticator(responseBytes, authenticator, secret)
	if auth != expected {
		t.Errorf("response authenticator does not match the reference value. Got %v", auth)
	}

	// The authenticator field contents must not influence the result
	copy(responseBytes[4:20], authenticator[:])
	if ComputeResponseAuthenticator(responseBytes, authenticator, secret) != expected {
		t.Errorf("response authenticator depends on the placeholder field")
	}
}

func TestResponseSigning(t *testing.T) {

	request := NewRadiusRequest(ACCESS_REQUEST)
	request.Add("User-Name", "aa:bb:cc:dd:ee:ff")
	request.Authenticator = authenticator

	response := NewRadiusResponse(request, true)
	response.Identifier = 42
	response.Add("Session-Timeout", 3600)

	responseBytes, err := response.ToBytes(secret, 0)
	if err != nil {
		t.Fatalf("error serializing response: %v", err)
	}

	expected := [16]byte{
		0x2b, 0x07, 0x43, 0xd0, 0xc0, 0xf7, 0x8f, 0x58,
		0x92, 0xea, 0x68, 0xde, 0x2d, 0xf4, 0x84, 0xeb,
	}
	if response.Authenticator != expected {
		t.Errorf("signed response authenticator does not match the reference value. Got %v", response.Authenticator)
	}

	if !ValidateResponseAuthenticator(responseBytes, authenticator, secret) {
		t.Errorf("signed response does not validate")
	}
	if ValidateResponseAuthenticator(responseBytes, authenticator, "othersecret") {
		t.Errorf("response validates with the wrong secret")
	}
}

func TestAccountingRequestAuthenticator(t *testing.T) {

	expected := [16]byte{
		0x5e, 0x70, 0x73, 0x11, 0xe0, 0x5b, 0x10, 0xf9,
		0x85, 0xde, 0x58, 0x08, 0x2d, 0x78, 0xd6, 0x7f,
	}

	request := NewRadiusRequest(ACCOUNTING_REQUEST)
	request.Add("Acct-Status-Type", 1)

	requestBytes, err := request.ToBytes(secret, 7)
	if err != nil {
		t.Fatalf("error serializing accounting request: %v", err)
	}

	if request.Authenticator != expected {
		t.Errorf("accounting request authenticator does not match the reference value. Got %v", request.Authenticator)
	}
	if !ValidateRequestAuthenticator(requestBytes, secret) {
		t.Errorf("accounting request does not validate")
	}
	if ValidateRequestAuthenticator(requestBytes, "othersecret") {
		t.Errorf("accounting request validates with the wrong secret")
	}
}

func TestResponseBuilding(t *testing.T) {

	request := NewRadiusRequest(ACCESS_REQUEST)
	request.Identifier = 13
	request.Authenticator = authenticator

	accept := NewRadiusResponse(request, true)
	if accept.Code != ACCESS_ACCEPT || accept.Identifier != 13 || accept.Authenticator != authenticator {
		t.Errorf("bad accept response")
	}

	reject := NewRadiusResponse(request, false)
	if reject.Code != ACCESS_REJECT {
		t.Errorf("bad reject response")
	}
}
