package core

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
)

// Represents the contents of a Radius Attribute-Value pair
type RadiusAVP struct {
	Code byte
	Name string

	// May be a []byte, string, int64 or net.IP.
	// If set to any other type, an error will be reported on serialization.
	Value interface{}

	// Dictionary item corresponding to this attribute
	DictItem *RadiusAVPDictItem
}

// AVP in the wire is
//    code: 1 byte
//    length: 1 byte, including the code and length bytes themselves
//    value: length - 2 bytes

// Builds a radius AVP read from the specified reader.
// Returns the number of bytes read
func (avp *RadiusAVP) FromReader(reader io.Reader) (n int64, err error) {

	var avpLen byte

	currentIndex := int64(0)

	// Get Code
	if err := binary.Read(reader, binary.BigEndian, &avp.Code); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	currentIndex += 1

	// Get Length
	if err := binary.Read(reader, binary.BigEndian, &avpLen); err != nil {
		return currentIndex, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	currentIndex += 1

	// The length includes the two header bytes
	if avpLen < 2 {
		return currentIndex, fmt.Errorf("%w: avp length %d is less than 2", ErrMalformedPacket, avpLen)
	}
	dataLen := int(avpLen) - 2

	// Get the relevant info from the dictionary. Unknown codes get an octets item
	avp.DictItem = GetRDictItemByCode(avp.Code)
	avp.Name = avp.DictItem.Name

	// Parse according to type
	switch avp.DictItem.RadiusType {
	case RadiusTypeNone, RadiusTypeOctets, RadiusTypeString:

		avpBytes := make([]byte, dataLen)
		if _, err := io.ReadFull(reader, avpBytes); err != nil {
			return currentIndex, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
		}
		currentIndex += int64(dataLen)

		if avp.DictItem.RadiusType == RadiusTypeString {
			avp.Value = string(avpBytes)
		} else {
			avp.Value = avpBytes
		}

		return currentIndex, nil

	case RadiusTypeInteger:
		if dataLen != 4 {
			return currentIndex, fmt.Errorf("%w: integer type is not 4 bytes long", ErrMalformedPacket)
		}
		var value uint32
		if err := binary.Read(reader, binary.BigEndian, &value); err != nil {
			return currentIndex, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
		}
		currentIndex += 4
		avp.Value = int64(value)

		return currentIndex, nil

	case RadiusTypeAddress:
		if dataLen != 4 {
			return currentIndex, fmt.Errorf("%w: address type is not 4 bytes long", ErrMalformedPacket)
		}
		avpBytes := make([]byte, 4)
		if _, err := io.ReadFull(reader, avpBytes); err != nil {
			return currentIndex, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
		}
		currentIndex += 4
		avp.Value = net.IP(avpBytes)

		return currentIndex, nil
	}

	return currentIndex, fmt.Errorf("%w: unknown type %d", ErrMalformedPacket, avp.DictItem.RadiusType)
}

// Writes the AVP to the specified writer.
// Returns the number of bytes written
func (avp *RadiusAVP) ToWriter(writer io.Writer) (int64, error) {

	var bytesWritten int = 0
	var err error

	// Write Code
	if err = binary.Write(writer, binary.BigEndian, avp.Code); err != nil {
		return int64(bytesWritten), err
	}
	bytesWritten += 1

	// Write Length
	avpLen := avp.Len()
	if avpLen > 255 {
		return int64(bytesWritten), fmt.Errorf("size of AVP %s is bigger than 255 bytes", avp.Name)
	}
	if err = binary.Write(writer, binary.BigEndian, byte(avpLen)); err != nil {
		return int64(bytesWritten), err
	}
	bytesWritten += 1

	// Write the value according to type
	switch avp.DictItem.RadiusType {
	case RadiusTypeNone, RadiusTypeOctets:
		var octetsValue, ok = avp.Value.([]byte)
		if !ok {
			return int64(bytesWritten), fmt.Errorf("avp %s should be []byte", avp.Name)
		}
		if err = binary.Write(writer, binary.BigEndian, octetsValue); err != nil {
			return int64(bytesWritten), err
		}
		bytesWritten += len(octetsValue)

	case RadiusTypeString:
		var stringValue, ok = avp.Value.(string)
		if !ok {
			return int64(bytesWritten), fmt.Errorf("avp %s should be string", avp.Name)
		}
		if err = binary.Write(writer, binary.BigEndian, []byte(stringValue)); err != nil {
			return int64(bytesWritten), err
		}
		bytesWritten += len(stringValue)

	case RadiusTypeInteger:
		var intValue, ok = avp.Value.(int64)
		if !ok {
			return int64(bytesWritten), fmt.Errorf("avp %s should be int64", avp.Name)
		}
		if err = binary.Write(writer, binary.BigEndian, uint32(intValue)); err != nil {
			return int64(bytesWritten), err
		}
		bytesWritten += 4

	case RadiusTypeAddress:
		var ipValue, ok = avp.Value.(net.IP)
		if !ok {
			return int64(bytesWritten), fmt.Errorf("avp %s should be net.IP", avp.Name)
		}
		ipv4 := ipValue.To4()
		if ipv4 == nil {
			return int64(bytesWritten), fmt.Errorf("avp %s is not an IPv4 address", avp.Name)
		}
		if err = binary.Write(writer, binary.BigEndian, []byte(ipv4)); err != nil {
			return int64(bytesWritten), err
		}
		bytesWritten += 4

	default:
		return int64(bytesWritten), fmt.Errorf("avp %s has unknown type %d", avp.Name, avp.DictItem.RadiusType)
	}

	// Sanity check
	if bytesWritten != avpLen {
		panic(fmt.Sprintf("written %d bytes for avp %s instead of %d", bytesWritten, avp.Name, avpLen))
	}

	return int64(bytesWritten), nil
}

// Builds a radius AVP from a byte slice
func RadiusAVPFromBytes(avpBytes []byte) (RadiusAVP, int64, error) {
	avp := RadiusAVP{}
	n, err := avp.FromReader(bytes.NewReader(avpBytes))
	return avp, n, err
}

// Returns a byte slice with the contents of the AVP
func (avp *RadiusAVP) ToBytes() (data []byte, err error) {
	var buffer bytes.Buffer
	if _, err := avp.ToWriter(&buffer); err != nil {
		return buffer.Bytes(), err
	}
	return buffer.Bytes(), nil
}

// Size of the AVP in the wire, including the two header bytes
func (avp *RadiusAVP) Len() int {
	var dataSize = 0

	switch avp.DictItem.RadiusType {
	case RadiusTypeNone, RadiusTypeOctets:
		dataSize = len(avp.Value.([]byte))

	case RadiusTypeString:
		dataSize = len(avp.Value.(string))

	case RadiusTypeInteger, RadiusTypeAddress:
		dataSize = 4
	}

	return dataSize + 2
}

// Returns the value of the AVP as a string
func (avp *RadiusAVP) GetString() string {

	switch avp.DictItem.RadiusType {
	case RadiusTypeNone, RadiusTypeOctets:
		if octetsValue, ok := avp.Value.([]byte); ok {
			return hex.EncodeToString(octetsValue)
		}

	case RadiusTypeString:
		if stringValue, ok := avp.Value.(string); ok {
			return stringValue
		}

	case RadiusTypeInteger:
		if intValue, ok := avp.Value.(int64); ok {
			return strconv.FormatInt(intValue, 10)
		}

	case RadiusTypeAddress:
		if ipValue, ok := avp.Value.(net.IP); ok {
			return ipValue.String()
		}
	}

	return ""
}

// Returns the value of the AVP as a number. Zero if not an integer attribute
func (avp *RadiusAVP) GetInt() int64 {
	if intValue, ok := avp.Value.(int64); ok {
		return intValue
	}
	return 0
}

// Returns the value of the AVP as an IP address. Empty value if not an address attribute
func (avp *RadiusAVP) GetIPAddress() net.IP {
	if ipValue, ok := avp.Value.(net.IP); ok {
		return ipValue
	}
	return net.IP{}
}

// Returns the value of the AVP as octets. Nil if not an octets attribute
func (avp *RadiusAVP) GetOctets() []byte {
	if octetsValue, ok := avp.Value.([]byte); ok {
		return octetsValue
	}
	return nil
}

// Creates a new AVP with the specified name and value, validated and coerced
// against the dictionary type
func NewRadiusAVP(name string, value interface{}) (*RadiusAVP, error) {

	dictItem, err := GetRDictItemByName(name)
	if err != nil {
		return nil, err
	}

	avp := RadiusAVP{
		Code:     dictItem.Code,
		Name:     dictItem.Name,
		DictItem: dictItem,
	}

	switch dictItem.RadiusType {
	case RadiusTypeNone, RadiusTypeOctets:
		switch v := value.(type) {
		case []byte:
			avp.Value = v
		case string:
			// Strings for octets attributes are interpreted as hex
			octets, err := hex.DecodeString(v)
			if err != nil {
				return nil, fmt.Errorf("bad octets value for %s: %v", name, err)
			}
			avp.Value = octets
		default:
			return nil, fmt.Errorf("bad value type %T for octets avp %s", value, name)
		}

	case RadiusTypeString:
		stringValue, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("bad value type %T for string avp %s", value, name)
		}
		avp.Value = stringValue

	case RadiusTypeInteger:
		intValue, err := toInt64(value)
		if err != nil {
			return nil, fmt.Errorf("bad value for integer avp %s: %v", name, err)
		}
		avp.Value = intValue

	case RadiusTypeAddress:
		switch v := value.(type) {
		case net.IP:
			avp.Value = v
		case string:
			addressValue := net.ParseIP(v)
			if addressValue == nil {
				return nil, fmt.Errorf("bad address value for %s: %s", name, v)
			}
			avp.Value = addressValue
		default:
			return nil, fmt.Errorf("bad value type %T for address avp %s", value, name)
		}
	}

	return &avp, nil
}

// Encodes the AVP as name and string value, mostly for logs and CDR
func (avp RadiusAVP) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{avp.Name: avp.GetString()})
}
