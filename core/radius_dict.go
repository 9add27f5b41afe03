package core

import (
	"fmt"
)

type RadiusType int

// Types of the attributes used in this server. The wire format only knows octets;
// the type drives how the value is parsed and rendered.
const (
	RadiusTypeNone RadiusType = iota
	RadiusTypeOctets
	RadiusTypeString
	RadiusTypeInteger
	RadiusTypeAddress
)

// One entry of the attribute dictionary
type RadiusAVPDictItem struct {
	Code       byte
	Name       string
	RadiusType RadiusType
}

// The dictionary is compiled in. This server uses a fixed, small set of standard
// attributes and treats everything else as opaque octets, which round-trip verbatim.
var radiusDictItems = []RadiusAVPDictItem{
	{Code: 1, Name: "User-Name", RadiusType: RadiusTypeString},
	{Code: 4, Name: "NAS-IP-Address", RadiusType: RadiusTypeAddress},
	{Code: 6, Name: "Service-Type", RadiusType: RadiusTypeInteger},
	{Code: 8, Name: "Framed-IP-Address", RadiusType: RadiusTypeAddress},
	{Code: 18, Name: "Reply-Message", RadiusType: RadiusTypeString},
	{Code: 27, Name: "Session-Timeout", RadiusType: RadiusTypeInteger},
	{Code: 31, Name: "Calling-Station-Id", RadiusType: RadiusTypeString},
	{Code: 32, Name: "NAS-Identifier", RadiusType: RadiusTypeString},
	{Code: 40, Name: "Acct-Status-Type", RadiusType: RadiusTypeInteger},
	{Code: 41, Name: "Acct-Delay-Time", RadiusType: RadiusTypeInteger},
	{Code: 44, Name: "Acct-Session-Id", RadiusType: RadiusTypeString},
	{Code: 46, Name: "Acct-Session-Time", RadiusType: RadiusTypeInteger},
	{Code: 61, Name: "NAS-Port-Type", RadiusType: RadiusTypeInteger},
}

var radiusDictByCode map[byte]*RadiusAVPDictItem
var radiusDictByName map[string]*RadiusAVPDictItem

func init() {
	radiusDictByCode = make(map[byte]*RadiusAVPDictItem, len(radiusDictItems))
	radiusDictByName = make(map[string]*RadiusAVPDictItem, len(radiusDictItems))
	for i := range radiusDictItems {
		radiusDictByCode[radiusDictItems[i].Code] = &radiusDictItems[i]
		radiusDictByName[radiusDictItems[i].Name] = &radiusDictItems[i]
	}
}

// Gets the dictionary item for the attribute code. Unknown codes get a synthetic
// item of octets type, so that unknown attributes are carried but not interpreted.
func GetRDictItemByCode(code byte) *RadiusAVPDictItem {
	if item, found := radiusDictByCode[code]; found {
		return item
	}
	return &RadiusAVPDictItem{
		Code:       code,
		Name:       fmt.Sprintf("Unknown-%d", code),
		RadiusType: RadiusTypeOctets,
	}
}

// Gets the dictionary item with the specified name
func GetRDictItemByName(name string) (*RadiusAVPDictItem, error) {
	if item, found := radiusDictByName[name]; found {
		return item, nil
	}
	return nil, fmt.Errorf("%s not found in the radius dictionary", name)
}
