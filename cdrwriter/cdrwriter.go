// Package cdrwriter persists accounting packets as CDR files, rotating them on
// a fixed interval.
package cdrwriter

import (
	"github.com/zonawifi/portero/core"
)

// Holds the method to format one accounting packet as a CDR line
type CDRFormatter interface {
	GetRadiusCDRString(rp *core.RadiusPacket) string
}
