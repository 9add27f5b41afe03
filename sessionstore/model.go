package sessionstore

import (
	"time"
)

// A client device, created lazily the first time a session is created for its
// MAC address. MAC addresses are stored in canonical form: lowercase,
// colon-separated octets
type Device struct {
	Id         int64
	MacAddress string
	LastSeen   time.Time
}

// A purchasable time-boxed package. Immutable once referenced by a session:
// duration changes only affect future purchases
type Package struct {
	Id              int64
	Name            string
	DurationMinutes int
	Active          bool
}

// A provisioned router / access point. The IP address and shared secret feed the
// NAS registry; both are owned by the admin surface and read-only here
type Router struct {
	Id           int64
	Name         string
	IPAddress    string
	SharedSecret string
	Active       bool
}

// One paid grant of network access for one device. Never deleted: deactivated by
// the expiry sweep or an administrative disconnect, and kept for audit
type Session struct {
	Id        int64
	DeviceId  int64
	PackageId int64
	PaymentId string
	RouterId  int64
	StartTime time.Time
	EndTime   time.Time
	Active    bool
}
