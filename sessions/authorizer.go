// Package sessions implements the admission decisions and the lifecycle of the
// paid sessions: authorization of devices asking for access, session creation on
// payment confirmation, the periodic sweep of expired sessions, and
// administrative disconnections.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/zonawifi/portero/core"
	"github.com/zonawifi/portero/sessionstore"
)

// Outcome of an authorization request
type Decision struct {
	Granted          bool
	RemainingSeconds int64
	SessionId        int64
}

// Decides whether a device may pass traffic and for how long. Read-only and
// side-effect free: it never creates or mutates sessions
type Authorizer struct {
	store *sessionstore.Store
	floor time.Duration

	// Injectable for tests
	now func() time.Time
}

func NewAuthorizer(store *sessionstore.Store, floorSeconds int) *Authorizer {
	return &Authorizer{
		store: store,
		floor: time.Duration(floorSeconds) * time.Second,
		now:   time.Now,
	}
}

// Decides access for the device with the specified MAC address, as requested by
// the NAS with the specified IP address.
//
// A device without a session, or whose session end time has passed, is not
// granted, even if the expiry sweep has not deactivated the session yet: the end
// time is always re-checked here, because the sweep runs on a coarser interval
// than authorization requests.
//
// An unparseable MAC or an unknown device is an ordinary rejection, not an
// error. Errors are returned only for store failures, and the caller is expected
// to fail closed
func (a *Authorizer) Authorize(ctx context.Context, macAddress string, nasIPAddress string) (Decision, error) {

	mac, err := NormalizeMac(macAddress)
	if err != nil {
		core.GetLogger().Debugf("rejecting unparseable mac %s from nas %s", macAddress, nasIPAddress)
		core.RecordAuthorization(false)
		return Decision{}, nil
	}

	session, err := a.store.FindActiveSession(ctx, mac)
	if errors.Is(err, sessionstore.ErrNoActiveSession) {
		core.RecordAuthorization(false)
		return Decision{}, nil
	} else if err != nil {
		return Decision{}, err
	}

	remaining := session.EndTime.Sub(a.now())
	if remaining <= 0 {
		// Expired but not swept yet
		core.RecordAuthorization(false)
		return Decision{}, nil
	}

	// Do not grant a technically-true but practically useless handful of seconds
	if remaining < a.floor {
		remaining = a.floor
	}

	core.RecordAuthorization(true)
	return Decision{
		Granted:          true,
		RemainingSeconds: int64(remaining / time.Second),
		SessionId:        session.Id,
	}, nil
}
