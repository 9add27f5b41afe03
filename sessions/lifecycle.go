package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/zonawifi/portero/core"
	"github.com/zonawifi/portero/sessionstore"
)

// Creates sessions when payments are confirmed, sweeps expired sessions on a
// fixed interval, and applies administrative disconnections
type LifecycleManager struct {
	store *sessionstore.Store
}

func NewLifecycleManager(store *sessionstore.Store) *LifecycleManager {
	return &LifecycleManager{store: store}
}

// To be called once per confirmed payment. Delegates to the store transaction,
// which deactivates any previous session of the device: the latest paid package
// always wins
func (m *LifecycleManager) CreateSession(ctx context.Context, macAddress string, packageId int64, paymentId string, routerIP string) (int64, error) {

	mac, err := NormalizeMac(macAddress)
	if err != nil {
		core.RecordSessionCreation("error")
		return 0, fmt.Errorf("cannot create session: %w", err)
	}

	sessionId, err := m.store.CreateSession(ctx, mac, packageId, paymentId, routerIP)
	if err != nil {
		core.RecordSessionCreation("error")
		return 0, err
	}

	core.RecordSessionCreation("success")
	core.GetLogger().Infof("created session %d for %s, package %d, payment %s", sessionId, mac, packageId, paymentId)
	return sessionId, nil
}

// Administrative forced termination of the device's active session. Same effect
// as the expiry sweep, applied immediately to one device
func (m *LifecycleManager) Disconnect(ctx context.Context, macAddress string) error {

	mac, err := NormalizeMac(macAddress)
	if err != nil {
		return fmt.Errorf("cannot disconnect: %w", err)
	}

	disconnected, err := m.store.Disconnect(ctx, mac)
	if err != nil {
		return err
	}

	core.GetLogger().Infof("disconnected %d session(s) for %s", disconnected, mac)
	return nil
}

// Deactivates all sessions whose end time has passed. Idempotent
func (m *LifecycleManager) SweepExpired(ctx context.Context) (int64, error) {
	expired, err := m.store.SweepExpired(ctx, time.Now())
	core.RecordSweep(err, expired)
	return expired, err
}

// Runs the expiry sweep on a fixed interval until the context is cancelled.
// Sweep failures are logged and retried on the next tick, never fatal
func (m *LifecycleManager) Run(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if expired, err := m.SweepExpired(ctx); err != nil {
				core.GetLogger().Errorf("session sweep failed: %s", err)
			} else if expired > 0 {
				core.GetLogger().Infof("session sweep expired %d session(s)", expired)
			}
		case <-ctx.Done():
			return
		}
	}
}
