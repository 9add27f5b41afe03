package sessions

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/zonawifi/portero/sessionstore"
)

const testMac = "aa:bb:cc:dd:ee:ff"
const testRouterIP = "192.168.1.1"

func newTestFixture(t *testing.T) (*LifecycleManager, *Authorizer, int64) {
	t.Helper()

	store, err := sessionstore.Open("sqlite3", filepath.Join(t.TempDir(), "portero.db"), 1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateRouter(context.Background(), "lobby", testRouterIP, "secret1", true); err != nil {
		t.Fatal(err)
	}
	packageId, err := store.CreatePackage(context.Background(), "1 Hour", 60, true)
	if err != nil {
		t.Fatal(err)
	}

	return NewLifecycleManager(store), NewAuthorizer(store, 60), packageId
}

func TestAuthorizeWithoutSession(t *testing.T) {

	_, authorizer, _ := newTestFixture(t)

	decision, err := authorizer.Authorize(context.Background(), testMac, testRouterIP)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Granted {
		t.Errorf("device without session was granted")
	}
}

func TestAuthorizeAfterPayment(t *testing.T) {

	manager, authorizer, packageId := newTestFixture(t)

	sessionId, err := manager.CreateSession(context.Background(), "AA-BB-CC-DD-EE-FF", packageId, "pay1", testRouterIP)
	if err != nil {
		t.Fatal(err)
	}

	// The MAC is matched in any of its renditions
	decision, err := authorizer.Authorize(context.Background(), "aabb.ccdd.eeff", testRouterIP)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Granted {
		t.Fatalf("device with fresh session was not granted")
	}
	if decision.SessionId != sessionId {
		t.Errorf("granted session %d instead of %d", decision.SessionId, sessionId)
	}
	// Immediately after creation, remaining is about the package duration
	if decision.RemainingSeconds < 3590 || decision.RemainingSeconds > 3600 {
		t.Errorf("unexpected remaining seconds %d", decision.RemainingSeconds)
	}
}

func TestAuthorizeExpiredBeforeSweep(t *testing.T) {

	manager, authorizer, packageId := newTestFixture(t)

	if _, err := manager.CreateSession(context.Background(), testMac, packageId, "pay1", testRouterIP); err != nil {
		t.Fatal(err)
	}

	// Move the authorizer clock past the end time. The session row is still
	// active because no sweep has run
	authorizer.now = func() time.Time { return time.Now().Add(61 * time.Minute) }

	decision, err := authorizer.Authorize(context.Background(), testMac, testRouterIP)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Granted {
		t.Errorf("expired session was granted before the sweep ran")
	}
}

func TestAuthorizeAppliesFloor(t *testing.T) {

	manager, authorizer, packageId := newTestFixture(t)

	if _, err := manager.CreateSession(context.Background(), testMac, packageId, "pay1", testRouterIP); err != nil {
		t.Fatal(err)
	}

	// Ten seconds before the end time, the floor wins over the true remainder
	authorizer.now = func() time.Time { return time.Now().Add(60*time.Minute - 10*time.Second) }

	decision, err := authorizer.Authorize(context.Background(), testMac, testRouterIP)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Granted {
		t.Fatalf("session within its end time was not granted")
	}
	if decision.RemainingSeconds != 60 {
		t.Errorf("floor not applied. Got %d remaining seconds", decision.RemainingSeconds)
	}
}

func TestAuthorizeBadMac(t *testing.T) {

	_, authorizer, _ := newTestFixture(t)

	decision, err := authorizer.Authorize(context.Background(), "not-a-mac", testRouterIP)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Granted {
		t.Errorf("unparseable mac was granted")
	}
}

func TestCreateSessionValidation(t *testing.T) {

	manager, _, packageId := newTestFixture(t)

	if _, err := manager.CreateSession(context.Background(), "junk", packageId, "pay1", testRouterIP); err == nil {
		t.Errorf("session created for an unparseable mac")
	}

	if _, err := manager.CreateSession(context.Background(), testMac, packageId, "pay1", "10.9.9.9"); !errors.Is(err, sessionstore.ErrUnknownRouter) {
		t.Errorf("session created for an unprovisioned router: %v", err)
	}
}

func TestDisconnectDeniesImmediately(t *testing.T) {

	manager, authorizer, packageId := newTestFixture(t)

	if _, err := manager.CreateSession(context.Background(), testMac, packageId, "pay1", testRouterIP); err != nil {
		t.Fatal(err)
	}

	if err := manager.Disconnect(context.Background(), testMac); err != nil {
		t.Fatal(err)
	}

	decision, err := authorizer.Authorize(context.Background(), testMac, testRouterIP)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Granted {
		t.Errorf("disconnected device still granted")
	}

	// And the sweep with nothing due is a no-op
	expired, err := manager.SweepExpired(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if expired != 0 {
		t.Errorf("sweep expired %d sessions", expired)
	}
}
