package handler

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/zonawifi/portero/core"
	"github.com/zonawifi/portero/sessions"
	"github.com/zonawifi/portero/sessionstore"
)

const testMac = "aa:bb:cc:dd:ee:ff"
const testRouterIP = "192.168.1.1"

type capturingCDRWriter struct {
	packets []*core.RadiusPacket
}

func (w *capturingCDRWriter) WriteRadiusCDR(rp *core.RadiusPacket) {
	w.packets = append(w.packets, rp)
}

// Builds a handler over a seeded store, plus the lifecycle manager to create
// sessions with and the capturing writer to inspect accounting
func newTestHandler(t *testing.T) (*RadiusHandler, *sessions.LifecycleManager, *capturingCDRWriter, int64) {
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

	writer := &capturingCDRWriter{}
	radiusHandler := NewRadiusHandler(sessions.NewAuthorizer(store, 60), writer)

	return radiusHandler, sessions.NewLifecycleManager(store), writer, packageId
}

func TestAccessRequestGranted(t *testing.T) {

	radiusHandler, manager, _, packageId := newTestHandler(t)

	if _, err := manager.CreateSession(context.Background(), testMac, packageId, "pay1", testRouterIP); err != nil {
		t.Fatal(err)
	}

	request := core.NewRadiusRequest(core.ACCESS_REQUEST).Add("User-Name", testMac)
	response, err := radiusHandler.Handle(request, net.ParseIP(testRouterIP))
	if err != nil {
		t.Fatal(err)
	}
	if response.Code != core.ACCESS_ACCEPT {
		t.Fatalf("got code %d instead of Access-Accept", response.Code)
	}
	sessionTimeout := response.GetIntAVP("Session-Timeout")
	if sessionTimeout < 3590 || sessionTimeout > 3600 {
		t.Errorf("unexpected Session-Timeout %d", sessionTimeout)
	}
}

func TestAccessRequestCallingStationIdFallback(t *testing.T) {

	radiusHandler, manager, _, packageId := newTestHandler(t)

	if _, err := manager.CreateSession(context.Background(), testMac, packageId, "pay1", testRouterIP); err != nil {
		t.Fatal(err)
	}

	request := core.NewRadiusRequest(core.ACCESS_REQUEST).Add("Calling-Station-Id", "AA-BB-CC-DD-EE-FF")
	response, err := radiusHandler.Handle(request, net.ParseIP(testRouterIP))
	if err != nil {
		t.Fatal(err)
	}
	if response.Code != core.ACCESS_ACCEPT {
		t.Errorf("got code %d instead of Access-Accept", response.Code)
	}
}

func TestAccessRequestDenied(t *testing.T) {

	radiusHandler, _, _, _ := newTestHandler(t)

	request := core.NewRadiusRequest(core.ACCESS_REQUEST).Add("User-Name", testMac)
	response, err := radiusHandler.Handle(request, net.ParseIP(testRouterIP))
	if err != nil {
		t.Fatal(err)
	}
	if response.Code != core.ACCESS_REJECT {
		t.Fatalf("got code %d instead of Access-Reject", response.Code)
	}
	if response.GetStringAVP("Reply-Message") != "no active session" {
		t.Errorf("unexpected Reply-Message %q", response.GetStringAVP("Reply-Message"))
	}
}

func TestAccessRequestWithoutIdentifier(t *testing.T) {

	radiusHandler, _, _, _ := newTestHandler(t)

	request := core.NewRadiusRequest(core.ACCESS_REQUEST)
	response, err := radiusHandler.Handle(request, net.ParseIP(testRouterIP))
	if err != nil {
		t.Fatal(err)
	}
	if response.Code != core.ACCESS_REJECT {
		t.Fatalf("got code %d instead of Access-Reject", response.Code)
	}
	if response.GetStringAVP("Reply-Message") != "no device identifier" {
		t.Errorf("unexpected Reply-Message %q", response.GetStringAVP("Reply-Message"))
	}
}

func TestAccountingRequest(t *testing.T) {

	radiusHandler, _, writer, _ := newTestHandler(t)

	request := core.NewRadiusRequest(core.ACCOUNTING_REQUEST).
		Add("User-Name", testMac).
		Add("Acct-Status-Type", 1).
		Add("Acct-Session-Id", "session-1")

	response, err := radiusHandler.Handle(request, net.ParseIP(testRouterIP))
	if err != nil {
		t.Fatal(err)
	}
	if response.Code != core.ACCOUNTING_RESPONSE {
		t.Fatalf("got code %d instead of Accounting-Response", response.Code)
	}
	if len(writer.packets) != 1 {
		t.Fatalf("wrote %d cdr instead of 1", len(writer.packets))
	}
	if writer.packets[0].GetStringAVP("Acct-Session-Id") != "session-1" {
		t.Errorf("cdr does not carry the accounting session id")
	}
}

func TestUnhandledCode(t *testing.T) {

	radiusHandler, _, _, _ := newTestHandler(t)

	request := core.NewRadiusRequest(core.ACCESS_ACCEPT)
	if _, err := radiusHandler.Handle(request, net.ParseIP(testRouterIP)); err == nil {
		t.Errorf("no error handling a non-request code")
	}
}
