// Package nasregistry keeps the in-memory mapping from the source IP address of a
// network access server to its shared secret, used to authenticate every inbound
// datagram. The registry is explicitly constructed and reloaded wholesale from the
// router records in the session store, so newly provisioned or deactivated routers
// converge without a restart.
package nasregistry

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/zonawifi/portero/core"
)

// Requests from IP addresses not present in the registry are dropped with no reply
var ErrUnknownNas = errors.New("unknown nas")

// Credentials and identity of one network access server
type NasClient struct {
	IPAddress string
	Secret    string
	Name      string
}

// Where the authoritative router list comes from
type Source interface {
	ListNasClients(ctx context.Context) ([]NasClient, error)
}

type Registry struct {
	source Source

	// Holds a map[string]NasClient. Replaced wholesale on reload, never mutated,
	// so concurrent readers see either the old or the new map but nothing partial
	clients atomic.Value
}

// Creates a registry with an empty client set. Call Reload before serving
func NewRegistry(source Source) *Registry {
	r := Registry{source: source}
	r.clients.Store(make(map[string]NasClient))
	return &r
}

// Replaces the whole IP to secret mapping from the source.
// On error the previous mapping stays in place
func (r *Registry) Reload(ctx context.Context) error {

	nasClients, err := r.source.ListNasClients(ctx)
	core.RecordRegistryReload(err)
	if err != nil {
		return err
	}

	clients := make(map[string]NasClient, len(nasClients))
	for _, nasClient := range nasClients {
		// Normalize, so that lookups by net.IP.String() always hit
		if ip := net.ParseIP(nasClient.IPAddress); ip != nil {
			nasClient.IPAddress = ip.String()
			clients[nasClient.IPAddress] = nasClient
		} else {
			core.GetLogger().Warnf("ignoring nas %s with bad ip address %s", nasClient.Name, nasClient.IPAddress)
		}
	}

	r.clients.Store(clients)
	core.GetLogger().Debugf("nas registry reloaded with %d clients", len(clients))

	return nil
}

// Gets the nas client with the specified origin IP address. O(1), executed on
// every inbound datagram
func (r *Registry) Find(ipAddress net.IP) (NasClient, error) {

	clients := r.clients.Load().(map[string]NasClient)
	if nasClient, found := clients[ipAddress.String()]; found {
		return nasClient, nil
	}

	return NasClient{}, ErrUnknownNas
}

// Reloads the registry on a fixed interval until the context is cancelled.
// Reload failures are logged and retried on the next tick
func (r *Registry) Run(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Reload(ctx); err != nil {
				core.GetLogger().Errorf("nas registry reload failed: %s", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
