// Package mdns advertises the daemon's dashboard on the LAN so clients
// can find it without knowing its IP address. It registers a single
// DNS-SD service record (_physical-mcp._tcp.local.) and unregisters it
// cleanly on shutdown.
package mdns

import (
	"fmt"

	"github.com/libp2p/zeroconf/v2"

	"github.com/technosupport/physical-mcp/internal/obslog"
)

const (
	serviceType  = "_physical-mcp._tcp"
	instanceName = "physical-mcp"
	domain       = "local."
)

// Advertisement is a running LAN service record. Shutdown is idempotent
// and safe to call even if advertising never started.
type Advertisement struct {
	server *zeroconf.Server
	log    *obslog.Logger
}

// Advertise registers the daemon's dashboard on the LAN at the given
// port, with a TXT record pointing clients at the dashboard path.
// zeroconf picks the host's non-loopback IPv4/IPv6 addresses itself;
// callers on a host with no usable LAN interface get an error back and
// should treat mDNS as unavailable rather than fatal, per spec.
func Advertise(port int) (*Advertisement, error) {
	server, err := zeroconf.Register(
		instanceName,
		serviceType,
		domain,
		port,
		[]string{"path=/dashboard"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("mdns: register %s.%s: %w", instanceName, serviceType, err)
	}

	log := obslog.New("mdns")
	log.Printf("advertising %s.%s%s on port %d", instanceName, serviceType, domain, port)
	return &Advertisement{server: server, log: log}, nil
}

// Shutdown unregisters the service record. It does not take a context:
// zeroconf's Shutdown() sends a best-effort goodbye packet and returns
// immediately, so callers fold it into the shutdown sequence without a
// separate timeout.
func (a *Advertisement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.log.Printf("advertisement withdrawn")
}
