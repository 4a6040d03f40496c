package mdns_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/technosupport/physical-mcp/internal/mdns"
)

// TestAdvertiseAndShutdown exercises real multicast registration. Some
// sandboxed CI environments have no usable multicast interface, so a
// registration failure there is skipped rather than failed.
func TestAdvertiseAndShutdown(t *testing.T) {
	ad, err := mdns.Advertise(18090)
	if err != nil {
		t.Skipf("mdns registration unavailable in this environment: %v", err)
	}
	assert.NotNil(t, ad)
	ad.Shutdown()
}

func TestShutdownOnNilAdvertisementIsSafe(t *testing.T) {
	var ad *mdns.Advertisement
	assert.NotPanics(t, func() { ad.Shutdown() })
}
