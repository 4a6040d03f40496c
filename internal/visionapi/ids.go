package visionapi

import (
	"crypto/rand"
	"encoding/hex"
)

// randomID returns a short random hex string, used to mint watch-rule
// ids in the same "prefix_hex" shape replay/alertqueue ids use.
func randomID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(buf)
}
