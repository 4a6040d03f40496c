// Package discover finds cameras on the local network so they can be
// added as ambient-perception sources without the user typing in RTSP
// URLs by hand. It speaks WS-Discovery (the same multicast probe ONVIF
// cameras answer) and, where a device answers, asks it for its stream
// URI over a minimal ONVIF SOAP client.
package discover

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/physical-mcp/internal/camera"
)

const (
	wsDiscoveryAddr = "239.255.255.250:3702"
	maxPacketSize   = 4096

	// DefaultScanDuration is how long Scan listens for ProbeMatches
	// after sending its probe.
	DefaultScanDuration = 3 * time.Second
)

// Found is one camera-like device seen on the LAN.
type Found struct {
	IPAddress   string
	EndpointRef string
	XAddrs      []string
	Scopes      []string

	// Manufacturer/Model/RTSPURL are filled in by Probe, not Scan.
	Manufacturer string
	Model        string
	RTSPURL      string
}

// Suggest builds a camera.Config a caller can add to their camera list.
// It prefers the probed RTSP URL; with none, it falls back to an
// HTTP-MJPEG guess at the device's root, which is wrong for most ONVIF
// cameras but gives the user something to edit rather than nothing.
func (f Found) Suggest(id string) camera.Config {
	if f.RTSPURL != "" {
		return camera.Config{ID: id, Kind: camera.KindRTSP, URL: f.RTSPURL, TCPTransport: true}
	}
	return camera.Config{ID: id, Kind: camera.KindHTTPMJPEG, StreamURL: fmt.Sprintf("http://%s/video", f.IPAddress)}
}

type envelope struct {
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Envelope"`
	Body    body
}

type body struct {
	ProbeMatches probeMatches `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery ProbeMatches"`
}

type probeMatches struct {
	ProbeMatch []probeMatch `xml:"ProbeMatch"`
}

type probeMatch struct {
	EndpointReference endpointReference
	Scopes            string `xml:"Scopes"`
	XAddrs            string `xml:"XAddrs"`
}

type endpointReference struct {
	Address string `xml:"Address"`
}

// Scanner sends WS-Discovery probes and collects responses.
type Scanner struct {
	socket *net.UDPConn
}

// NewScanner opens the ephemeral UDP socket probes are sent from and
// replies arrive on.
func NewScanner() (*Scanner, error) {
	addr, err := net.ResolveUDPAddr("udp4", ":0")
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("discover: bind udp: %w", err)
	}
	return &Scanner{socket: conn}, nil
}

// Close releases the scanner's socket.
func (s *Scanner) Close() error {
	if s.socket == nil {
		return nil
	}
	return s.socket.Close()
}

// Scan broadcasts a WS-Discovery probe for network video transmitters
// and collects ProbeMatch responses for duration, deduping by
// endpoint reference (or first XAddr, when a device has none).
func (s *Scanner) Scan(ctx context.Context, duration time.Duration) ([]Found, error) {
	dst, err := net.ResolveUDPAddr("udp4", wsDiscoveryAddr)
	if err != nil {
		return nil, err
	}
	if _, err := s.socket.WriteToUDP([]byte(probeMessage(uuid.NewString())), dst); err != nil {
		return nil, fmt.Errorf("discover: send probe: %w", err)
	}

	found := make(map[string]Found)
	buf := make([]byte, maxPacketSize)
	deadline := time.Now().Add(duration)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		s.socket.SetReadDeadline(time.Now().Add(remaining))

		n, _, err := s.socket.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout") {
				break
			}
			break
		}
		dev, ok := parseProbeMatch(buf[:n])
		if !ok {
			continue
		}
		key := dev.EndpointRef
		if key == "" && len(dev.XAddrs) > 0 {
			key = dev.XAddrs[0]
		}
		if key == "" {
			continue
		}
		found[key] = dev
	}

	out := make([]Found, 0, len(found))
	for _, dev := range found {
		out = append(out, dev)
	}
	return out, nil
}

func probeMessage(msgID string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<e:Envelope xmlns:e="http://www.w3.org/2003/05/soap-envelope"
            xmlns:w="http://schemas.xmlsoap.org/ws/2005/04/discovery"
            xmlns:d="http://schemas.xmlsoap.org/ws/2005/04/discovery"
            xmlns:dn="http://www.onvif.org/ver10/network/wsdl">
    <e:Header>
        <w:MessageID>uuid:` + msgID + `</w:MessageID>
        <w:To e:mustUnderstand="true">urn:schemas-xmlsoap-org:ws:2005:04:discovery</w:To>
        <w:Action a:mustUnderstand="true">http://schemas.xmlsoap.org/ws/2005/04/discovery/Probe</w:Action>
    </e:Header>
    <e:Body>
        <d:Probe>
            <d:Types>dn:NetworkVideoTransmitter</d:Types>
        </d:Probe>
    </e:Body>
</e:Envelope>`
}

func parseProbeMatch(data []byte) (Found, bool) {
	var env envelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return Found{}, false
	}
	if len(env.Body.ProbeMatches.ProbeMatch) == 0 {
		return Found{}, false
	}

	match := env.Body.ProbeMatches.ProbeMatch[0]
	xaddrs := strings.Fields(match.XAddrs)

	return Found{
		EndpointRef: match.EndpointReference.Address,
		XAddrs:      xaddrs,
		Scopes:      strings.Fields(match.Scopes),
		IPAddress:   extractIPv4(xaddrs),
	}, true
}

func extractIPv4(xaddrs []string) string {
	for _, x := range xaddrs {
		s := strings.TrimPrefix(x, "http://")
		s = strings.TrimPrefix(s, "https://")

		host, _, err := net.SplitHostPort(s)
		if err != nil {
			host = s
			if idx := strings.Index(s, "/"); idx != -1 {
				host = s[:idx]
			}
		}
		if ip := net.ParseIP(host); ip != nil && ip.To4() != nil && !ip.IsLoopback() {
			return host
		}
	}
	return ""
}
