package discover

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const onvifProbeTimeout = 2 * time.Second

// onvifClient issues minimal unauthenticated SOAP calls against a
// device's ONVIF device service. It only implements the calls needed
// to turn a WS-Discovery hit into an RTSP URL; cameras behind a
// password are reported with Found.RTSPURL empty, and Suggest falls
// back to an HTTP-MJPEG guess.
type onvifClient struct {
	baseURL string
	http    *http.Client
}

func newONVIFClient(xaddr string) *onvifClient {
	return &onvifClient{baseURL: xaddr, http: &http.Client{Timeout: onvifProbeTimeout}}
}

// Probe asks a discovered device for its manufacturer/model and a
// stream URI, filling in the returned Found. It never returns an
// error for an unreachable or unauthenticated device; it just leaves
// those fields empty.
func Probe(ctx context.Context, f Found) Found {
	xaddr := deviceServiceURL(f)
	if xaddr == "" {
		return f
	}
	cli := newONVIFClient(xaddr)

	if info, err := cli.getDeviceInformation(ctx); err == nil {
		f.Manufacturer = info.Manufacturer
		f.Model = info.Model
	}

	mediaURI, err := cli.getMediaXAddr(ctx)
	if err != nil || mediaURI == "" {
		mediaURI = xaddr
	}
	media := newONVIFClient(mediaURI)

	token, err := media.firstProfileToken(ctx)
	if err != nil || token == "" {
		return f
	}
	if uri, err := media.getStreamURI(ctx, token); err == nil {
		f.RTSPURL = uri
	}
	return f
}

func deviceServiceURL(f Found) string {
	for _, x := range f.XAddrs {
		if strings.HasPrefix(x, "http://") || strings.HasPrefix(x, "https://") {
			return x
		}
	}
	if f.IPAddress != "" {
		return fmt.Sprintf("http://%s/onvif/device_service", f.IPAddress)
	}
	return ""
}

type deviceInformation struct {
	Manufacturer string
	Model        string
}

func (c *onvifClient) getDeviceInformation(ctx context.Context) (deviceInformation, error) {
	resp, err := c.call(ctx, `<tds:GetDeviceInformation xmlns:tds="http://www.onvif.org/ver10/device/wsdl"/>`)
	if err != nil {
		return deviceInformation{}, err
	}
	var parsed struct {
		Body struct {
			GetDeviceInformationResponse deviceInformation `xml:"GetDeviceInformationResponse"`
		}
	}
	if err := xml.Unmarshal(resp, &parsed); err != nil {
		return deviceInformation{}, err
	}
	return parsed.Body.GetDeviceInformationResponse, nil
}

func (c *onvifClient) getMediaXAddr(ctx context.Context) (string, error) {
	body := `<tds:GetCapabilities xmlns:tds="http://www.onvif.org/ver10/device/wsdl"><tds:Category>Media</tds:Category></tds:GetCapabilities>`
	resp, err := c.call(ctx, body)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Body struct {
			GetCapabilitiesResponse struct {
				Capabilities struct {
					Media struct {
						XAddr string `xml:"XAddr"`
					} `xml:"Media"`
				} `xml:"Capabilities"`
			} `xml:"GetCapabilitiesResponse"`
		}
	}
	if err := xml.Unmarshal(resp, &parsed); err != nil {
		return "", err
	}
	return parsed.Body.GetCapabilitiesResponse.Capabilities.Media.XAddr, nil
}

func (c *onvifClient) firstProfileToken(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, `<trt:GetProfiles xmlns:trt="http://www.onvif.org/ver10/media/wsdl"/>`)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Body struct {
			GetProfilesResponse struct {
				Profiles []struct {
					Token string `xml:"token,attr"`
				} `xml:"Profiles"`
			} `xml:"GetProfilesResponse"`
		}
	}
	if err := xml.Unmarshal(resp, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Body.GetProfilesResponse.Profiles) == 0 {
		return "", fmt.Errorf("discover: no media profiles")
	}
	return parsed.Body.GetProfilesResponse.Profiles[0].Token, nil
}

func (c *onvifClient) getStreamURI(ctx context.Context, token string) (string, error) {
	body := fmt.Sprintf(`<trt:GetStreamUri xmlns:trt="http://www.onvif.org/ver10/media/wsdl">
		<trt:StreamSetup>
			<trt:Stream xmlns:tt="http://www.onvif.org/ver10/schema">tt:RTP-Unicast</trt:Stream>
			<trt:Transport xmlns:tt="http://www.onvif.org/ver10/schema"><tt:Protocol>tt:RTSP</tt:Protocol></trt:Transport>
		</trt:StreamSetup>
		<trt:ProfileToken>%s</trt:ProfileToken>
	</trt:GetStreamUri>`, token)

	resp, err := c.call(ctx, body)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Body struct {
			GetStreamUriResponse struct {
				MediaUri struct {
					Uri string `xml:"Uri"`
				} `xml:"MediaUri"`
			} `xml:"GetStreamUriResponse"`
		}
	}
	if err := xml.Unmarshal(resp, &parsed); err != nil {
		return "", err
	}
	return parsed.Body.GetStreamUriResponse.MediaUri.Uri, nil
}

func (c *onvifClient) call(ctx context.Context, bodyInner string) ([]byte, error) {
	envelope := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body>%s</s:Body></s:Envelope>`, bodyInner)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBufferString(envelope))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8; action=""`)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("discover: onvif call failed (%d): %s", resp.StatusCode, errBody)
	}
	return io.ReadAll(resp.Body)
}
