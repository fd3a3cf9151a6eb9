package payment

import (
	"net/url"
	"strings"
)

const (
	defaultQREndpoint = "https://api.qrserver.com/v1/create-qr-code/"
	defaultQRSize     = "480x480"
)

// QRBuilder turns a payable URI into a scannable image reference by
// embedding it in a third-party rendering endpoint.
type QRBuilder struct {
	Endpoint string
	Size     string
}

// BuildQRURL percent-encodes the payload into the renderer's data
// parameter. A malformed endpoint degrades to the raw payload instead of
// failing the payment flow; the client can still render the text.
func (b QRBuilder) BuildQRURL(payload string) string {
	endpoint := strings.TrimSpace(b.Endpoint)
	if endpoint == "" {
		endpoint = defaultQREndpoint
	}
	size := strings.TrimSpace(b.Size)
	if size == "" {
		size = defaultQRSize
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return payload
	}
	q := url.Values{}
	q.Set("size", size)
	q.Set("data", payload)
	u.RawQuery = q.Encode()
	return u.String()
}
