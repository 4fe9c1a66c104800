package qr

import (
	"errors"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	maxSize     = 1024
)

// QRGenerator encodes public event links.
type QRGenerator struct {
	baseURL string
}

func NewQRGenerator(baseURL string) *QRGenerator {
	return &QRGenerator{baseURL: strings.TrimRight(baseURL, "/")}
}

// EventURL is the absolute link to an event's detail page.
func (q *QRGenerator) EventURL(eventID string) string {
	return q.baseURL + "/events/" + url.PathEscape(eventID)
}

// GenerateEventQR returns a PNG of the event link. size is clamped to a sane range.
func (q *QRGenerator) GenerateEventQR(eventID string, size int) ([]byte, error) {
	if eventID == "" {
		return nil, errors.New("event id is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return qrcode.Encode(q.EventURL(eventID), qrcode.Medium, size)
}
