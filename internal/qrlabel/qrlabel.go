package qrlabel

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

// MaxSize bounds the edge length a caller may request.
const MaxSize = 1024

var ErrNoBaseURL = errors.New("public base url not configured")

// URL is the front-end deep link for one extinguisher.
func URL(baseURL, id string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", ErrNoBaseURL
	}
	return base + "/#/extinguishers/" + url.PathEscape(id), nil
}

// PNG renders a QR code for the extinguisher's deep link. size is clamped
// to [64, MaxSize]; zero means DefaultSize.
func PNG(baseURL, id string, size int) ([]byte, error) {
	link, err := URL(baseURL, id)
	if err != nil {
		return nil, err
	}
	switch {
	case size == 0:
		size = DefaultSize
	case size < 64:
		size = 64
	case size > MaxSize:
		size = MaxSize
	}
	body, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr for %s: %w", id, err)
	}
	return body, nil
}
