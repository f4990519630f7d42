// Package codec converts raw note images to a transport-safe base64 payload and back.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/studynotes/constants"
)

// ErrMalformedPayload is returned by Decode when the payload is not valid base64.
var ErrMalformedPayload = errors.New("malformed payload")

// RawImage is binary image content plus its declared MIME type.
type RawImage struct {
	Data     []byte
	MIMEType string
	Name     string // optional hint, e.g. the source filename
}

// EncodedPayload is the base64 form of a RawImage.
type EncodedPayload struct {
	Data     string
	MIMEType string
}

// Encode base64-encodes img. An empty MIME type is sniffed from the content.
// It never fails; empty data encodes to an empty payload.
func Encode(img RawImage) (EncodedPayload, error) {
	mt := strings.TrimSpace(img.MIMEType)
	if mt == "" {
		mt = SniffMIME(img.Data)
	}
	return EncodedPayload{
		Data:     base64.StdEncoding.EncodeToString(img.Data),
		MIMEType: mt,
	}, nil
}

// Decode reverses Encode. A "data:<mime>;base64," prefix is accepted; its MIME
// type is used when p carries none.
func Decode(p EncodedPayload) (RawImage, error) {
	s := strings.TrimSpace(p.Data)
	mt := strings.TrimSpace(p.MIMEType)
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return RawImage{}, fmt.Errorf("%w: data url without payload", ErrMalformedPayload)
		}
		meta := s[len("data:"):idx]
		if !strings.HasSuffix(meta, ";base64") {
			return RawImage{}, fmt.Errorf("%w: data url is not base64", ErrMalformedPayload)
		}
		if mt == "" {
			mt = strings.TrimSuffix(meta, ";base64")
		}
		s = s[idx+1:]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return RawImage{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return RawImage{Data: b, MIMEType: mt}, nil
}

// DataURL renders p as a data URL for providers that take image URLs.
func DataURL(p EncodedPayload) string {
	return "data:" + p.MIMEType + ";base64," + p.Data
}

// SniffMIME detects the image type from magic bytes.
func SniffMIME(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if len(b) >= 12 && string(b[4:8]) == "ftyp" {
		switch string(b[8:12]) {
		case "heic", "heix", "hevc", "hevx":
			return "image/heic"
		case "mif1", "msf1":
			return "image/heif"
		}
	}
	if mt := http.DetectContentType(b); strings.HasPrefix(mt, "image/") {
		return mt
	}
	return constants.FallbackMIME
}
