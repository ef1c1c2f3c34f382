package model

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// ImageEncoding tags how a face image arrived from the API.
type ImageEncoding int

const (
	ImageNone ImageEncoding = iota
	ImageRawHex
	ImageDataURI
	ImageBase64
)

func (e ImageEncoding) String() string {
	switch e {
	case ImageRawHex:
		return "raw-hex"
	case ImageDataURI:
		return "data-uri"
	case ImageBase64:
		return "base64"
	}
	return "none"
}

// FaceImage holds a face picture whose encoding was decided once, when the
// API response was decoded.
type FaceImage struct {
	Encoding ImageEncoding
	// Data is the decoded image bytes for RawHex and Base64.
	Data []byte
	// URI is kept verbatim for DataURI.
	URI string
}

// ParseFaceImage classifies s. Unrecognisable input yields ImageNone.
func ParseFaceImage(s string) FaceImage {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return FaceImage{}
	case strings.HasPrefix(s, "data:image"):
		return FaceImage{Encoding: ImageDataURI, URI: s}
	case isHex(s):
		if b, err := hex.DecodeString(s); err == nil {
			return FaceImage{Encoding: ImageRawHex, Data: b}
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) > 0 {
		return FaceImage{Encoding: ImageBase64, Data: b}
	}
	return FaceImage{}
}

func isHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// Empty reports whether there is no usable image.
func (f FaceImage) Empty() bool {
	return f.Encoding == ImageNone
}

// DataURI renders the image for display.
func (f FaceImage) DataURI() string {
	switch f.Encoding {
	case ImageDataURI:
		return f.URI
	case ImageRawHex, ImageBase64:
		return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(f.Data)
	}
	return ""
}

func (f *FaceImage) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*f = FaceImage{}
		return nil
	}
	*f = ParseFaceImage(*s)
	return nil
}

func (f FaceImage) MarshalJSON() ([]byte, error) {
	if f.Empty() {
		return []byte("null"), nil
	}
	return json.Marshal(f.DataURI())
}
