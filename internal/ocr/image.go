package ocr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	"patungan/internal/shared"
)

// DecodeDataURI extracts the raw image bytes from a base64 data URI, the
// payload produced by the camera capture boundary. Gallery uploads arrive as
// plain bytes and skip this path; downstream processing treats both the same.
func DecodeDataURI(uri string) ([]byte, error) {
	const marker = ";base64,"
	idx := strings.Index(uri, marker)
	if !strings.HasPrefix(uri, "data:") || idx < 0 {
		return nil, fmt.Errorf("%w: expected a base64 image data URI", shared.ErrValidation)
	}
	data, err := base64.StdEncoding.DecodeString(uri[idx+len(marker):])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 image payload", shared.ErrValidation)
	}
	return data, nil
}

// EnhanceForRecognition runs a capture through a contrast pipeline before
// upload so faint thermal-paper prints survive recognition: grayscale,
// contrast boost, sharpen, slight brightness lift and gamma correction.
// Images that fail to decode are returned unchanged; the recognition service
// gets to make its own judgement of the raw bytes.
func EnhanceForRecognition(image []byte) []byte {
	src, err := imaging.Decode(bytes.NewReader(image))
	if err != nil {
		return image
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.PNG); err != nil {
		return image
	}
	return out.Bytes()
}
