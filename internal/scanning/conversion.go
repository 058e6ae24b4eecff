package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// sourceFormat is the kind of upload we have to turn into a PNG
type sourceFormat int

const (
	formatPNG sourceFormat = iota
	formatPDF
	formatHEIC
	formatOther
)

// detectFormat decides how to decode an upload from its MIME type and, for
// HEIC which phones often mislabel, its magic bytes
func detectFormat(data []byte, mimeType string) sourceFormat {
	switch {
	case mimeType == "application/pdf" || bytes.HasPrefix(data, []byte("%PDF")):
		return formatPDF
	case hasHEICBrand(data) || strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif"):
		return formatHEIC
	case mimeType == "image/png":
		return formatPNG
	default:
		return formatOther
	}
}

// hasHEICBrand checks for an ISO BMFF ftyp box with a HEIC/HEIF brand
func hasHEICBrand(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// decodeImage decodes a receipt upload to an image
func decodeImage(data []byte, format sourceFormat) (image.Image, error) {
	switch format {
	case formatPDF:
		doc, err := fitz.NewFromMemory(data)
		if err != nil {
			return nil, fmt.Errorf("opening PDF: %w", err)
		}
		defer doc.Close()
		// Grocery receipts are a single page
		img, err := doc.Image(0)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page: %w", err)
		}
		return img, nil
	case formatHEIC:
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	default:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") {
				return nil, fmt.Errorf("unsupported image format (use JPEG, PNG, GIF, HEIC or PDF): %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
		return img, nil
	}
}

// toPNG returns the upload as PNG bytes, converting when it is anything else
func toPNG(data []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	format := detectFormat(data, mimeType)
	if format == formatPNG {
		return data, nil
	}

	img, err := decodeImage(data, format)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
