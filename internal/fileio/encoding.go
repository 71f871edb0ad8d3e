package fileio

// encoding.go converts uploaded text files to UTF-8.
//
// Spreadsheet tools on Windows write a UTF-8 BOM, UTF-16 with a BOM, or
// Windows-1252. A BOM decides the encoding; otherwise valid UTF-8 passes
// through and anything else is read as Windows-1252.

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names reported by DecodeText.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-bom"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingWindows1252 = "windows-1252"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeText returns data as UTF-8 without a BOM, plus the detected encoding.
func DecodeText(data []byte) ([]byte, string, error) {
	switch {
	case len(data) == 0:
		return data, EncodingUTF8, nil

	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], EncodingUTF8BOM, nil

	case bytes.HasPrefix(data, bomUTF16LE):
		out, err := transformBytes(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), data)
		return out, EncodingUTF16LE, err

	case bytes.HasPrefix(data, bomUTF16BE):
		out, err := transformBytes(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder(), data)
		return out, EncodingUTF16BE, err

	case utf8.Valid(data):
		return data, EncodingUTF8, nil
	}

	out, err := transformBytes(charmap.Windows1252.NewDecoder(), data)
	return out, EncodingWindows1252, err
}

func transformBytes(t transform.Transformer, data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}
	return out, nil
}
