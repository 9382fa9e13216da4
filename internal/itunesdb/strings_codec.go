package itunesdb

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// stringCodec is the shared UTF-16LE codec for MHOD string payloads,
// mirroring the encoding-flag idiom in the teacher's ITL hohm codec but
// fixed to little-endian since iTunesDB strings (unlike ITL's) are
// always UTF-16LE per spec §4.2.
var stringCodec = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeUTF16LE encodes s as UTF-16LE bytes for an MHOD string payload.
func encodeUTF16LE(s string) ([]byte, error) {
	enc := stringCodec.NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("itunesdb: encoding UTF-16LE: %w", err)
	}
	return out, nil
}

// decodeUTF16LE decodes a UTF-16LE MHOD string payload.
func decodeUTF16LE(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	dec := stringCodec.NewDecoder()
	out, err := dec.Bytes(data)
	if err != nil {
		return "", fmt.Errorf("itunesdb: decoding UTF-16LE: %w", err)
	}
	return string(out), nil
}

// encodeLocation builds the colon-separated device-relative location
// string, e.g. ":iPod_Control:Music:F00:ABCD.mp3".
func encodeLocation(folder, filename string) string {
	return ":iPod_Control:Music:" + folder + ":" + filename
}
