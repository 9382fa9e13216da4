package artworkdb

import (
	"bytes"
	"crypto/md5" //nolint:gosec // dedup key only, not a security boundary.
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// DecodeSourceImage loads an embedded-art blob (JPEG/PNG) for conversion.
// No third-party image library appears anywhere in the example corpus, so
// stdlib image decoders are the grounded choice here.
func DecodeSourceImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("artworkdb: decoding source image: %w", err)
	}
	return img, nil
}

// ArtHash returns the MD5 hex digest used as the dedup key for an artwork
// blob (spec §3: "dedup key: MD5 of source image bytes").
func ArtHash(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// resizeNearest resizes src to exactly w×h using nearest-neighbor sampling.
// Album art is square by convention and resized without preserving aspect
// ratio, matching iTunes behaviour (spec §4.3).
func resizeNearest(src image.Image, w, h int) *image.RGBA {
	bounds := src.Bounds()
	sw, sh := bounds.Dx(), bounds.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := bounds.Min.Y + y*sh/h
		for x := 0; x < w; x++ {
			sx := bounds.Min.X + x*sw/w
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

// rgb888ToRGB565 packs an RGBA image's pixels into little-endian RGB565,
// padding each row with zero-pixels out to stride when stride > width
// (spec §4.3: "when stride > width, each row is zero-padded to the
// stride; total raster size = stride × height × 2 bytes").
func rgb888ToRGB565(img *image.RGBA, width, height, stride int) []byte {
	out := make([]byte, stride*height*2)
	for y := 0; y < height; y++ {
		rowOff := y * stride * 2
		for x := 0; x < width; x++ {
			r32, g32, b32, _ := img.At(x, y).RGBA()
			r := uint16(r32>>8) >> 3 // 5 bits
			g := uint16(g32>>8) >> 2 // 6 bits
			b := uint16(b32>>8) >> 3 // 5 bits
			px := (r << 11) | (g << 5) | b
			binary.LittleEndian.PutUint16(out[rowOff+x*2:], px)
		}
	}
	return out
}

// ConvertForFormat resizes src to format's dimensions and packs it to
// RGB565LE, returning the raster ready for an MHNI/ithmb write.
func ConvertForFormat(src image.Image, format FormatID) (Raster, error) {
	dims, ok := FormatDims[format]
	if !ok {
		return Raster{}, fmt.Errorf("artworkdb: unknown format id %d", format)
	}
	width, height := dims[0], dims[1]
	stride := width
	if s, ok := FormatStride[format]; ok {
		stride = s
	}
	resized := resizeNearest(src, width, height)
	data := rgb888ToRGB565(resized, width, height, stride)
	return Raster{Data: data, Width: width, Height: height, Size: len(data)}, nil
}
