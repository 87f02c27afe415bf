package gemini

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
)

// Seed derives a short deterministic hex seed from parts.
func Seed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// RenderSquarePNG paints a size x size striped placeholder whose colours are
// derived from seed.
func RenderSquarePNG(size int, seed string) ([]byte, error) {
	if size <= 0 {
		size = 1024
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripe := max(32, size/12)
	for y := 0; y < size; y += stripe * 2 {
		rect := image.Rect(0, y, size, min(size, y+stripe))
		draw.Draw(img, rect, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < size; x += max(16, size/32) {
		for y := 0; y < size && x+y < size; y++ {
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPlaceholderMP4 returns an ftyp box followed by a free box carrying the
// prompt, enough for content sniffers to treat the blob as video/mp4.
func RenderPlaceholderMP4(seed, prompt string, seconds int) []byte {
	var buf bytes.Buffer
	brands := []string{"isom", "iso2", "mp41"}
	ftypSize := uint32(8 + 4 + 4 + 4*len(brands))
	_ = binary.Write(&buf, binary.BigEndian, ftypSize)
	buf.WriteString("ftyp")
	buf.WriteString("isom")
	_ = binary.Write(&buf, binary.BigEndian, uint32(512))
	for _, b := range brands {
		buf.WriteString(b)
	}

	note := strings.Join([]string{
		"synthetic video placeholder",
		"seed: " + seed,
		"duration: " + strconv.Itoa(seconds) + "s",
		"prompt: " + strings.TrimSpace(prompt),
	}, "\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(8+len(note)))
	buf.WriteString("free")
	buf.WriteString(note)
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = (seed + "000000")[:6]
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{
		R: parseHexByte(segment[0:2]),
		G: parseHexByte(segment[2:4]),
		B: parseHexByte(segment[4:6]),
		A: 255,
	}
}

func parseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}
