package imaging

import (
	"bytes"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	DefaultMaxEdge = 1280
	DefaultQuality = 75
)

// Compressor downsizes receipt photos and re-encodes them as JPEG
type Compressor struct {
	MaxEdge int
	Quality int
}

// New returns a Compressor with the given long edge limit
func New(maxEdge int) *Compressor {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	return &Compressor{MaxEdge: maxEdge, Quality: DefaultQuality}
}

// Compress returns a smaller JPEG of data, or data itself when it is not an
// image we can decode or the result would not be smaller. It never panics.
func (c *Compressor) Compress(data []byte) (out []byte) {
	out = data
	defer func() {
		if r := recover(); r != nil {
			out = data
		}
	}()

	switch http.DetectContentType(data) {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
	default:
		return data
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		decoded, webpErr := webp.Decode(bytes.NewReader(data))
		if webpErr != nil {
			return data
		}
		img = decoded
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return data
	}
	tw, th := fit(w, h, c.maxEdge())

	// JPEG has no alpha, flatten onto white
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	stddraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, stddraw.Src)
	if tw == w && th == h {
		stddraw.Draw(dst, dst.Bounds(), img, bounds.Min, stddraw.Over)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: c.quality()}); err != nil {
		return data
	}
	if buf.Len() >= len(data) {
		return data
	}
	return buf.Bytes()
}

func (c *Compressor) maxEdge() int {
	if c.MaxEdge <= 0 {
		return DefaultMaxEdge
	}
	return c.MaxEdge
}

func (c *Compressor) quality() int {
	if c.Quality <= 0 || c.Quality > 100 {
		return DefaultQuality
	}
	return c.Quality
}

// fit scales w x h so the long edge is at most limit, keeping the aspect ratio
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}
