package scenery

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/k1LoW/errors"
	"github.com/nfnt/resize"
)

type MIMEType string

const (
	MIMETypeImagePNG  MIMEType = "image/png"
	MIMETypeImageJPEG MIMEType = "image/jpeg"
)

const (
	// DefaultMaxDimension is the bound applied by LoadCached.
	DefaultMaxDimension = 1920

	PreviewMaxDimension = 640
	PreviewQuality      = 75
	ThumbnailQuality    = 75
	MainQuality         = 85
)

// Image is an immutable decoded bitmap. It is shared by pointer between cache slots and callers.
type Image struct {
	i      image.Image
	format string // format name reported by the decoder, empty for derived images
}

// NewImage wraps a decoded image.
func NewImage(i image.Image) *Image {
	return &Image{i: i}
}

func (i *Image) Image() image.Image {
	return i.i
}

// Format returns the source format name ("jpeg", "png", "gif") when the image was loaded from disk.
func (i *Image) Format() string {
	return i.format
}

func (i *Image) Width() int {
	if i == nil || i.i == nil {
		return 0
	}
	return i.i.Bounds().Dx()
}

func (i *Image) Height() int {
	if i == nil || i.i == nil {
		return 0
	}
	return i.i.Bounds().Dy()
}

// Load reads and decodes the image file at path.
func Load(path string) (_ *Image, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open image file %s: %w", ErrIO, path, err)
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image %s: %w", ErrDecode, path, err)
	}
	return &Image{i: img, format: format}, nil
}

// LoadCached returns the image at path from c, or loads it, bounds it to DefaultMaxDimension and stores it under the raw path.
func LoadCached(path string, c *DecodedCache) (*Image, error) {
	if i, ok := c.Get(path); ok {
		return i, nil
	}
	i, err := Load(path)
	if err != nil {
		return nil, err
	}
	i = Constrain(i, DefaultMaxDimension, DefaultMaxDimension)
	c.Add(path, i)
	return i, nil
}

// LoadCachedWithSize is like LoadCached but bounds the image to maxDimension and keys the entry by (path, maxDimension).
// A cached raw-path copy that is at least as large as the bound is downscaled instead of reading the file again.
// A non-positive bound behaves like LoadCached.
func LoadCachedWithSize(path string, c *DecodedCache, maxDimension int) (*Image, error) {
	if maxDimension <= 0 {
		return LoadCached(path, c)
	}
	key := cacheKey(path, maxDimension)
	if i, ok := c.Get(key); ok {
		return i, nil
	}
	var src *Image
	if full, ok := c.Peek(path); ok && covers(full, maxDimension) {
		src = full
	} else {
		var err error
		src, err = Load(path)
		if err != nil {
			return nil, err
		}
	}
	i := Constrain(src, maxDimension, maxDimension)
	c.Add(key, i)
	return i, nil
}

// covers reports whether the raw-path copy i can stand in for the source file at maxDimension.
// Raw-path copies are capped at DefaultMaxDimension, so anything smaller is the untouched source.
func covers(i *Image, maxDimension int) bool {
	if maxDimension <= 0 {
		return false
	}
	longest := max(i.Width(), i.Height())
	return longest >= maxDimension || longest < DefaultMaxDimension
}

// Constrain scales i down to fit within maxW x maxH keeping the aspect ratio.
// An image already within bounds is returned as is.
func Constrain(i *Image, maxW, maxH int) *Image {
	w, h := i.Width(), i.Height()
	if w <= maxW && h <= maxH {
		return i
	}
	nw, nh := fitDimensions(w, h, maxW, maxH)
	// bilinear is much faster than Lanczos and good enough for downscaling
	scaled := resize.Resize(uint(nw), uint(nh), i.i, resize.Bilinear)
	return &Image{i: scaled}
}

// fitDimensions computes the largest size within maxW x maxH with the aspect ratio of w x h.
// It is the integer form of ratio = min(maxW/w, maxH/h) with truncation toward zero.
func fitDimensions(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	var nw, nh int64
	if int64(maxW)*int64(h) <= int64(maxH)*int64(w) {
		nw = int64(maxW)
		nh = int64(h) * int64(maxW) / int64(w)
	} else {
		nh = int64(maxH)
		nw = int64(w) * int64(maxH) / int64(h)
	}
	return int(max(nw, 1)), int(max(nh, 1))
}

// EncodeJPEG encodes i as a JPEG data URI at the given quality (1-100).
func EncodeJPEG(i *Image, quality int) (_ string, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, i.i, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("%w: failed to encode jpeg: %w", ErrEncode, err)
	}
	return dataURI(MIMETypeImageJPEG, buf.Bytes()), nil
}

// EncodePNG encodes i as a PNG data URI.
func EncodePNG(i *Image) (_ string, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	var buf bytes.Buffer
	if err := png.Encode(&buf, i.i); err != nil {
		return "", fmt.Errorf("%w: failed to encode png: %w", ErrEncode, err)
	}
	return dataURI(MIMETypeImagePNG, buf.Bytes()), nil
}

// DecodeDataURI returns the MIME type and raw bytes of a base64 data URI.
func DecodeDataURI(s string) (_ MIMEType, _ []byte, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	data := []byte(s)
	if !bytes.HasPrefix(data, []byte(`data:`)) {
		return "", nil, fmt.Errorf("invalid data URI: missing data: prefix")
	}
	splitted := bytes.SplitN(bytes.TrimPrefix(data, []byte(`data:`)), []byte(";base64,"), 2)
	if len(splitted) != 2 {
		return "", nil, fmt.Errorf("invalid data URI: missing base64 payload")
	}
	decoded, err := base64.StdEncoding.DecodeString(string(splitted[1]))
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode base64 image data: %w", err)
	}
	return MIMEType(splitted[0]), decoded, nil
}

func dataURI(mimeType MIMEType, b []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, encodeBase64(b))
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
