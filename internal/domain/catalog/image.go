package catalog

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // register decoders
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is the lossy encoder quality used for every stored item image.
const JPEGQuality = 70

// DecodeError is returned when the uploaded bytes are not a parseable image.
// The item record is left untouched.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image %q: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Image is an encoded picture ready to be persisted.
type Image struct {
	// Name is the original upload file name, preserved as is.
	Name   string
	Data   []byte
	Width  int
	Height int
}

// Compress re-encodes raw as a JPEG at JPEGQuality. Images that are not
// full-colour RGB are converted first, dropping alpha and palette data.
// Dimensions are preserved.
func Compress(raw []byte, name string) (*Image, error) {
	src, err := decode(raw, name)
	if err != nil {
		return nil, err
	}
	return encode(toRGB(src), name)
}

// Thumbnail re-encodes raw like Compress and, when wider than width, scales it
// down to width keeping the aspect ratio.
func Thumbnail(raw []byte, name string, width int) (*Image, error) {
	src, err := decode(raw, name)
	if err != nil {
		return nil, err
	}
	return thumbnail(toRGB(src), name, width)
}

func decode(raw []byte, name string) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	return img, nil
}

func thumbnail(img image.Image, name string, width int) (*Image, error) {
	if width > 0 && img.Bounds().Dx() > width {
		img = resize.Resize(uint(width), 0, img, resize.Lanczos3)
	}
	return encode(img, name)
}

func encode(img image.Image, name string) (*Image, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg %q: %w", name, err)
	}
	b := img.Bounds()
	return &Image{
		Name:   name,
		Data:   buf.Bytes(),
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// toRGB returns img unchanged when it already is a colour JPEG raster.
// Anything else is copied into an opaque RGBA raster; alpha is dropped
// rather than composited, so transparent pixels keep their colour.
func toRGB(img image.Image) image.Image {
	if ycc, ok := img.(*image.YCbCr); ok {
		return ycc
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	if isOpaque(img) {
		draw.Draw(dst, b, img, b.Min, draw.Src)
		return dst
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

func isOpaque(img image.Image) bool {
	o, ok := img.(interface{ Opaque() bool })
	return ok && o.Opaque()
}
