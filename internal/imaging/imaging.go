// Package imaging loads user images and turns them into the channel-first
// float tensors the network consumes.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const Channels = 3

var (
	// ErrUnreadable marks a path that could not be opened as an image: the
	// file is missing, inaccessible, or not in any registered format.
	ErrUnreadable = errors.New("image file unreadable")
	// ErrDecode marks a file in a known format whose data did not decode.
	ErrDecode = errors.New("image decode failed")
)

var interpolations = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

// ParseInterpolation resolves an interpolation name. The empty string means
// nearest neighbour.
func ParseInterpolation(name string) (resize.InterpolationFunction, error) {
	if name == "" {
		return resize.NearestNeighbor, nil
	}
	fn, ok := interpolations[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown interpolation %q (want one of %s)", name, strings.Join(InterpolationNames(), ", "))
	}
	return fn, nil
}

func InterpolationNames() []string {
	names := make([]string, 0, len(interpolations))
	for n := range interpolations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open reads and decodes the image at path. It returns the decoded image and
// the format name.
func Open(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("%w: %s is a directory", ErrUnreadable, path)
	}

	img, format, err := image.Decode(f)
	if errors.Is(err, image.ErrFormat) {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return img, format, nil
}

// Resize scales img to size x size, ignoring aspect ratio.
func Resize(img image.Image, size int, interp resize.InterpolationFunction) image.Image {
	return resize.Resize(uint(size), uint(size), img, interp)
}

// ToTensor lays the image out as (1, 3, H, W): the channel dimension before
// the spatial ones plus a leading batch dimension. Each 8-bit channel value
// is multiplied by scale. Alpha is dropped.
func ToTensor(img image.Image, scale float32) ([]float32, []int64) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	data := make([]float32, Channels*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)

			i := y*width + x
			data[i] = float32(c.R) * scale
			data[plane+i] = float32(c.G) * scale
			data[2*plane+i] = float32(c.B) * scale
		}
	}

	return data, []int64{1, Channels, int64(height), int64(width)}
}

// Extensions lists the file suffixes of the registered decoders.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

func HasImageExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
