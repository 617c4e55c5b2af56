package rimage

import (
	"bufio"
	"image"
	"image/png"
	"io"
	"os"

	_ "github.com/lmittmann/ppm" // register ppm
	"github.com/pkg/errors"
	_ "github.com/xfmoulet/qoi" // register qoi
	"go.uber.org/multierr"
	"go.viam.com/utils"
	_ "golang.org/x/image/tiff" // register 16-bit tiff
)

// ErrUnreadableFrame is returned when a depth raster cannot be opened or decoded.
var ErrUnreadableFrame = errors.New("unreadable depth frame")

// ReadDepthMap loads a depth raster from disk. Every failure wraps ErrUnreadableFrame.
func ReadDepthMap(path string) (*DepthMap, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreadableFrame, "%s: %v", path, err)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	dm, err := DecodeDepthMap(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return dm, nil
}

// DecodeDepthMap decodes a PNG, TIFF, PPM or QOI raster into a depth map.
func DecodeDepthMap(r io.Reader) (*DepthMap, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreadableFrame, "decode: %v", err)
	}
	dm, err := ConvertImageToDepthMap(img)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreadableFrame, "%s: %v", format, err)
	}
	return dm, nil
}

// WriteDepthMapPNG writes the depth map as a 16-bit grayscale PNG.
func WriteDepthMapPNG(dm *DepthMap, path string) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return png.Encode(f, dm.ToGray16Picture())
}
