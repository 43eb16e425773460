// Package img decodes, encodes and scales images for the viewer.
package img

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ghyeongl/imgview/fileops"
)

// ErrUnsupportedFormat is returned by Save when the destination extension
// has no encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Image is a decoded file plus the metadata it was decoded from.
type Image struct {
	Path    string
	Pixels  image.Image
	ModTime time.Time
	Size    int64
	// Format is the encoder name derived from the extension, empty if unknown.
	Format string
}

func (im *Image) Width() int {
	if im == nil || im.Pixels == nil {
		return 0
	}
	return im.Pixels.Bounds().Dx()
}

func (im *Image) Height() int {
	if im == nil || im.Pixels == nil {
		return 0
	}
	return im.Pixels.Bounds().Dy()
}

// Decode reads path from fsys, applying EXIF orientation.
func Decode(fsys afero.Fs, path string) (*Image, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}

	pixels, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	im := &Image{
		Path:    path,
		Pixels:  pixels,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}
	if format, err := imaging.FormatFromFilename(path); err == nil {
		im.Format = format.String()
	}
	return im, nil
}

// Save encodes the pixels to dest, picking the format from dest's
// extension. The file is written next to dest and renamed into place.
func (im *Image) Save(fsys afero.Fs, dest string) error {
	format, err := imaging.FormatFromFilename(dest)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, dest)
	}

	tmp := fileops.TempPath(dest)
	f, err := fsys.Create(tmp)
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	if err := imaging.Encode(f, im.Pixels, format); err != nil {
		f.Close()
		fsys.Remove(tmp)
		return fmt.Errorf("encode %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		fsys.Remove(tmp)
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := fsys.Rename(tmp, dest); err != nil {
		fsys.Remove(tmp)
		return fmt.Errorf("rename tmp to dest: %w", err)
	}
	return nil
}

// Thumbnail scales the image to fit within size x size, keeping the
// aspect ratio. Images already smaller are returned unchanged.
func (im *Image) Thumbnail(size int) image.Image {
	if im.Width() <= size && im.Height() <= size {
		return im.Pixels
	}
	return imaging.Fit(im.Pixels, size, size, imaging.Lanczos)
}
