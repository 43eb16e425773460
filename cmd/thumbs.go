package cmd

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ghyeongl/imgview/img"
	"github.com/ghyeongl/imgview/index"
	"github.com/ghyeongl/imgview/logging"
)

const (
	minThumbSize = 50
	maxThumbSize = 400
)

var errThumbSize = fmt.Errorf("thumbnail size must be greater than %d and at most %d", minThumbSize, maxThumbSize)

func (a *app) thumbsCmd() *cobra.Command {
	var (
		size   int
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "thumbs DIR",
		Short: "Generate thumbnails for every image under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if size <= minThumbSize || size > maxThumbSize {
				return fmt.Errorf("%w: got %d", errThumbSize, size)
			}
			s := a.settings.Snapshot()

			ix := index.New(index.Options{Settings: s})
			defer ix.Close()
			if err := ix.SetDirectory(args[0], true, false); err != nil {
				return err
			}
			root := ix.DirectoryPath()
			if outDir == "" {
				outDir = filepath.Join(root, ".thumbnails")
			}

			fsys := afero.NewOsFs()
			l := logging.Sub("thumbs")
			var written, skipped atomic.Int64

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(s.LoaderWorkers)
			for _, e := range ix.Files() {
				e := e
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					rel, err := filepath.Rel(root, e.Path)
					if err != nil {
						return err
					}
					dest := thumbPath(outDir, rel)
					if err := writeThumb(fsys, e.Path, dest, size); err != nil {
						l.Warn("thumbnail failed", "path", e.Path, "err", err)
						skipped.Add(1)
						return nil
					}
					written.Add(1)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d thumbnails written to %s, %d skipped\n",
				written.Load(), outDir, skipped.Load())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&size, "size", 200, fmt.Sprintf("longest thumbnail side in pixels (%d < size <= %d)", minThumbSize, maxThumbSize))
	flags.StringVarP(&outDir, "out", "o", "", "output directory (default DIR/.thumbnails)")
	return cmd
}

// thumbPath mirrors rel under outDir. Formats without an encoder are
// written as PNG.
func thumbPath(outDir, rel string) string {
	dest := filepath.Join(outDir, rel)
	if _, err := imaging.FormatFromFilename(dest); err != nil {
		dest += ".png"
	}
	return dest
}

func writeThumb(fsys afero.Fs, src, dest string, size int) error {
	im, err := img.Decode(fsys, src)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	thumb := &img.Image{Path: dest, Pixels: im.Thumbnail(size)}
	return thumb.Save(fsys, dest)
}
