package fileops

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

const copyChunkSize = 256 * 1024 // 256KB per chunk

const (
	tmpSuffix  = ".imgview-tmp"
	maxNameLen = 255
)

// TempPath returns the sibling path used to stage a write to dst. Names
// that would exceed the filesystem limit are shortened and made unique with
// a hash of the original name.
func TempPath(dst string) string {
	dir, base := filepath.Split(dst)
	if len(base)+len(tmpSuffix) <= maxNameLen {
		return dst + tmpSuffix
	}
	sum := strconv.FormatUint(xxhash.Sum64String(base), 16)
	keep := maxNameLen - len(tmpSuffix) - 1 - len(sum)
	return filepath.Join(dir, base[:keep]+tmpSuffix+"-"+sum)
}

// copyFile copies src to dst atomically:
// 1. Record src mtime
// 2. Copy to a temp sibling in chunks, checking ctx between chunks
// 3. Verify src mtime unchanged
// 4. Carry the mtime over and rename the temp file onto dst
func copyFile(ctx context.Context, fsys afero.Fs, src, dst string) error {
	srcInfo, err := fsys.Stat(src)
	if err != nil {
		return fmt.Errorf("stat src: %w", err)
	}
	mtime1 := srcInfo.ModTime().UnixNano()

	tmpPath := TempPath(dst)
	srcFile, err := fsys.Open(src)
	if err != nil {
		return fmt.Errorf("open src: %w", err)
	}
	defer srcFile.Close()

	tmpFile, err := fsys.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}

	buf := make([]byte, copyChunkSize)
	var copyErr error
	for copyErr == nil {
		if err := ctx.Err(); err != nil {
			copyErr = err
			break
		}

		n, readErr := srcFile.Read(buf)
		if n > 0 {
			if _, writeErr := tmpFile.Write(buf[:n]); writeErr != nil {
				copyErr = fmt.Errorf("write tmp: %w", writeErr)
				break
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			copyErr = fmt.Errorf("read src: %w", readErr)
		}
	}

	if err := tmpFile.Close(); err != nil && copyErr == nil {
		copyErr = fmt.Errorf("close tmp: %w", err)
	}
	if copyErr != nil {
		fsys.Remove(tmpPath)
		return copyErr
	}

	// Verify source wasn't modified during copy
	srcInfo2, err := fsys.Stat(src)
	if err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("re-stat src: %w", err)
	}
	if mtime1 != srcInfo2.ModTime().UnixNano() {
		fsys.Remove(tmpPath)
		return ErrSourceModified
	}

	if err := fsys.Chtimes(tmpPath, time.Now(), srcInfo.ModTime()); err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("chtimes tmp: %w", err)
	}

	if err := fsys.Rename(tmpPath, dst); err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("rename tmp to dst: %w", err)
	}
	return nil
}
