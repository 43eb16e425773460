// Package fileops performs the file mutations the viewer offers: delete
// (optionally to the trash), rename, move, copy and touch.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/ghyeongl/imgview/logging"
	"github.com/ghyeongl/imgview/metrics"
)

// Ops applies file mutations to one filesystem. Every failure is an *OpError.
type Ops struct {
	fs    afero.Fs
	trash *Trash
}

// New returns Ops over fsys (the OS filesystem when nil), trashing into
// trashDir.
func New(fsys afero.Fs, trashDir string) *Ops {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Ops{fs: fsys, trash: NewTrash(fsys, trashDir)}
}

func (o *Ops) Fs() afero.Fs  { return o.fs }
func (o *Ops) Trash() *Trash { return o.trash }

func (o *Ops) done(op, path string, err error) error {
	metrics.RecordFileOp(op, err)
	if err != nil {
		logging.Sub("fileops").Warn("file operation failed", "op", op, "path", path, "err", err)
	} else {
		logging.Sub("fileops").Debug("file operation done", "op", op, "path", path)
	}
	return err
}

// lstat does not follow a final symlink when the filesystem supports it.
func (o *Ops) lstat(path string) (os.FileInfo, error) {
	if l, ok := o.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return o.fs.Stat(path)
}

func (o *Ops) require(op, path string) (os.FileInfo, error) {
	info, err := o.lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, opErr(op, path, ErrNotExist)
		}
		return nil, opErr(op, path, err)
	}
	return info, nil
}

// Remove deletes a file or symlink. Directories are refused with ErrIsDir.
func (o *Ops) Remove(path string, trash bool) error {
	return o.done("remove", path, o.remove(path, trash))
}

func (o *Ops) remove(path string, trash bool) error {
	info, err := o.require("remove", path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return opErr("remove", path, ErrIsDir)
	}
	if trash {
		if _, err := o.trash.Put(path); err != nil {
			return opErr("trash", path, err)
		}
		return nil
	}
	if err := o.fs.Remove(path); err != nil {
		return opErr("remove", path, err)
	}
	return nil
}

// RemoveDir deletes a directory. Without recursive a non-empty directory
// is refused with ErrNotEmpty. Trashing always moves the whole tree.
func (o *Ops) RemoveDir(path string, trash, recursive bool) error {
	return o.done("rmdir", path, o.removeDir(path, trash, recursive))
}

func (o *Ops) removeDir(path string, trash, recursive bool) error {
	info, err := o.require("rmdir", path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return opErr("rmdir", path, ErrNotDir)
	}
	if trash {
		if _, err := o.trash.Put(path); err != nil {
			return opErr("trash", path, err)
		}
		return nil
	}
	if recursive {
		if err := o.fs.RemoveAll(path); err != nil {
			return opErr("rmdir", path, err)
		}
		return nil
	}
	empty, err := afero.IsEmpty(o.fs, path)
	if err != nil {
		return opErr("rmdir", path, err)
	}
	if !empty {
		return opErr("rmdir", path, ErrNotEmpty)
	}
	if err := o.fs.Remove(path); err != nil {
		return opErr("rmdir", path, err)
	}
	return nil
}

func checkName(op, name string) error {
	if name == "" {
		return opErr(op, name, ErrEmptyName)
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return opErr(op, name, ErrInvalidName)
	}
	return nil
}

// Rename gives path a new base name within its directory. An existing
// destination is refused unless force is set, in which case it is kept as
// a backup until the rename has succeeded.
func (o *Ops) Rename(path, newName string, force bool) (string, error) {
	dest, err := o.rename(path, newName, force)
	return dest, o.done("rename", path, err)
}

func (o *Ops) rename(path, newName string, force bool) (string, error) {
	if err := checkName("rename", newName); err != nil {
		return "", err
	}
	if _, err := o.require("rename", path); err != nil {
		return "", err
	}
	dest := filepath.Join(filepath.Dir(path), newName)
	return dest, o.place("rename", path, dest, force)
}

// MoveTo moves path into destDir, keeping its base name.
func (o *Ops) MoveTo(path, destDir string, force bool) (string, error) {
	dest, err := o.moveTo(path, destDir, force)
	return dest, o.done("move", path, err)
}

func (o *Ops) moveTo(path, destDir string, force bool) (string, error) {
	if _, err := o.require("move", path); err != nil {
		return "", err
	}
	dirInfo, err := o.fs.Stat(destDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", opErr("move", destDir, ErrNotExist)
		}
		return "", opErr("move", destDir, err)
	}
	if !dirInfo.IsDir() {
		return "", opErr("move", destDir, ErrNotDir)
	}
	dest := filepath.Join(destDir, filepath.Base(path))
	return dest, o.place("move", path, dest, force)
}

// place moves src to dest, handling an existing destination.
func (o *Ops) place(op, src, dest string, force bool) error {
	if filepath.Clean(src) == filepath.Clean(dest) {
		return nil
	}
	destInfo, err := o.lstat(dest)
	if err == nil {
		srcInfo, _ := o.lstat(src)
		// case-only rename on a case-insensitive filesystem
		if srcInfo != nil && os.SameFile(srcInfo, destInfo) {
			return o.move(op, src, dest)
		}
		if !force {
			return opErr(op, dest, ErrDestinationExists)
		}
		return o.replace(op, src, dest)
	}
	return o.move(op, src, dest)
}

// replace moves dest aside to a backup, moves src into place, then drops
// the backup. A failed move restores the backup.
func (o *Ops) replace(op, src, dest string) error {
	l := logging.Sub("fileops")
	backup := o.backupPath(dest)
	if err := o.fs.Rename(dest, backup); err != nil {
		return opErr(op, dest, fmt.Errorf("%w: %w", ErrBackupFailed, err))
	}
	if err := o.move(op, src, dest); err != nil {
		if rerr := o.fs.Rename(backup, dest); rerr != nil {
			l.Error("restore backup failed", "backup", backup, "dest", dest, "err", rerr)
		}
		return err
	}
	if err := o.fs.RemoveAll(backup); err != nil {
		l.Warn("remove backup failed", "backup", backup, "err", err)
	}
	return nil
}

// backupPath returns the first free "base.N.ext" next to path.
func (o *Ops) backupPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s.%d%s", name, i, ext))
		if _, err := o.lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

// move renames src to dest, falling back to copy and delete for regular
// files on another device.
func (o *Ops) move(op, src, dest string) error {
	err := o.fs.Rename(src, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return opErr(op, src, err)
	}
	info, serr := o.lstat(src)
	if serr != nil || !info.Mode().IsRegular() {
		return opErr(op, src, err)
	}
	if err := copyFile(context.Background(), o.fs, src, dest); err != nil {
		return opErr(op, src, err)
	}
	if err := o.fs.Remove(src); err != nil {
		return opErr(op, src, err)
	}
	return nil
}

// Copy duplicates path within its directory under newName.
func (o *Ops) Copy(ctx context.Context, path, newName string, force bool) (string, error) {
	if err := checkName("copy", newName); err != nil {
		return "", o.done("copy", path, err)
	}
	dest := filepath.Join(filepath.Dir(path), newName)
	return dest, o.done("copy", path, o.copyTo(ctx, path, dest, force))
}

// CopyTo duplicates path into destDir, keeping its base name.
func (o *Ops) CopyTo(ctx context.Context, path, destDir string, force bool) (string, error) {
	info, err := o.fs.Stat(destDir)
	if err != nil || !info.IsDir() {
		return "", o.done("copy", path, opErr("copy", destDir, ErrNotDir))
	}
	dest := filepath.Join(destDir, filepath.Base(path))
	return dest, o.done("copy", path, o.copyTo(ctx, path, dest, force))
}

func (o *Ops) copyTo(ctx context.Context, src, dest string, force bool) error {
	info, err := o.fs.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return opErr("copy", src, ErrNotExist)
		}
		return opErr("copy", src, err)
	}
	if info.IsDir() {
		return opErr("copy", src, ErrIsDir)
	}
	if filepath.Clean(src) == filepath.Clean(dest) {
		return opErr("copy", dest, ErrDestinationExists)
	}
	if _, err := o.lstat(dest); err == nil && !force {
		return opErr("copy", dest, ErrDestinationExists)
	}
	if err := copyFile(ctx, o.fs, src, dest); err != nil {
		return opErr("copy", src, err)
	}
	return nil
}

// Touch sets the modification and access times of path.
func (o *Ops) Touch(path string, mtime, atime time.Time) error {
	err := o.fs.Chtimes(path, atime, mtime)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrNotExist
		}
		err = opErr("touch", path, err)
	}
	return o.done("touch", path, err)
}

// Exists reports whether path exists, without following a final symlink.
func (o *Ops) Exists(path string) bool {
	_, err := o.lstat(path)
	return err == nil
}

// IsWritable reports whether path can be written. Files are probed by
// opening them write-only; directories by their permission bits.
func (o *Ops) IsWritable(path string) bool {
	info, err := o.fs.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return info.Mode().Perm()&0200 != 0
	}
	f, err := o.fs.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
