package fileops

import "errors"

var (
	ErrNotExist          = errors.New("no such file or directory")
	ErrDestinationExists = errors.New("destination already exists")
	ErrEmptyName         = errors.New("empty file name")
	ErrInvalidName       = errors.New("file name contains a path separator")
	ErrNotEmpty          = errors.New("directory not empty")
	ErrIsDir             = errors.New("is a directory")
	ErrNotDir            = errors.New("not a directory")
	ErrBackupFailed      = errors.New("could not back up existing destination")
	// ErrSourceModified is returned when the source of a copy changed
	// while it was being copied.
	ErrSourceModified = errors.New("source modified during copy")
)

// OpError records a failed operation and the path it was applied to.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(op, path string, err error) error {
	return &OpError{Op: op, Path: path, Err: err}
}
