package provider

import "errors"

var (
	ErrNotFound     = errors.New("provider: not found")
	ErrForeignTrack = errors.New("provider: track belongs to another source")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
