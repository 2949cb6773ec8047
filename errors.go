package scenery

import "errors"

var (
	// ErrIO is returned when an image or descriptor file is missing or unreadable.
	ErrIO = errors.New("io error")
	// ErrDecode is returned when image data is corrupt or in an unsupported format.
	ErrDecode = errors.New("decode error")
	// ErrEncode is returned when re-encoding an image fails.
	ErrEncode = errors.New("encode error")
	// ErrOutOfBounds is returned when a page or scene index is invalid.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrNotLoaded is returned when an operation needs a collection or scene that is not loaded yet.
	ErrNotLoaded = errors.New("not loaded")
	// ErrCollection is returned when the scene descriptor store fails.
	ErrCollection = errors.New("collection error")
)
