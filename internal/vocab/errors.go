package vocab

import "errors"

var (
	// ErrUnknownGloss is returned when a gloss is not in the dictionary.
	ErrUnknownGloss = errors.New("unknown gloss")
	// ErrNoHandshape is returned when a gloss has no handshape data.
	ErrNoHandshape = errors.New("no handshape data")
)
