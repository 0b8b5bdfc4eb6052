package vocab

import (
	_ "embed"
	"sync"
)

//go:embed default.json
var defaultJSON []byte

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
	defaultErr    error
)

// Default returns the bundled vocabulary release. The result is shared and
// must be treated as read-only.
func Default() (*Bundle, error) {
	defaultOnce.Do(func() {
		defaultBundle, defaultErr = Parse(defaultJSON)
	})
	return defaultBundle, defaultErr
}
