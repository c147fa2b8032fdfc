//go:build !gosseract

package ocr

import "errors"

// ErrEngineNotCompiled is returned when the gosseract engine is requested
// from a binary built without the gosseract build tag.
var ErrEngineNotCompiled = errors.New("gosseract engine not compiled in; rebuild with -tags gosseract")

func NewGosseract() (Engine, error) {
	return nil, ErrEngineNotCompiled
}
