// Package sanitize prepares text for the narrow core PDF fonts, which only
// cover Windows-1252.
package sanitize

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/schidstorm/pdf-bot/pkg/logger"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

var ErrTransliteration = errors.New("transliteration failed")

type Step int

const (
	StepUnchanged Step = iota
	StepTransliterated
	StepStripped
)

func (s Step) String() string {
	switch s {
	case StepUnchanged:
		return "unchanged"
	case StepTransliterated:
		return "transliterated"
	case StepStripped:
		return "stripped"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

type Result struct {
	Text string
	Step Step
}

// Representable reports whether text can be encoded for the core fonts.
func Representable(text string) bool {
	_, err := charmap.Windows1252.NewEncoder().String(norm.NFC.String(text))
	return err == nil
}

type Sanitizer struct {
	translit Transliterator
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{translit: Ukrainian{}}
}

func (s *Sanitizer) WithTransliterator(t Transliterator) *Sanitizer {
	s.translit = t
	return s
}

// PrepareForFallbackFont returns text unchanged when the core font can show
// it, a transliteration when it can not, and the printable ASCII remainder
// when transliteration fails.
func (s *Sanitizer) PrepareForFallbackFont(text string) string {
	return s.Prepare(text).Text
}

func (s *Sanitizer) Prepare(text string) Result {
	text = norm.NFC.String(text)
	if Representable(text) {
		return Result{Text: text, Step: StepUnchanged}
	}

	latin, err := s.transliterate(text)
	if err == nil {
		return Result{Text: latin, Step: StepTransliterated}
	}

	stripped, dropped := stripToASCII(text)
	logger.Logger(s).
		WithError(err).
		WithField("dropped", dropped).
		WithField("kept", utf8.RuneCountInString(stripped)).
		Warn("destructive fallback: stripped non-ASCII characters")

	return Result{Text: stripped, Step: StepStripped}
}

func (s *Sanitizer) transliterate(text string) (latin string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTransliteration, r)
		}
	}()

	latin, err = s.translit.Transliterate(text)
	if err != nil {
		return "", errors.Join(ErrTransliteration, err)
	}
	if !Representable(latin) {
		return "", fmt.Errorf("%w: result not representable", ErrTransliteration)
	}

	return latin, nil
}

func stripToASCII(text string) (string, int) {
	var sb strings.Builder
	dropped := 0
	for _, r := range text {
		if (r >= 0x20 && r <= 0x7e) || r == '\n' || r == '\t' {
			sb.WriteRune(r)
		} else {
			dropped++
		}
	}
	return sb.String(), dropped
}
