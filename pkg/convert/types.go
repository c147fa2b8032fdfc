package convert

import (
	"context"
	"errors"
	"fmt"

	"github.com/schidstorm/pdf-bot/pkg/fonts"
	"github.com/schidstorm/pdf-bot/pkg/ocr"
	"github.com/schidstorm/pdf-bot/pkg/render"
	"github.com/schidstorm/pdf-bot/pkg/sanitize"
)

var (
	ErrFetch            = errors.New("fetch source")
	ErrNothingPrintable = errors.New("nothing printable left")
	ErrPanic            = errors.New("panic during conversion")
)

type SourceKind int

const (
	ImageSource SourceKind = iota
	TextSource
)

func (k SourceKind) String() string {
	if k == ImageSource {
		return "image"
	}
	return "text"
}

// Source writes an image payload to a local path.
type Source interface {
	Fetch(ctx context.Context, dst string) error
}

type SourceFunc func(ctx context.Context, dst string) error

func (f SourceFunc) Fetch(ctx context.Context, dst string) error {
	return f(ctx, dst)
}

type Request struct {
	ID   string
	Kind SourceKind
	// Image and ImageSuffix are used for ImageSource requests.
	Image       Source
	ImageSuffix string
	Text        string
}

type Document struct {
	Name string
	Data []byte
	// Path is set only while the document is spooled to disk, i.e. during
	// Sink.Deliver.
	Path  string
	Pages int
	Mode  render.FontMode
	Step  sanitize.Step
}

// Sink delivers a finished document to whoever asked for it.
type Sink interface {
	Deliver(ctx context.Context, doc Document) error
}

type OutcomeKind int

const (
	Success OutcomeKind = iota
	EmptyResult
	Failure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case EmptyResult:
		return "empty"
	case Failure:
		return "failure"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

type Outcome struct {
	Kind     OutcomeKind
	Document *Document
	Reason   error
	// State is the last state entered before the outcome was decided.
	State State
}

type State int

const (
	Received State = iota
	Extracting
	Sanitizing
	Rendering
	Delivering
	Cleaned
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Extracting:
		return "extracting"
	case Sanitizing:
		return "sanitizing"
	case Rendering:
		return "rendering"
	case Delivering:
		return "delivering"
	case Cleaned:
		return "cleaned"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsInputError reports whether err is caused by what the user sent rather
// than by a failing dependency.
func IsInputError(err error) bool {
	return errors.Is(err, ocr.ErrDecode) || errors.Is(err, ErrNothingPrintable)
}

type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (ocr.Text, error)
}

type FontSource interface {
	TryLoad() (*fonts.Font, bool)
}

type Renderer interface {
	Render(plan render.Plan) ([]byte, error)
}
