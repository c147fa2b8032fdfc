package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"github.com/schidstorm/pdf-bot/pkg/logger"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrDecode = errors.New("decode-error")
	ErrEngine = errors.New("ocr engine failed")
)

var DefaultLanguages = []string{"ukr", "eng"}

type Options struct {
	Engine    string   `yaml:"engine" json:"engine"`
	Binary    string   `yaml:"binary" json:"binary"`
	Languages []string `yaml:"languages" json:"languages"`
	// PageSegMode is passed as --psm when non-zero.
	PageSegMode int `yaml:"pageSegMode" json:"pageSegMode"`
}

// Engine turns the image at imagePath into text.
type Engine interface {
	Recognize(ctx context.Context, imagePath string, languages []string) (string, error)
}

// Text is the result of one recognition. An empty result is not an error.
type Text struct {
	Content string
}

func (t Text) IsEmpty() bool {
	return strings.TrimSpace(t.Content) == ""
}

type Adapter struct {
	engine    Engine
	languages []string
}

func NewAdapter(engine Engine, languages []string) *Adapter {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}

	return &Adapter{
		engine:    engine,
		languages: languages,
	}
}

// NewEngine builds the engine named in opts. The default is the tesseract
// command line tool.
func NewEngine(opts Options) (Engine, error) {
	switch opts.Engine {
	case "", "cli", "tesseract":
		return NewTesseractCli(opts.Binary, opts.PageSegMode), nil
	case "gosseract":
		return NewGosseract()
	}
	return nil, fmt.Errorf("unknown ocr engine %q", opts.Engine)
}

func (a *Adapter) Languages() []string {
	return a.languages
}

func (a *Adapter) Recognize(ctx context.Context, imagePath string) (Text, error) {
	format, err := checkDecodable(imagePath)
	if err != nil {
		return Text{}, err
	}

	log := logger.Logger(a).WithField("format", format).WithField("languages", a.languages)
	started := time.Now()

	content, err := a.engine.Recognize(ctx, imagePath, a.languages)
	if err != nil {
		return Text{}, errors.Join(ErrEngine, err)
	}

	log.WithField("duration", time.Since(started)).WithField("chars", len(content)).Debug("Recognized image")

	return Text{Content: content}, nil
}

func checkDecodable(imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return format, nil
}
