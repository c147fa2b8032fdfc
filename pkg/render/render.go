package render

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/schidstorm/pdf-bot/pkg/fonts"
	"github.com/schidstorm/pdf-bot/pkg/logger"
)

var ErrFontUnavailable = errors.New("unicode font unavailable")

const (
	unicodeFamily  = "unicode"
	fallbackFamily = "Arial"
)

type FontMode int

const (
	UnicodeFont FontMode = iota
	FallbackFont
)

func (m FontMode) String() string {
	if m == UnicodeFont {
		return "unicode"
	}
	return "fallback"
}

// Plan is what gets rendered. Text of a FallbackFont plan must already be
// representable in Windows-1252.
type Plan struct {
	Text string
	Mode FontMode
	Font *fonts.Font
}

type Options struct {
	FontSize   float64 `yaml:"fontSize" json:"fontSize"`
	LineHeight float64 `yaml:"lineHeight" json:"lineHeight"`
	Margin     float64 `yaml:"margin" json:"margin"`
	PageSize   string  `yaml:"pageSize" json:"pageSize"`
	Title      string  `yaml:"title" json:"title"`
	Creator    string  `yaml:"creator" json:"creator"`
}

func (o Options) withDefaults() Options {
	if o.FontSize <= 0 {
		o.FontSize = 12
	}
	if o.LineHeight <= 0 {
		o.LineHeight = 7
	}
	if o.Margin <= 0 {
		o.Margin = 15
	}
	if o.PageSize == "" {
		o.PageSize = "A4"
	}
	if o.Creator == "" {
		o.Creator = "pdf-bot"
	}
	return o
}

type Renderer struct {
	options Options
}

func NewRenderer(opts Options) *Renderer {
	return &Renderer{options: opts.withDefaults()}
}

// Render lays the plan's text out as wrapped paragraphs on as many pages as
// needed and returns the finished document. Any failure of a UnicodeFont plan
// wraps ErrFontUnavailable so that callers can retry with the core font.
func (r *Renderer) Render(plan Plan) (data []byte, resErr error) {
	defer func() {
		if rec := recover(); rec != nil {
			resErr = r.wrap(plan, fmt.Errorf("%v", rec))
		}
	}()

	pdf := gofpdf.New("P", "mm", r.options.PageSize, "")
	pdf.SetMargins(r.options.Margin, r.options.Margin, r.options.Margin)
	pdf.SetAutoPageBreak(true, r.options.Margin)
	pdf.SetCreator(r.options.Creator, true)
	if r.options.Title != "" {
		pdf.SetTitle(r.options.Title, true)
	}

	text := plan.Text
	switch plan.Mode {
	case UnicodeFont:
		if plan.Font == nil || len(plan.Font.Data) == 0 {
			return nil, ErrFontUnavailable
		}
		text, _ = plan.Font.Drawable(text)
		pdf.AddUTF8FontFromBytes(unicodeFamily, "", plan.Font.Data)
		pdf.SetFont(unicodeFamily, "", r.options.FontSize)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
		}
	case FallbackFont:
		pdf.SetFont(fallbackFamily, "", r.options.FontSize)
		text = pdf.UnicodeTranslatorFromDescriptor("")(text)
	default:
		return nil, fmt.Errorf("render pdf: unknown font mode %d", plan.Mode)
	}

	pdf.AddPage()
	pdf.MultiCell(0, r.options.LineHeight, text, "", "L", false)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, r.wrap(plan, err)
	}

	logger.Logger(r).
		WithField("mode", plan.Mode).
		WithField("pages", pdf.PageNo()).
		WithField("bytes", buf.Len()).
		Debug("Rendered pdf")

	return buf.Bytes(), nil
}

func (r *Renderer) wrap(plan Plan, err error) error {
	if plan.Mode == UnicodeFont {
		return fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}
	return fmt.Errorf("render pdf: %w", err)
}
