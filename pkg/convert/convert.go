package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/schidstorm/pdf-bot/pkg/logger"
	"github.com/schidstorm/pdf-bot/pkg/ocr"
	"github.com/schidstorm/pdf-bot/pkg/render"
	"github.com/schidstorm/pdf-bot/pkg/sanitize"
	"github.com/schidstorm/pdf-bot/pkg/scratch"
	"github.com/sirupsen/logrus"
)

type Options struct {
	SpoolToDisk    bool          `yaml:"spoolToDisk" json:"spoolToDisk"`
	Inspect        bool          `yaml:"inspect" json:"inspect"`
	MaxTextLength  int           `yaml:"maxTextLength" json:"maxTextLength"`
	RequestTimeout time.Duration `yaml:"requestTimeout" json:"requestTimeout"`
	TextFileName   string        `yaml:"textFileName" json:"textFileName"`
	ImageFileName  string        `yaml:"imageFileName" json:"imageFileName"`
}

func DefaultOptions() Options {
	return Options{
		SpoolToDisk:    true,
		Inspect:        true,
		MaxTextLength:  200000,
		RequestTimeout: 2 * time.Minute,
		TextFileName:   "text.pdf",
		ImageFileName:  "scan.pdf",
	}
}

type Hooks struct {
	OnState func(requestID string, state State)
}

type Converter struct {
	area      *scratch.Area
	ocr       Recognizer
	fonts     FontSource
	sanitizer *sanitize.Sanitizer
	renderer  Renderer
	options   Options
	hooks     Hooks
}

func NewConverter(area *scratch.Area, recognizer Recognizer, fontSource FontSource, renderer Renderer, opts Options) *Converter {
	defaults := DefaultOptions()
	if opts.TextFileName == "" {
		opts.TextFileName = defaults.TextFileName
	}
	if opts.ImageFileName == "" {
		opts.ImageFileName = defaults.ImageFileName
	}

	return &Converter{
		area:      area,
		ocr:       recognizer,
		fonts:     fontSource,
		sanitizer: sanitize.NewSanitizer(),
		renderer:  renderer,
		options:   opts,
	}
}

func (c *Converter) WithSanitizer(s *sanitize.Sanitizer) *Converter {
	c.sanitizer = s
	return c
}

func (c *Converter) WithHooks(h Hooks) *Converter {
	c.hooks = h
	return c
}

// Convert runs one request to completion. Whatever happens, every scratch
// file the request created is gone when Convert returns, and no error or
// panic escapes; both end up in the returned Outcome.
func (c *Converter) Convert(ctx context.Context, req Request, sink Sink) (outcome Outcome) {
	if c.options.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.RequestTimeout)
		defer cancel()
	}

	r := &run{
		converter: c,
		req:       req,
		log:       logger.Logger(c).WithField("request", req.ID).WithField("source", req.Kind),
	}
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			outcome = r.fail(fmt.Errorf("%w: %v", ErrPanic, rec))
		}
		r.enter(Cleaned)
		r.report(outcome, time.Since(started))
	}()

	r.enter(Received)
	return r.execute(ctx, sink)
}

type run struct {
	converter *Converter
	req       Request
	log       *logrus.Entry
	state     State
}

func (r *run) enter(s State) {
	r.state = s
	r.log.WithField("state", s).Debug("Entering state")
	if r.converter.hooks.OnState != nil {
		r.converter.hooks.OnState(r.req.ID, s)
	}
}

func (r *run) fail(err error) Outcome {
	return Outcome{Kind: Failure, Reason: err, State: r.state}
}

func (r *run) execute(ctx context.Context, sink Sink) Outcome {
	r.enter(Extracting)
	text, err := r.extract(ctx)
	if err != nil {
		return r.fail(err)
	}
	if text.IsEmpty() {
		return Outcome{Kind: EmptyResult, State: r.state}
	}

	content := r.limit(text.Content)

	doc, err := r.render(content)
	if err != nil {
		return r.fail(err)
	}

	r.enter(Delivering)
	err = r.deliver(ctx, sink, doc)
	if err != nil {
		return r.fail(err)
	}

	return Outcome{Kind: Success, Document: doc, State: r.state}
}

func (r *run) extract(ctx context.Context) (ocr.Text, error) {
	switch r.req.Kind {
	case TextSource:
		return ocr.Text{Content: r.req.Text}, nil
	case ImageSource:
	default:
		return ocr.Text{}, fmt.Errorf("unknown source kind %d", r.req.Kind)
	}

	if r.req.Image == nil {
		return ocr.Text{}, fmt.Errorf("%w: no image source", ErrFetch)
	}

	suffix := r.req.ImageSuffix
	if suffix == "" {
		suffix = ".img"
	}

	h, err := r.converter.area.Acquire(scratch.Image, suffix)
	if err != nil {
		return ocr.Text{}, err
	}
	defer h.Release()

	err = r.req.Image.Fetch(ctx, h.Path())
	if err != nil {
		return ocr.Text{}, errors.Join(ErrFetch, err)
	}

	return r.converter.ocr.Recognize(ctx, h.Path())
}

func (r *run) limit(text string) string {
	maxRunes := r.converter.options.MaxTextLength
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	r.log.WithField("limit", maxRunes).Warn("Truncating long text")
	return string([]rune(text)[:maxRunes])
}

func (r *run) render(text string) (*Document, error) {
	c := r.converter
	doc := &Document{
		Name: c.options.TextFileName,
		Step: sanitize.StepUnchanged,
	}
	if r.req.Kind == ImageSource {
		doc.Name = documentName(c.options.ImageFileName, r.req.ID)
	}

	var err error
	if font, ok := c.fonts.TryLoad(); ok {
		drawable, dropped := font.Drawable(text)
		if dropped > 0 {
			r.log.WithField("dropped", dropped).WithField("font", font.Name).Info("Dropped characters the font cannot draw")
		}
		if strings.TrimSpace(drawable) == "" {
			return nil, ErrNothingPrintable
		}

		r.enter(Rendering)
		doc.Mode = render.UnicodeFont
		doc.Data, err = c.renderer.Render(render.Plan{Text: drawable, Mode: render.UnicodeFont, Font: font})
		if err == nil {
			r.inspect(doc)
			return doc, nil
		}
		if !errors.Is(err, render.ErrFontUnavailable) {
			return nil, err
		}
		r.log.WithError(err).WithField("font", font.Name).Warn("Unicode font failed, using core font")
	}

	r.enter(Sanitizing)
	prepared := c.sanitizer.Prepare(text)
	if strings.TrimSpace(prepared.Text) == "" {
		return nil, ErrNothingPrintable
	}
	if prepared.Step != sanitize.StepUnchanged {
		r.log.WithField("step", prepared.Step).Info("Sanitized text for core font")
	}

	r.enter(Rendering)
	doc.Mode = render.FallbackFont
	doc.Step = prepared.Step
	doc.Data, err = c.renderer.Render(render.Plan{Text: prepared.Text, Mode: render.FallbackFont})
	if err != nil {
		return nil, err
	}

	r.inspect(doc)
	return doc, nil
}

// documentName turns "scan.pdf" and a request id into "scan-1a2b3c4d.pdf".
func documentName(name, requestID string) string {
	short := strings.ReplaceAll(requestID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	if short == "" {
		return name
	}

	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + short + ext
}

func (r *run) inspect(doc *Document) {
	if !r.converter.options.Inspect {
		return
	}

	info, err := render.Inspect(doc.Data)
	if err != nil {
		r.log.WithError(err).Warn("Rendered pdf did not pass inspection")
		return
	}
	doc.Pages = info.Pages
}

func (r *run) deliver(ctx context.Context, sink Sink, doc *Document) error {
	if !r.converter.options.SpoolToDisk {
		return sink.Deliver(ctx, *doc)
	}

	h, err := r.converter.area.Acquire(scratch.Pdf, ".pdf")
	if err != nil {
		return err
	}
	defer h.Release()

	err = os.WriteFile(h.Path(), doc.Data, 0o600)
	if err != nil {
		return fmt.Errorf("spool pdf: %w", err)
	}

	spooled := *doc
	spooled.Path = h.Path()
	return sink.Deliver(ctx, spooled)
}

func (r *run) report(outcome Outcome, took time.Duration) {
	log := r.log.WithField("outcome", outcome.Kind).WithField("duration", took)

	switch outcome.Kind {
	case Success:
		log.WithField("mode", outcome.Document.Mode).
			WithField("pages", outcome.Document.Pages).
			WithField("bytes", len(outcome.Document.Data)).
			Info("Converted")
	case EmptyResult:
		log.Info("Nothing to convert")
	case Failure:
		log = log.WithError(outcome.Reason).WithField("state", outcome.State)
		if IsInputError(outcome.Reason) {
			log.Info("Rejected input")
		} else {
			log.Error("Conversion failed")
		}
	}
}
