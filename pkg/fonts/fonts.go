package fonts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/schidstorm/pdf-bot/pkg/logger"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
)

var DefaultPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/freefont/FreeSans.ttf",
	"/usr/share/fonts/truetype/noto/NotoSans-Regular.ttf",
	"fonts/DejaVuSans.ttf",
}

type Options struct {
	Paths   []string `yaml:"paths" json:"paths"`
	Bundled bool     `yaml:"bundled" json:"bundled"`
}

// Font is a parsed TrueType font ready to be embedded.
type Font struct {
	Name string
	Path string
	Data []byte

	parseOnce sync.Once
	parsed    *sfnt.Font
}

func (f *Font) outlines() *sfnt.Font {
	f.parseOnce.Do(func() {
		if f.parsed == nil {
			f.parsed, _ = sfnt.Parse(f.Data)
		}
	})
	return f.parsed
}

// Drawable drops every rune the font has no glyph for and reports how many
// were dropped. Runes above U+FFFF are always dropped, the PDF writer only
// embeds the basic multilingual plane. Text is returned as is when the font
// does not parse.
func (f *Font) Drawable(text string) (string, int) {
	parsed := f.outlines()
	if parsed == nil {
		return text, 0
	}

	buf := &sfnt.Buffer{}
	dropped := 0
	var sb strings.Builder
	sb.Grow(len(text))

	for _, r := range text {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
		case r > 0xFFFF:
			dropped++
			continue
		default:
			idx, err := parsed.GlyphIndex(buf, r)
			if err != nil || idx == 0 {
				dropped++
				continue
			}
		}
		sb.WriteRune(r)
	}

	return sb.String(), dropped
}

type Locator struct {
	paths   []string
	bundled bool

	mutex  sync.Mutex
	cached *Font
	probed bool
}

func NewLocator(opts Options) *Locator {
	paths := opts.Paths
	if len(paths) == 0 {
		paths = DefaultPaths
	}

	return &Locator{
		paths:   paths,
		bundled: opts.Bundled,
	}
}

// TryLoad returns the first usable Unicode font. The second result is false
// when no candidate can be read and parsed.
func (l *Locator) TryLoad() (*Font, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.probed {
		return l.cached, l.cached != nil
	}

	l.cached = l.probe()
	l.probed = true

	return l.cached, l.cached != nil
}

// Invalidate forgets the cached probe result.
func (l *Locator) Invalidate() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.cached = nil
	l.probed = false
}

func (l *Locator) probe() *Font {
	log := logger.Logger(l)

	for _, p := range l.paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		parsed, err := sfnt.Parse(data)
		if err != nil {
			log.WithError(err).WithField("path", p).Warn("Ignoring unparsable font")
			continue
		}

		log.WithField("path", p).Info("Using unicode font")
		return &Font{
			Name:   fontName(p),
			Path:   p,
			Data:   data,
			parsed: parsed,
		}
	}

	if l.bundled {
		log.Info("Using bundled Go Regular font")
		return &Font{
			Name: "goregular",
			Data: goregular.TTF,
		}
	}

	log.WithField("paths", l.paths).Warn("No unicode font available, falling back to core font")
	return nil
}

// Watch invalidates the cache whenever a candidate font file changes. It
// blocks until ctx is done.
func (l *Locator) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	log := logger.Logger(l)
	watched := map[string]bool{}
	candidates := map[string]bool{}
	for _, p := range l.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		candidates[abs] = true

		dir := filepath.Dir(abs)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Debug("Not watching font directory")
			continue
		}
		watched[dir] = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !candidates[filepath.Clean(event.Name)] {
				continue
			}
			log.WithField("path", event.Name).WithField("op", event.Op.String()).Info("Font changed")
			l.Invalidate()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Font watcher error")
		}
	}
}

func fontName(p string) string {
	base := filepath.Base(p)
	return base[:len(base)-len(filepath.Ext(base))]
}
