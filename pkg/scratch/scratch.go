package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schidstorm/pdf-bot/pkg/logger"
)

var defaultPrefix = "pdf-bot-"

type Kind int

const (
	Image Kind = iota
	Pdf
	kindCount
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Pdf:
		return "pdf"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Options struct {
	Dir    string `yaml:"dir" json:"dir"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// Area hands out scratch files inside one directory. It is safe for
// concurrent use; handles are never shared between callers.
type Area struct {
	dir      string
	prefix   string
	acquired [kindCount]atomic.Int64
	live     atomic.Int64
}

func NewArea(opts Options) *Area {
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}

	return &Area{
		dir:    opts.Dir,
		prefix: opts.Prefix,
	}
}

func (a *Area) Dir() string {
	return a.dir
}

// Acquire creates a uniquely named empty file ending in suffix. The caller
// owns the returned handle and must Release it, usually with defer.
func (a *Area) Acquire(kind Kind, suffix string) (*Handle, error) {
	if kind < 0 || kind >= kindCount {
		return nil, fmt.Errorf("acquire scratch file: unknown kind %d", int(kind))
	}

	f, err := os.CreateTemp(a.dir, a.prefix+"*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("acquire scratch file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return nil, fmt.Errorf("acquire scratch file: %w", err)
	}

	a.acquired[kind].Add(1)
	a.live.Add(1)

	logger.Logger(a).WithField("path", name).WithField("kind", kind).Debug("Acquired scratch file")

	return &Handle{
		path: name,
		kind: kind,
		area: a,
	}, nil
}

// Acquired reports how many handles of kind were ever handed out.
func (a *Area) Acquired(kind Kind) int {
	if kind < 0 || kind >= kindCount {
		return 0
	}
	return int(a.acquired[kind].Load())
}

// Live reports how many handles are acquired but not yet released.
func (a *Area) Live() int {
	return int(a.live.Load())
}

// Sweep removes files carrying the area prefix that were last modified
// before olderThan ago. They are leftovers of a process that did not exit
// cleanly.
func (a *Area) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), a.prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		err = os.Remove(filepath.Join(a.dir, entry.Name()))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Logger(a).WithField("removed", removed).Info("Swept stale scratch files")
	}

	return removed, errors.Join(errs...)
}

// Handle is one scratch file. Release is idempotent and treats an already
// missing file as released.
type Handle struct {
	path string
	kind Kind
	area *Area

	once sync.Once
	err  error
}

func (h *Handle) Path() string {
	return h.path
}

func (h *Handle) Kind() Kind {
	return h.kind
}

func (h *Handle) Release() error {
	h.once.Do(func() {
		err := os.Remove(h.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.err = err
			logger.Logger(h.area).WithError(err).WithField("path", h.path).Warn("Failed to remove scratch file")
		}
		h.area.live.Add(-1)
	})

	return h.err
}
