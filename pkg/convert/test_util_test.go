package convert

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/schidstorm/pdf-bot/pkg/fonts"
	"github.com/schidstorm/pdf-bot/pkg/ocr"
	"github.com/schidstorm/pdf-bot/pkg/render"
	"github.com/schidstorm/pdf-bot/pkg/scratch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	text  string
	err   error
	panic bool
}

func (f *fakeRecognizer) Recognize(ctx context.Context, imagePath string) (ocr.Text, error) {
	if f.panic {
		panic("ocr exploded")
	}
	return ocr.Text{Content: f.text}, f.err
}

type fakeEngine struct {
	text string
}

func (f *fakeEngine) Recognize(ctx context.Context, imagePath string, languages []string) (string, error) {
	return f.text, nil
}

type fakeFonts struct {
	font *fonts.Font
}

func (f fakeFonts) TryLoad() (*fonts.Font, bool) {
	return f.font, f.font != nil
}

type fakeRenderer struct {
	err   error
	panic bool
	plans []render.Plan
}

func (f *fakeRenderer) Render(plan render.Plan) ([]byte, error) {
	f.plans = append(f.plans, plan)
	if f.panic {
		panic("renderer exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 fake"), nil
}

type recordingSink struct {
	err   error
	panic bool

	mutex     sync.Mutex
	delivered []Document
	spooled   [][]byte
}

func (s *recordingSink) Deliver(ctx context.Context, doc Document) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.delivered = append(s.delivered, doc)
	if doc.Path != "" {
		data, _ := os.ReadFile(doc.Path)
		s.spooled = append(s.spooled, data)
	}
	if s.panic {
		panic("sink exploded")
	}
	return s.err
}

func pngSource(t *testing.T) Source {
	t.Helper()

	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	data := buf.Bytes()

	return SourceFunc(func(ctx context.Context, dst string) error {
		return os.WriteFile(dst, data, 0o600)
	})
}

func bytesSource(data []byte) Source {
	return SourceFunc(func(ctx context.Context, dst string) error {
		return os.WriteFile(dst, data, 0o600)
	})
}

func failingSource() Source {
	return SourceFunc(func(ctx context.Context, dst string) error {
		return errors.New("download timed out")
	})
}

func testOptions() Options {
	opts := DefaultOptions()
	return opts
}

func assertNoScratchLeft(t *testing.T, area *scratch.Area) {
	t.Helper()

	assert.Equal(t, 0, area.Live())
	entries, err := os.ReadDir(area.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func extractText(t *testing.T, data []byte) string {
	t.Helper()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	plain, err := reader.GetPlainText()
	require.NoError(t, err)
	text, err := io.ReadAll(plain)
	require.NoError(t, err)

	return strings.Join(strings.Fields(string(text)), "")
}

type stateRecorder struct {
	mutex  sync.Mutex
	states []State
}

func (s *stateRecorder) hooks() Hooks {
	return Hooks{OnState: func(_ string, state State) {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		s.states = append(s.states, state)
	}}
}
