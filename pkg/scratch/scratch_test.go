package scratch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireCreatesUniqueEmptyFiles(t *testing.T) {
	area := NewArea(Options{Dir: t.TempDir()})

	a, err := area.Acquire(Image, ".jpg")
	require.NoError(t, err)
	b, err := area.Acquire(Image, ".jpg")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path(), b.Path())
	assert.True(t, strings.HasSuffix(a.Path(), ".jpg"))
	assert.True(t, strings.HasPrefix(filepath.Base(a.Path()), defaultPrefix))

	stat, err := os.Stat(a.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stat.Size())

	assert.Equal(t, 2, area.Acquired(Image))
	assert.Equal(t, 0, area.Acquired(Pdf))
	assert.Equal(t, 2, area.Live())

	assert.NoError(t, a.Release())
	assert.NoError(t, b.Release())
	assert.Equal(t, 0, area.Live())
}

func TestReleaseIsIdempotent(t *testing.T) {
	area := NewArea(Options{Dir: t.TempDir()})

	h, err := area.Acquire(Pdf, ".pdf")
	require.NoError(t, err)

	assert.NoError(t, h.Release())
	assert.NoError(t, h.Release())
	assert.NoFileExists(t, h.Path())
	assert.Equal(t, 0, area.Live())
}

func TestReleaseIgnoresMissingFile(t *testing.T) {
	area := NewArea(Options{Dir: t.TempDir()})

	h, err := area.Acquire(Pdf, ".pdf")
	require.NoError(t, err)
	require.NoError(t, os.Remove(h.Path()))

	assert.NoError(t, h.Release())
	assert.Equal(t, 0, area.Live())
}

func TestAcquireFailsForMissingDir(t *testing.T) {
	area := NewArea(Options{Dir: filepath.Join(t.TempDir(), "missing")})

	h, err := area.Acquire(Image, ".png")
	assert.Error(t, err)
	assert.Nil(t, h)
	assert.Equal(t, 0, area.Live())
}

func TestAcquireConcurrent(t *testing.T) {
	area := NewArea(Options{Dir: t.TempDir()})

	var wg sync.WaitGroup
	paths := make(chan string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := area.Acquire(Image, ".png")
			if !assert.NoError(t, err) {
				return
			}
			defer h.Release()
			paths <- h.Path()
		}()
	}
	wg.Wait()
	close(paths)

	seen := map[string]bool{}
	for p := range paths {
		assert.False(t, seen[p])
		seen[p] = true
	}
	assert.Len(t, seen, 32)
	assert.Equal(t, 0, area.Live())
}

func TestSweepRemovesOnlyStalePrefixedFiles(t *testing.T) {
	dir := t.TempDir()
	area := NewArea(Options{Dir: dir})

	stale := filepath.Join(dir, defaultPrefix+"old.pdf")
	fresh := filepath.Join(dir, defaultPrefix+"new.pdf")
	foreign := filepath.Join(dir, "other-old.pdf")
	for _, p := range []string{stale, fresh, foreign} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(foreign, old, old))

	removed, err := area.Sweep(time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, foreign)
}
