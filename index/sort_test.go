package index

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSortMode(t *testing.T) {
	for _, m := range SortModes() {
		got, err := ParseSortMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseSortMode(" Size-Desc ")
	require.NoError(t, err)
	assert.Equal(t, SizeDesc, got)

	got, err = ParseSortMode("random")
	assert.Error(t, err)
	assert.Equal(t, NameAsc, got)
}

func TestCollator_Natural(t *testing.T) {
	cl := newCollator("")
	assert.Negative(t, cl.compare("a2", "a10"))
	assert.Positive(t, cl.compare("a10", "a2"))
	assert.Zero(t, cl.compare("x", "x"))
	// no locale: byte order between letters
	assert.Negative(t, cl.compare("B", "a"))
}

func TestCollator_LeadingZeros(t *testing.T) {
	cl := newCollator("")
	assert.Negative(t, cl.compare("/d/1", "/d/1.01."))
	assert.Negative(t, cl.compare("/d/1.01.", "/d/01_"))
	assert.Negative(t, cl.compare("/d/1", "/d/01_"))
	// equal by value, ordered by bytes
	assert.Positive(t, cl.compare("a1", "a01"))
	assert.Equal(t, -cl.compare("a1", "a01"), cl.compare("a01", "a1"))
	// number tokens sit between punctuation and letters
	assert.Negative(t, cl.compare("a.png", "a1.png"))
	assert.Negative(t, cl.compare("a1", "a_"))
	assert.Negative(t, cl.compare("a-", "a0"))
}

func TestCollator_IsTotalOrder(t *testing.T) {
	cl := newCollator("")
	parts := []string{"0", "01", "1", "10", ".", "_", "-", "a"}
	rng := rand.New(rand.NewSource(1))
	names := make([]string, 60)
	for i := range names {
		var sb strings.Builder
		for n := 1 + rng.Intn(4); n > 0; n-- {
			sb.WriteString(parts[rng.Intn(len(parts))])
		}
		names[i] = "/d/" + sb.String()
	}

	for _, a := range names {
		for _, b := range names {
			ab := cl.compare(a, b)
			require.Equal(t, a == b, ab == 0, "%q vs %q", a, b)
			require.Equal(t, -ab, cl.compare(b, a), "%q vs %q", a, b)
			if ab >= 0 {
				continue
			}
			for _, c := range names {
				if cl.compare(b, c) < 0 {
					require.Negative(t, cl.compare(a, c), "%q < %q < %q", a, b, c)
				}
			}
		}
	}
}

func TestSetDirectory_LeadingZeroDirsReachable(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"v1", "v01_old", "v1.01.", "v1.1"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0755))
	}

	ix, _ := newTestIndex(t)
	ix.SetDirectoriesMode(true)
	require.NoError(t, ix.SetDirectory(dir, false, false))

	assert.Equal(t, []string{"v1", "v1.1", "v1.01.", "v01_old"}, names(ix.Dirs()))
	for i, d := range ix.Dirs() {
		assert.Equal(t, i, ix.IndexOfDir(d.Path), d.Name)
	}
	assert.Equal(t, filepath.Join(dir, "v01_old"), ix.NextOfDir(filepath.Join(dir, "v1.01.")))

	ix.RemoveDir(filepath.Join(dir, "v01_old"))
	assert.False(t, ix.ContainsDir(filepath.Join(dir, "v01_old")))
	assert.Equal(t, 3, ix.DirCount())
}

func TestCollator_Locale(t *testing.T) {
	cl := newCollator("en")
	require.NotNil(t, cl.c)
	assert.Negative(t, cl.compare("a2", "a10"))
	assert.Negative(t, cl.compare("a", "B"))
	// strings equal under collation still get a total order
	assert.NotZero(t, cl.compare("a", "A"))
	assert.Equal(t, -cl.compare("a", "A"), cl.compare("A", "a"))
}

func TestCollator_BadLocaleFallsBack(t *testing.T) {
	cl := newCollator("not a locale!")
	assert.Nil(t, cl.c)
	assert.Negative(t, cl.compare("img9", "img10"))
}

func TestComparators_TieBreakOnPath(t *testing.T) {
	cl := newCollator("")
	mt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Entry{Path: "/d/a.jpg", Size: 5, ModTime: mt}
	b := Entry{Path: "/d/b.jpg", Size: 5, ModTime: mt}

	for _, m := range SortModes() {
		c := m.comparator(cl)
		assert.NotZero(t, c(a, b), m.String())
		assert.Equal(t, -c(a, b), c(b, a), m.String())
	}
	assert.Negative(t, SizeAsc.comparator(cl)(a, b))
	assert.Positive(t, SizeDesc.comparator(cl)(a, b))
}

func TestSequence_InsertRemove(t *testing.T) {
	cmp := NameAsc.comparator(newCollator(""))
	s := newSequence()
	for _, p := range []string{"/c", "/a", "/b"} {
		s.insert(Entry{Path: p}, cmp)
	}
	assert.Equal(t, 3, s.len())
	assert.Equal(t, 0, s.indexOf("/a", cmp))
	assert.Equal(t, 2, s.indexOf("/c", cmp))
	assert.Equal(t, -1, s.indexOf("/z", cmp))

	e := s.removeAt(1)
	assert.Equal(t, "/b", e.Path)
	assert.False(t, s.contains("/b"))
	assert.Equal(t, 1, s.indexOf("/c", cmp))
}
