package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func TestSelectOrderAndBase(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/styles/b.css":          "div{color:blue}",
		"src/styles/a.css":          "body{color:red}",
		"src/styles/nested/c.css":   "p{}",
		"src/js/main.js":            "main()",
		"src/js/components/menu.js": "menu()",
	})

	styles, err := Select(root, []string{"src/styles/**/*.css"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.css", "b.css", "nested/c.css"}, styles.Paths())
	assert.Equal(t, "src/styles/a.css", styles[0].Source)
	assert.Equal(t, "body{color:red}", string(styles[0].Contents))

	scripts, err := Select(root, []string{"src/js/components/**/*.js", "src/js/main.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"menu.js", "main.js"}, scripts.Paths())
}

func TestSelectDedupAndExclude(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/js/main.js":         "main()",
		"src/js/vendor/x.js":     "x()",
		"src/js/components/a.js": "a()",
	})

	set, err := Select(root, []string{"src/js/main.js", "src/js/**/*.js", "!src/js/vendor/**"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/js/main.js", "src/js/components/a.js"}, []string{set[0].Source, set[1].Source})
	assert.Len(t, set, 2)
}

func TestSelectZeroMatchesIsNotAnError(t *testing.T) {
	root := t.TempDir()
	set, err := Select(root, []string{"src/images/**/*.png"})
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestSelectMissingRoot(t *testing.T) {
	_, err := Select(filepath.Join(t.TempDir(), "missing"), []string{"**/*"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))
}

func TestMatchHonoursExclusions(t *testing.T) {
	patterns := []string{"src/images/**/*.png", "!src/images/raw/**"}
	assert.True(t, Match(patterns, "src/images/a/logo.png"))
	assert.False(t, Match(patterns, "src/images/raw/logo.png"))
	assert.False(t, Match(patterns, "src/images/logo.jpg"))
}

func TestBase(t *testing.T) {
	assert.Equal(t, "src/styles", Base("src/styles/**/*.css"))
	assert.Equal(t, "src/js", Base("src/js/main.js"))
	assert.Equal(t, "src/resources", Base("src/resources/**"))
	assert.Equal(t, "src/images", Base("!src/images/*.svg"))
}

func TestWriteOnlyTouchesProducedPaths(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, map[string]string{"app.js": "old bundle"})

	written, err := Write(out, "images", Set{New("icons/a.png", []byte("png"))})
	require.NoError(t, err)
	assert.Equal(t, []string{"images/icons/a.png"}, written)

	data, err := os.ReadFile(filepath.Join(out, "images", "icons", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	untouched, err := os.ReadFile(filepath.Join(out, "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "old bundle", string(untouched))

	entries, err := os.ReadDir(filepath.Join(out, "images", "icons"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files may remain")
}

func TestCleanRemovesRoot(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dist")
	writeTree(t, out, map[string]string{"images/logo.png": "x"})

	require.NoError(t, Clean(out))
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, Clean(out), "cleaning a missing root is a no-op")
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Claim("styles", []string{"main.css"}))
	require.NoError(t, l.Claim("styles", []string{"main.css"}), "same owner may rewrite")

	err := l.Claim("scripts", []string{"app.js", "main.css"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	_, claimed := l.Owner("app.js")
	assert.False(t, claimed, "failed claim records nothing")

	l.Reset()
	require.NoError(t, l.Claim("scripts", []string{"main.css"}))
}

func TestLocate(t *testing.T) {
	a := Asset{
		Path:   "app.js",
		Source: "app.js",
		Segments: []Segment{
			{Source: "src/js/components/menu.js", StartLine: 1, Lines: 3},
			{Source: "src/js/main.js", StartLine: 4, Lines: 2},
		},
	}
	src, line := a.Locate(5)
	assert.Equal(t, "src/js/main.js", src)
	assert.Equal(t, 2, line)

	src, line = a.Locate(99)
	assert.Equal(t, "app.js", src)
	assert.Equal(t, 99, line)
}

func TestLineCount(t *testing.T) {
	assert.Equal(t, 0, New("a", nil).LineCount())
	assert.Equal(t, 1, New("a", []byte("x")).LineCount())
	assert.Equal(t, 2, New("a", []byte("x\ny\n")).LineCount())
	assert.Equal(t, 2, New("a", []byte("x\ny")).LineCount())
}
