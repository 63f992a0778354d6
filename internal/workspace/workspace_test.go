package workspace

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"/", ""},
		{".", ""},
		{"..", ""},
		{"hello.txt", "hello.txt"},
		{"/guide/intro.md", "guide/intro.md"},
		{"guide//./intro.md", "guide/intro.md"},
		{"../../secret", "secret"},
		{"a/../b", "a/b"},
		{`..\..\windows\system32`, "windows/system32"},
		{"/../../../etc/passwd", "etc/passwd"},
		{"...", "..."},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p := SanitizePath(tt.raw)
			assert.Equal(t, tt.want, p.String())
			assert.Equal(t, tt.want == "", p.IsRoot())
		})
	}
}

func TestSanitizePathStaysInsideRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "checkout")
	inputs := []string{
		"../../etc/passwd",
		"/etc/passwd",
		"a/../../..",
		"./../x/../../y",
		"....//..//z",
		`\..\..\boot.ini`,
	}

	for _, raw := range inputs {
		joined := SanitizePath(raw).In(root)
		assert.True(t, Within(root, joined), "raw %q joined to %q", raw, joined)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		raw     string
		want    Name
		wantErr bool
	}{
		{raw: "docs", want: "docs"},
		{raw: "  docs  ", want: "docs"},
		{raw: "../../etc", want: "etc"},
		{raw: "team/docs", want: "docs"},
		{raw: `..\docs`, want: "docs"},
		{raw: "", wantErr: true},
		{raw: "..", wantErr: true},
		{raw: "/", wantErr: true},
		{raw: "docs\x00", wantErr: true},
		{raw: "do\ncs", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := SanitizeName(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidName))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRootJoinConfined(t *testing.T) {
	root := Root(t.TempDir())

	for _, raw := range []string{"../outside", "a/b/../../..", "/abs/name", "docs"} {
		name, err := SanitizeName(raw)
		require.NoError(t, err)

		dir, err := root.Join(name)
		require.NoError(t, err)
		assert.True(t, Within(string(root), dir))
		assert.NotEqual(t, filepath.Clean(string(root)), dir)
	}

	_, err := root.Join(Name("../x"))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("guide/intro.md"))
	assert.Error(t, ValidatePath("guide\x00/intro.md"))
}
