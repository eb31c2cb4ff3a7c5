package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain file", "index.html", "index.html"},
		{"nested file", "src/app.py", "src/app.py"},
		{"workspace prefix", "proj/style.css", "style.css"},
		{"doubled prefix", "proj/proj/index.html", "index.html"},
		{"leading slash", "/proj/index.html", "index.html"},
		{"dot slash", "  ./proj/./a.txt ", "a.txt"},
		{"backslashes", `proj\sub\x.js`, "sub/x.js"},
		{"only workspace name", "proj", "proj"},
		{"workspace name with slash", "proj/", "proj"},
		{"collapses to name", "proj/proj", "proj/proj"},
		{"deep collapse keeps two segments", "/proj/proj/proj", "proj/proj"},
		{"blank segment before name", "/ /proj", "proj"},
		{"empty", "", ""},
		{"prefix not at start", "other/proj/x", "other/proj/x"},
		{"parent escape untouched", "../etc/passwd", "../etc/passwd"},
		{"similar name is not a prefix", "project/x", "project/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw, "proj"))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"index.html", "proj/proj/index.html", "/proj/index.html", "proj", "proj/",
		"proj/proj", "a//proj", "//", "./proj", "proj/.", "proj//index.html",
		"/a/b/c", "../x", `C:\proj\file.txt`, " proj/ proj/x ",
		"/ /proj", " / proj/ ", "proj/ . /", "/\t/proj/ ",
	}
	for _, in := range inputs {
		once := Normalize(in, "proj")
		assert.Equal(t, once, Normalize(once, "proj"), "input %q", in)
	}
}
