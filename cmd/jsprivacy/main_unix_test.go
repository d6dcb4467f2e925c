//go:build linux || darwin || freebsd || netbsd || solaris || openbsd || js || wasm

package main

import (
	"testing"

	"github.com/tdewolff/test"
)

func TestIsDir(t *testing.T) {
	cases := []struct {
		name     string
		dir      string
		expected bool
	}{
		{"SimpleFile", "file", false},
		{"FileInCurrentDirectory", "./file", false},
		{"FileInParentDirectory", "../file", false},
		{"FileInFullyQualifiedDirectory", "/path/to/file", false},
		{"TrailingSeparator", "path/to/dir/", true},
		{"CurrentDirectory", ".", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			actual := IsDir(c.dir)
			test.T(t, actual, c.expected)
		})
	}
}
