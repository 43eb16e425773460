//go:build darwin || dragonfly || freebsd || openbsd || netbsd || linux || solaris || windows

package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildName(t *testing.T) {
	name, ok := childName("/a/b", "/a/b/c.jpg")
	assert.True(t, ok)
	assert.Equal(t, "c.jpg", name)

	_, ok = childName("/a/b", "/a/b")
	assert.False(t, ok)
	_, ok = childName("/a/b", "/a/b/c/d.jpg")
	assert.False(t, ok)
}
