// Package testimage builds ready-to-use in-memory volumes for tests: random
// byte generation, a fresh zero-filled image and a pre-formatted Volume
// fixture, with
// fail-the-test-on-error ergonomics.
package testimage

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hisahi/fat12/blockimage"
	"github.com/hisahi/fat12/volume"
)

// RandomBytes returns n random bytes, failing the test on entropy failure.
func RandomBytes(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err, "failed to generate %d random bytes", n)
	return buf
}

// NewImage returns a fresh zero-filled Image of exactly blockimage.Capacity
// bytes.
func NewImage(t *testing.T) *blockimage.Image {
	t.Helper()
	return blockimage.New()
}

// Formatted returns a freshly formatted volume mounted read-write over a
// fresh in-memory image, failing the test if formatting fails.
func Formatted(t *testing.T, label string) (*volume.Volume, *blockimage.Image) {
	t.Helper()
	img := NewImage(t)
	v, err := volume.Format(img, label, volume.MountOptions{})
	require.NoError(t, err, "failed to format test volume")
	return v, img
}
