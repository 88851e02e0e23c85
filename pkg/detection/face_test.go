package detection

import (
	"path/filepath"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFaceHinterRequiresCascade(t *testing.T) {
	_, err := NewFaceHinter(nil)
	require.Error(t, err)

	_, err = LoadFaceHinter(filepath.Join(t.TempDir(), "facefinder"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read face cascade")
}

func TestStrongest(t *testing.T) {
	dets := []pigo.Detection{
		{Row: 10, Col: 10, Scale: 20, Q: 3},
		{Row: 50, Col: 60, Scale: 40, Q: 12},
		{Row: 90, Col: 90, Scale: 0, Q: 40},
		{Row: 30, Col: 30, Scale: 30, Q: 8},
	}

	best, ok := strongest(dets, DefaultFaceMinQ)
	require.True(t, ok)
	assert.Equal(t, 60, best.Col)
	assert.Equal(t, 50, best.Row)

	_, ok = strongest(dets, 50)
	assert.False(t, ok)

	_, ok = strongest(nil, 0)
	assert.False(t, ok)
}
