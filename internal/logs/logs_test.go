package logs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_KeepsNewestLines(t *testing.T) {
	r := NewRing(3)
	assert.Empty(t, r.Lines())
	for i := 1; i <= 5; i++ {
		r.Add(fmt.Sprintf("line %d", i))
	}
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, r.Lines())

	var nilRing *Ring
	nilRing.Add("ignored")
	assert.Nil(t, nilRing.Lines())
}

func TestSetup_MirrorsIntoRing(t *testing.T) {
	var buf bytes.Buffer
	logger, ring, closeFn, err := Setup(Options{Level: "debug", Output: &buf})
	require.NoError(t, err)
	defer closeFn()

	logger.WithFields(logrus.Fields{"path": "/faq", "status": 200}).Debug("backend request")
	lines := ring.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "DEBUG backend request path=/faq status=200")
	assert.Contains(t, buf.String(), "backend request")
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, _, closeFn, err := Setup(Options{Level: "warn", File: path})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("visible")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}

func TestSetup_BadLevel(t *testing.T) {
	_, _, _, err := Setup(Options{Level: "loud"})
	assert.Error(t, err)
}
