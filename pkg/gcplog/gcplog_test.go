package gcplog

import (
	"testing"

	"cloud.google.com/go/logging"
	"github.com/stretchr/testify/require"
)

func TestFallsBackToStdout(t *testing.T) {
	t.Setenv("GCP_PROJECT_ID", "")
	t.Setenv("GCP_LOGNAME", "")
	log, err := NewLog()
	require.NoError(t, err)
	_, isGCP := log.(*Logger)
	require.False(t, isGCP)
	log.Infof("hello")
}

func TestSeverity(t *testing.T) {
	require.Equal(t, logging.Debug, LevelToGCP(LevelDebug))
	require.Equal(t, logging.Warning, LevelToGCP(LevelWarn))
	require.Equal(t, logging.Critical, LevelToGCP(LevelCritical))
	require.Equal(t, logging.Default, LevelToGCP(Level(99)))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, LevelInfo, level)

	level, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	require.Equal(t, LevelDebug, level)

	level, err = ParseLevel("warning")
	require.NoError(t, err)
	require.Equal(t, LevelWarn, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestBadLevelRejected(t *testing.T) {
	t.Setenv("GCP_PROJECT_ID", "some-project")
	t.Setenv("GCP_LOGNAME", "yorubaocr")
	t.Setenv("GCP_LOGLEVEL", "loud")
	_, err := NewLog()
	require.Error(t, err)
}
