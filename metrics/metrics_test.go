package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetCounters(t *testing.T) {
	before := testutil.ToFloat64(DatasetImagesTotal.WithLabelValues("tree", OutcomeAccepted))
	DatasetImagesTotal.WithLabelValues("tree", OutcomeAccepted).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(DatasetImagesTotal.WithLabelValues("tree", OutcomeAccepted)))
}

func TestWriteTextfile(t *testing.T) {
	assert.NoError(t, WriteTextfile(""))

	TrainEpochsTotal.Inc()
	path := filepath.Join(t.TempDir(), "pose.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "pose_train_epochs_total"))
}
