package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
)

func TestNewWithoutURLIsNoop(t *testing.T) {
	p, err := New(config.NotifyConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), "j", &pipeline.BuildResult{}))
	assert.NoError(t, p.Close())
}

func TestNewUnreachableServer(t *testing.T) {
	_, err := New(config.NotifyConfig{NATSURL: "nats://127.0.0.1:1", Subject: "s", Stream: "S"}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))
}

func TestEncodeMessage(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	data, err := encode("job-1", &pipeline.BuildResult{Success: true, Site: "example.com", TotalImages: 2}, now)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "job-1", m["jobId"])
	assert.Equal(t, "example.com", m["site"])
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "2025-03-01T10:00:00Z", m["publishedAt"])
	result := m["result"].(map[string]any)
	assert.EqualValues(t, 2, result["totalImages"])
	assert.Equal(t, "sitebuilder-job-1", msgID(" job-1 "))
}
