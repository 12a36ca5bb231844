package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/config"
)

type stubPrompter struct{}

func (stubPrompter) Prompt(ctx context.Context, label string) (string, error) {
	return "", nil
}

func TestNewRequiresCollaborators(t *testing.T) {
	logger := zap.NewNop()
	cfg := &config.Config{}

	_, err := New(nil, cfg, stubPrompter{})
	assert.ErrorContains(t, err, "logger")

	_, err = New(logger, nil, stubPrompter{})
	assert.ErrorContains(t, err, "config")

	_, err = New(logger, cfg, nil)
	assert.ErrorContains(t, err, "prompter")

	o, err := New(logger, cfg, stubPrompter{})
	require.NoError(t, err)
	assert.NotNil(t, o)
}
