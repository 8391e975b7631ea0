package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, emit func()) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})
	emit()

	var fields map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
	return fields
}

func TestContextHelpersAttachFields(t *testing.T) {
	fields := capture(t, func() {
		WithComponent("api").Info().Msg("x")
	})
	assert.Equal(t, "api", fields["component"])

	fields = capture(t, func() {
		WithRequestID("req-1").Info().Msg("x")
	})
	assert.Equal(t, "req-1", fields["request_id"])

	fields = capture(t, func() {
		WithWorkspaceID("ws-1").Info().Msg("x")
	})
	assert.Equal(t, "ws-1", fields["workspace_id"])

	fields = capture(t, func() {
		WithDocumentID("doc-1").Info().Msg("x")
	})
	assert.Equal(t, "doc-1", fields["document_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	WithComponent("api").Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	WithComponent("api").Warn().Msg("kept")
	assert.NotZero(t, buf.Len())
}
