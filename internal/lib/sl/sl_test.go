package sl_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	attr := sl.Err(errors.New("something went wrong"))

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	attr := sl.Err(nil)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, "<nil>", attr.Value.String())
}

func TestOp(t *testing.T) {
	attr := sl.Op("store.JoinPlan")

	assert.Equal(t, "op", attr.Key)
	assert.Equal(t, "store.JoinPlan", attr.Value.String())
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := sl.New("local", &buf)
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
	log.Info("plan joined", sl.Op("store.JoinPlan"))
	assert.Contains(t, buf.String(), "op=store.JoinPlan")

	buf.Reset()
	log = sl.New("prod", &buf)
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
	log.Info("plan joined", sl.Op("store.JoinPlan"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "store.JoinPlan", entry["op"])
}
