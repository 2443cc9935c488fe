package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/cookshelf/recipe-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestDBHandler_StoresErrorsOnly(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)

	var out bytes.Buffer
	dbHandler := NewDBHandler(db, time.Hour)
	t.Cleanup(dbHandler.Stop)

	logger := slog.New(NewMultiHandler(
		slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}),
		dbHandler,
	)).With("request_id", "req-1")

	logger.Info("recipe created", "recipe_id", 3)
	logger.Error("recipe request failed", "user_id", uint(7), "error", "disk full", "path", "/api/1/recipes")
	dbHandler.Flush()

	assert.Equal(t, 2, bytes.Count(out.Bytes(), []byte("\n")), "stdout receives every level")

	var logs []models.SystemLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "recipe request failed", entry.Message)
	assert.Equal(t, "req-1", entry.RequestID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, uint(7), *entry.UserID)
	assert.Equal(t, "disk full", entry.Error)

	var extra map[string]any
	require.NoError(t, json.Unmarshal(entry.Extra, &extra))
	assert.Equal(t, "/api/1/recipes", extra["path"])
}

func TestPurgeOlderThan(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)

	now := time.Now()
	require.NoError(t, db.Create(&[]models.SystemLog{
		{ID: uuid.New(), Timestamp: now.Add(-40 * 24 * time.Hour), Level: "ERROR", Message: "old"},
		{ID: uuid.New(), Timestamp: now.Add(-time.Hour), Level: "ERROR", Message: "recent"},
	}).Error)

	assert.Equal(t, int64(1), PurgeOlderThan(db, now.Add(-retention)))

	var left []models.SystemLog
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "recent", left[0].Message)
}
