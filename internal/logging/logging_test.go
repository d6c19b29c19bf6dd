package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestSetupJSON(t *testing.T) {
	logger := Setup(Config{Level: "debug", Format: "json"})
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Setup(Config{}) })

	assert.Equal(t, log.DebugLevel, logger.GetLevel())
	DB().WithField("pool", "main").Debug("pool opened")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "db", line["component"])
	assert.Equal(t, "main", line["pool"])
	assert.Equal(t, "pool opened", line["msg"])
}

func TestSetupFallsBackToInfo(t *testing.T) {
	logger := Setup(Config{Level: "loud", Format: "text"})
	t.Cleanup(func() { Setup(Config{}) })

	assert.Equal(t, log.InfoLevel, logger.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, logger.Formatter)
	assert.Same(t, logger, Root())
}

func TestComponentLoggers(t *testing.T) {
	for name, entry := range map[string]*log.Entry{
		"db":        DB(),
		"search":    Search(),
		"activity":  Activity(),
		"tasks":     Tasks(),
		"scheduler": Scheduler(),
		"cli":       CLI(),
	} {
		assert.Equal(t, name, entry.Data["component"])
	}
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, gormLevel("silent"))
	assert.Equal(t, gormlogger.Error, gormLevel("ERROR"))
	assert.Equal(t, gormlogger.Info, gormLevel("info"))
	assert.Equal(t, gormlogger.Warn, gormLevel(""))
	assert.NotNil(t, Gorm(DB(), "warn", time.Second))
}
