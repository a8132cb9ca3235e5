package shared

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestShared(t *testing.T) {
	t.Run("NewLogger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)

		logger.Info("hello", "key", "value")

		if !bytes.Contains(buf.Bytes(), []byte("hello")) {
			t.Errorf("expected log output, got %s", buf.String())
		}
	})

	t.Run("NewLogger Nil Writer", func(t *testing.T) {
		if NewLogger(nil) == nil {
			t.Error("expected logger with default writer")
		}
	})

	t.Run("WithLogger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)

		child := WithLogger(logger, "component", "relay")
		child.Info("scoped")

		if !bytes.Contains(buf.Bytes(), []byte("component")) {
			t.Errorf("expected child logger fields, got %s", buf.String())
		}
	})

	t.Run("SetLogLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)

		SetLogLevel(logger, log.ErrorLevel)
		logger.Info("suppressed")

		if bytes.Contains(buf.Bytes(), []byte("suppressed")) {
			t.Error("info logs should be suppressed at error level")
		}
	})

	t.Run("GenerateID", func(t *testing.T) {
		id := GenerateID()
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("expected valid uuid, got %s: %v", id, err)
		}

		if GenerateID() == GenerateID() {
			t.Error("ids should be unique")
		}
	})
}
