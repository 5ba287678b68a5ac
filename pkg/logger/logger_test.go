package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")

	log.Infof("[Test] hidden %d", 1)
	log.Warnf("[Test] shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[Test] shown 2")
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug").WithField("provider", "apibay")

	log.Debug("searching")

	assert.Contains(t, buf.String(), "provider=apibay")
	assert.Contains(t, buf.String(), "searching")
}

func TestIsKnownLevel(t *testing.T) {
	assert.True(t, IsKnownLevel("Debug"))
	assert.False(t, IsKnownLevel("trace"))
}
