package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level  string
		format string
		want   logrus.Level
		json   bool
	}{
		{"debug", "text", logrus.DebugLevel, false},
		{"WARN", "json", logrus.WarnLevel, true},
		{"nonsense", "", logrus.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := New(tt.level, tt.format)
			if logger.GetLevel() != tt.want {
				t.Errorf("Expected level %s, got %s", tt.want, logger.GetLevel())
			}
			_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
			if isJSON != tt.json {
				t.Errorf("Expected json formatter=%v, got %T", tt.json, logger.Formatter)
			}
		})
	}
}
