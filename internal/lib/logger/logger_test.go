package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/MJE43/slot-tracker-go/internal/lib/logger/sl"
)

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		env       string
		wantDebug bool
		wantJSON  bool
	}{
		{"local", true, false},
		{"dev", true, true},
		{"prod", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(tt.env, &buf)
			log.Debug("debug line")
			log.Info("info line", sl.Err(errors.New("boom")))

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			last := strings.TrimSpace(out[strings.LastIndex(strings.TrimSpace(out), "\n")+1:])
			if tt.wantJSON {
				var m map[string]any
				if err := json.Unmarshal([]byte(last), &m); err != nil {
					t.Fatalf("not JSON: %q", last)
				}
				if m["error"] != "boom" {
					t.Errorf("error attr = %v", m["error"])
				}
			} else if !strings.Contains(last, "error=boom") {
				t.Errorf("text line missing error attr: %q", last)
			}
		})
	}
}
