package util_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/downfa11-org/segmentlog/util"
	"gopkg.in/yaml.v3"
)

func TestLogLevelUnmarshal(t *testing.T) {
	var y struct {
		Level util.LogLevel `yaml:"log_level"`
	}
	if err := yaml.Unmarshal([]byte("log_level: warn\n"), &y); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if y.Level != util.LogLevelWarn {
		t.Errorf("yaml string level = %v; want warn", y.Level)
	}
	if err := yaml.Unmarshal([]byte("log_level: 3\n"), &y); err != nil {
		t.Fatalf("yaml unmarshal int: %v", err)
	}
	if y.Level != util.LogLevelError {
		t.Errorf("yaml int level = %v; want error", y.Level)
	}

	var j struct {
		Level util.LogLevel `json:"log_level"`
	}
	if err := json.Unmarshal([]byte(`{"log_level":"DEBUG"}`), &j); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if j.Level != util.LogLevelDebug {
		t.Errorf("json level = %v; want debug", j.Level)
	}
	if err := json.Unmarshal([]byte(`{"log_level":true}`), &j); err == nil {
		t.Error("expected error for boolean log level")
	}
}

func TestLeveledOutput(t *testing.T) {
	var buf bytes.Buffer
	util.SetOutput(&buf)
	prev := util.GetLevel()
	defer func() {
		util.SetLevel(prev)
		util.SetOutput(nil)
	}()

	util.SetLevel(util.LogLevelWarn)
	util.Info("hidden %d", 1)
	util.Warn("shown %d", 2)
	util.Error("failed %d", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") || !strings.Contains(out, "[ERROR] failed 3") {
		t.Errorf("missing expected lines: %q", out)
	}
}
