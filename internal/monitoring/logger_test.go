package monitoring

import (
	"fmt"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	Logf("[Fill] obs=%d", 23523)

	if len(lines) != 1 || lines[0] != "[Fill] obs=23523" {
		t.Fatalf("unexpected captured lines: %v", lines)
	}

	// nil installs a no-op logger
	SetLogger(nil)
	Logf("dropped")
	if len(lines) != 1 {
		t.Errorf("no-op logger should not reach previous sink, got %v", lines)
	}
}

func TestWarnf(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Warnf("[unit-fallback] obs=%d column=%s", 7, "DETX")

	if !strings.HasPrefix(got, "[warn] ") {
		t.Errorf("Warnf output %q missing [warn] marker", got)
	}
	if !strings.Contains(got, "column=DETX") {
		t.Errorf("Warnf output %q missing formatted args", got)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}
