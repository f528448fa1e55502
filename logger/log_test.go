package logger_test

import (
	"strings"
	"testing"

	"github.com/arret/arret/logger"
)

func TestDeduplicatesRepeatedEntries(t *testing.T) {
	logger.Clear()
	logger.Log(logger.Allow, "test", "same message")
	logger.Log(logger.Allow, "test", "same message")
	logger.Log(logger.Allow, "test", "same message")

	var out strings.Builder
	logger.Write(&out)

	if strings.Count(out.String(), "\n") != 1 {
		t.Fatalf("expected a single collapsed entry, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "repeat x3") {
		t.Fatalf("expected repeat counter, got: %s", out.String())
	}
}

func TestDistinctEntriesAreNotCollapsed(t *testing.T) {
	logger.Clear()
	logger.Log(logger.Allow, "test", "first")
	logger.Log(logger.Allow, "test", "second")

	var out strings.Builder
	logger.Write(&out)

	if strings.Count(out.String(), "\n") != 2 {
		t.Fatalf("expected two entries, got:\n%s", out.String())
	}
}

func TestTail(t *testing.T) {
	logger.Clear()
	for i := 0; i < 5; i++ {
		logger.Logf(logger.Allow, "test", "entry %d", i)
	}

	var out strings.Builder
	logger.Tail(&out, 2)

	if strings.Count(out.String(), "\n") != 2 {
		t.Fatalf("expected tail of 2 entries, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "entry 4") {
		t.Fatalf("expected most recent entry in tail, got: %s", out.String())
	}
}
