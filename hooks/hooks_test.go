package hooks_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/hooks"
)

func TestInMemoryMetrics(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	ctx := context.Background()

	m.AfterStage(ctx, "decode", 10*time.Millisecond, nil)
	m.AfterStage(ctx, "decode", 30*time.Millisecond, nil)
	m.AfterStage(ctx, "transform", 5*time.Millisecond, errors.New("boom"))

	snap := m.Snapshot()
	if snap.StageCalls["decode"] != 2 {
		t.Fatalf("decode calls = %d, want 2", snap.StageCalls["decode"])
	}
	if snap.StageDurationsMs["decode"] != 40 {
		t.Fatalf("decode duration = %dms, want 40", snap.StageDurationsMs["decode"])
	}
	if snap.StageErrors["transform"] != 1 {
		t.Fatalf("transform errors = %d, want 1", snap.StageErrors["transform"])
	}
	if snap.StageErrors["decode"] != 0 {
		t.Fatalf("decode errors = %d, want 0", snap.StageErrors["decode"])
	}
}

func TestInMemoryMetrics_Concurrent(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.AfterStage(ctx, "decode", time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().StageCalls["decode"]; got != 800 {
		t.Fatalf("decode calls = %d, want 800", got)
	}
}

func TestInMemoryMetrics_SnapshotIsCopy(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	m.AfterStage(context.Background(), "decode", time.Millisecond, nil)

	snap := m.Snapshot()
	snap.StageCalls["decode"] = 99
	if got := m.Snapshot().StageCalls["decode"]; got != 1 {
		t.Fatalf("snapshot mutation leaked into the store: %d", got)
	}
}

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	logger := hooks.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	h := hooks.NewLoggingHook(logger)
	ctx := context.Background()

	h.BeforeStage(ctx, "decode")
	h.AfterStage(ctx, "decode", 2*time.Millisecond, nil)
	h.AfterStage(ctx, "transform", time.Millisecond, errors.New("boom"))

	out := buf.String()
	for _, want := range []string{"pipeline.stage.start", "pipeline.stage.done", "pipeline.stage.error", "stage=transform", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}
