package reload

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/validate"
)

const listUserRequest = "saltfishpr.demo.user.v1.ListUserRequest"

// copyTestdata copies the shared testdata tree so tests can edit it.
func copyTestdata(t *testing.T) string {
	t.Helper()

	src := filepath.Join("..", "..", "testdata")
	dst := t.TempDir()
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
	require.NoError(t, err)
	return filepath.Join(dst, "protoguard.yaml")
}

func testOptions(t *testing.T) (Options, *observability.Metrics) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return Options{Logger: logger, Metrics: metrics}, metrics
}

func limitViolations(t *testing.T, h *Holder, limit int32) validate.Violations {
	t.Helper()

	msg, err := h.Schema().NewMessage(listUserRequest)
	require.NoError(t, err)
	msg.Set(msg.Descriptor().Fields().ByName("limit"), protoreflect.ValueOfInt32(limit))

	violations, err := h.Validate(context.Background(), msg, validate.AccumulateAll)
	require.NoError(t, err)
	return violations
}

func tightenLimit(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	updated := strings.Replace(string(data), "limit: { gte: 0, lte: 500 }", "limit: { gte: 0, lte: 100 }", 1)
	require.NotEqual(t, string(data), updated)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))
}

func TestBuild(t *testing.T) {
	path := copyTestdata(t)
	opts, _ := testOptions(t)

	snap, err := Build(context.Background(), path, opts)
	require.NoError(t, err)
	assert.Equal(t, validate.AccumulateAll, snap.Engine.Mode())
	assert.True(t, snap.Engine.Registry().Sealed())
	assert.Contains(t, snap.WatchRoots(), filepath.Dir(path))
	assert.Contains(t, snap.WatchRoots(), filepath.Join(filepath.Dir(path), "proto"))

	failFast := validate.FailFast
	opts.Mode = &failFast
	snap, err = Build(context.Background(), path, opts)
	require.NoError(t, err)
	assert.Equal(t, validate.FailFast, snap.Engine.Mode())

	_, err = Build(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), opts)
	assert.Error(t, err)
}

func TestWatcher_Reload(t *testing.T) {
	path := copyTestdata(t)
	opts, metrics := testOptions(t)

	snap, err := Build(context.Background(), path, opts)
	require.NoError(t, err)
	holder := NewHolder(snap)
	assert.Empty(t, limitViolations(t, holder, 300))

	watcher := NewWatcher(holder, opts)
	var reloaded *Snapshot
	watcher.OnReload(func(s *Snapshot) { reloaded = s })

	tightenLimit(t, path)
	require.NoError(t, watcher.Reload(context.Background()))
	assert.Same(t, holder.Load(), reloaded)
	assert.Len(t, limitViolations(t, holder, 300), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ReloadsTotal.WithLabelValues(StatusSuccess)))

	// A broken manifest keeps the previous snapshot.
	require.NoError(t, os.WriteFile(path, []byte("version: v9\n"), 0644))
	assert.Error(t, watcher.Reload(context.Background()))
	assert.Same(t, reloaded, holder.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ReloadsTotal.WithLabelValues(StatusFailure)))
}

func TestWatcher_ReloadSerialized(t *testing.T) {
	path := copyTestdata(t)
	opts, metrics := testOptions(t)

	snap, err := Build(context.Background(), path, opts)
	require.NoError(t, err)
	holder := NewHolder(snap)
	watcher := NewWatcher(holder, opts)

	var active, maxActive int32
	var last atomic.Pointer[Snapshot]
	watcher.OnReload(func(s *Snapshot) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		last.Store(s)
		atomic.AddInt32(&active, -1)
	})

	const callers = 4
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- watcher.Reload(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
	assert.Same(t, last.Load(), holder.Load())
	assert.Equal(t, float64(callers), testutil.ToFloat64(metrics.ReloadsTotal.WithLabelValues(StatusSuccess)))
}

func TestWatcher_RunOnFileChange(t *testing.T) {
	path := copyTestdata(t)
	opts, _ := testOptions(t)

	snap, err := Build(context.Background(), path, opts)
	require.NoError(t, err)
	holder := NewHolder(snap)

	watcher := NewWatcher(holder, opts, WithDebounce(20*time.Millisecond))
	reloads := make(chan *Snapshot, 4)
	watcher.OnReload(func(s *Snapshot) { reloads <- s })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// Let the watcher register its directories before editing.
	time.Sleep(100 * time.Millisecond)
	tightenLimit(t, path)

	select {
	case s := <-reloads:
		assert.NotSame(t, snap, s)
	case <-time.After(5 * time.Second):
		t.Fatal("rules were not reloaded after the manifest changed")
	}
	assert.Len(t, limitViolations(t, holder, 300), 1)

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_Schedule(t *testing.T) {
	path := copyTestdata(t)
	opts, _ := testOptions(t)

	snap, err := Build(context.Background(), path, opts)
	require.NoError(t, err)
	holder := NewHolder(snap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad := NewWatcher(holder, opts, WithSchedule("not a schedule"))
	assert.Error(t, bad.Run(ctx))

	watcher := NewWatcher(holder, opts, WithSchedule("@every 1s"))
	reloads := make(chan *Snapshot, 4)
	watcher.OnReload(func(s *Snapshot) { reloads <- s })

	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	select {
	case <-reloads:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled reload did not run")
	}

	cancel()
	require.NoError(t, <-done)
}
