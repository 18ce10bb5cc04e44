// Copyright 2024 the Agent Stats Exporter authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agentstats

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentstats/agent-stats-exporter/internal/project"
	"github.com/agentstats/agent-stats-exporter/internal/queryengine"
	"github.com/agentstats/agent-stats-exporter/internal/serverenv"
	"github.com/agentstats/agent-stats-exporter/internal/storage"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-retry"
)

const testReport = "agent_id,avg_call_length_sec,p90_call_length_sec\n" +
	"\"a1\",31.5,58\n" +
	"\"a2\",44,90\n"

// fakeEngine returns canned responses for the count probe and the
// aggregation, and records every query it receives.
type fakeEngine struct {
	mu sync.Mutex

	count     string
	countErr  error
	report    string
	reportErr error
	pingErr   error
	queries   []string

	// When block is set, queries wait for it to close. entered is closed
	// when the first query starts waiting.
	block   chan struct{}
	entered chan struct{}
}

var _ queryengine.Engine = (*fakeEngine)(nil)

func (f *fakeEngine) Query(ctx context.Context, sql string) ([]byte, error) {
	f.mu.Lock()
	f.queries = append(f.queries, sql)
	block, entered := f.block, f.entered
	f.entered = nil
	f.mu.Unlock()

	if block != nil {
		if entered != nil {
			close(entered)
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if strings.Contains(sql, "count(") {
		if f.countErr != nil {
			return nil, f.countErr
		}
		return []byte(f.count), nil
	}
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return []byte(f.report), nil
}

func (f *fakeEngine) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeEngine) Close(_ context.Context) error { return nil }

func (f *fakeEngine) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// failingBlobstore fails every write.
type failingBlobstore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingBlobstore) CreateObject(_ context.Context, _, _ string, _ []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return fmt.Errorf("503 slow down")
}

// flakyBlobstore fails the first n writes, then delegates.
type flakyBlobstore struct {
	storage.Blobstore
	failures int
}

func (f *flakyBlobstore) CreateObject(ctx context.Context, bucket, key string, contents []byte, contentType string) error {
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("connection reset by peer")
	}
	return f.Blobstore.CreateObject(ctx, bucket, key, contents, contentType)
}

func testConfig(tb testing.TB) *Config {
	tb.Helper()

	return &Config{
		QueryEngine: queryengine.Config{
			Type:    queryengine.TypeClickHouse,
			URL:     "http://localhost:8123",
			Timeout: time.Minute,
		},
		Source:         defaultSource(),
		Bucket:         "reports",
		KeyPrefix:      "/daily/",
		LocalDir:       tb.TempDir(),
		UploadAttempts: 3,
		UploadBackoff:  2 * time.Second,
	}
}

var _ storage.Blobstore = (*recordingBlobstore)(nil)

// recordingBlobstore keeps uploaded objects so tests can inspect them.
type recordingBlobstore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func newRecordingBlobstore(tb testing.TB) *recordingBlobstore {
	tb.Helper()

	return &recordingBlobstore{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (r *recordingBlobstore) CreateObject(_ context.Context, bucket, key string, contents []byte, contentType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pth := path.Join(bucket, key)
	r.objects[pth] = append([]byte(nil), contents...)
	r.contentTypes[pth] = contentType
	return nil
}

func (r *recordingBlobstore) object(bucket, key string) ([]byte, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pth := path.Join(bucket, key)
	b, ok := r.objects[pth]
	return b, r.contentTypes[pth], ok
}

func (r *recordingBlobstore) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.objects)
}

// recordingBackoff wraps the exporter's backoff so tests observe the delays
// it would have slept without actually sleeping.
func recordingBackoff(e *Exporter, delays *[]time.Duration) {
	inner := e.backoff
	e.backoff = func() retry.Backoff {
		b := inner()
		return retry.BackoffFunc(func() (time.Duration, bool) {
			d, stop := b.Next()
			if stop {
				return 0, true
			}
			*delays = append(*delays, d)
			return time.Nanosecond, false
		})
	}
}

func newTestExporter(tb testing.TB, config *Config, engine queryengine.Engine, blobstore storage.Blobstore) *Exporter {
	tb.Helper()

	ctx := context.Background()
	local, err := storage.NewFilesystemStorage(ctx)
	if err != nil {
		tb.Fatal(err)
	}

	opts := []serverenv.Option{
		serverenv.WithQueryEngine(engine),
		serverenv.WithLocalStorage(local),
	}
	if blobstore != nil {
		opts = append(opts, serverenv.WithBlobStorage(blobstore))
	}

	e, err := NewExporter(config, serverenv.New(ctx, opts...))
	if err != nil {
		tb.Fatal(err)
	}
	e.now = func() time.Time {
		return time.Date(2024, 3, 11, 5, 30, 0, 0, time.UTC)
	}
	return e
}

func TestExporter_Run(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		engine := &fakeEngine{count: "2\n", report: testReport}
		blobstore := newRecordingBlobstore(t)
		e := newTestExporter(t, config, engine, blobstore)

		result := e.Run(ctx, RunOptions{})

		if diff := cmp.Diff(&Result{
			Status:         StatusSuccess,
			Date:           "2024-03-10",
			Timezone:       "UTC",
			WindowStart:    "2024-03-10 00:00:00",
			WindowEnd:      "2024-03-11 00:00:00",
			ProbeCount:     2,
			Rows:           2,
			LocalPath:      filepath.Join(config.LocalDir, "agent_stats_2024-03-10.csv"),
			Key:            "daily/agent_stats_2024-03-10.csv",
			UploadAttempts: 1,
		}, result); diff != "" {
			t.Errorf("result mismatch (-want, +got):\n%s", diff)
		}

		got, contentType, ok := blobstore.object("reports", "daily/agent_stats_2024-03-10.csv")
		if !ok {
			t.Fatalf("expected report to be uploaded")
		}
		if diff := cmp.Diff(testReport, string(got)); diff != "" {
			t.Errorf("uploaded report mismatch (-want, +got):\n%s", diff)
		}
		if got, want := contentType, storage.ContentTypeCSV; got != want {
			t.Errorf("expected content type %q to be %q", got, want)
		}

		local, err := os.ReadFile(result.LocalPath)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(testReport, string(local)); diff != "" {
			t.Errorf("local copy mismatch (-want, +got):\n%s", diff)
		}

		if got, want := len(engine.Queries()), 2; got != want {
			t.Errorf("expected %d queries, got %d", want, got)
		}
		if got, want := result.ExitCode(), ExitOK; got != want {
			t.Errorf("expected exit code %d to be %d", got, want)
		}
	})

	t.Run("zero_count", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		engine := &fakeEngine{count: "0\n", report: testReport}
		blobstore := newRecordingBlobstore(t)
		e := newTestExporter(t, config, engine, blobstore)

		result := e.Run(ctx, RunOptions{Date: "2024-03-10"})

		if got, want := result.Status, StatusEmptySkipped; got != want {
			t.Fatalf("expected %q to be %q", got, want)
		}
		if got, want := result.ExitCode(), ExitEmpty; got != want {
			t.Errorf("expected exit code %d to be %d", got, want)
		}

		// Only the count probe ran.
		queries := engine.Queries()
		if got, want := len(queries), 1; got != want {
			t.Fatalf("expected %d queries, got %d: %v", want, got, queries)
		}
		if !strings.Contains(queries[0], "count()") {
			t.Errorf("expected count probe, got %s", queries[0])
		}

		if got := blobstore.Len(); got != 0 {
			t.Errorf("expected no uploads, got %d", got)
		}

		flag, err := os.ReadFile(filepath.Join(config.LocalDir, "agent_stats_2024-03-10_EMPTY.flag"))
		if err != nil {
			t.Fatal(err)
		}
		if got, want := string(flag), "empty"; got != want {
			t.Errorf("expected %q to be %q", got, want)
		}
		if _, err := os.Stat(filepath.Join(config.LocalDir, "agent_stats_2024-03-10.csv")); !os.IsNotExist(err) {
			t.Errorf("expected no report file, got %v", err)
		}
	})

	t.Run("header_only", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		engine := &fakeEngine{count: "5\n", report: ReportHeader + "\n\n"}
		blobstore := newRecordingBlobstore(t)
		e := newTestExporter(t, config, engine, blobstore)

		result := e.Run(ctx, RunOptions{Date: "2024-03-10"})

		if got, want := result.Status, StatusSuccess; got != want {
			t.Fatalf("expected %q to be %q", got, want)
		}
		if got, want := result.SkipReason, "header-only result"; got != want {
			t.Errorf("expected %q to be %q", got, want)
		}
		if got := blobstore.Len(); got != 0 {
			t.Errorf("expected no uploads, got %d", got)
		}
		if got, want := result.UploadAttempts, 0; got != want {
			t.Errorf("expected %d to be %d", got, want)
		}
		if got, want := result.ExitCode(), ExitOK; got != want {
			t.Errorf("expected exit code %d to be %d", got, want)
		}
	})

	t.Run("no_upload", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		config.NoUpload = true
		config.Bucket = ""
		engine := &fakeEngine{count: "2\n", report: testReport}
		e := newTestExporter(t, config, engine, nil)

		result := e.Run(ctx, RunOptions{Date: "2024-03-10"})

		if got, want := result.Status, StatusSuccess; got != want {
			t.Fatalf("expected %q to be %q", got, want)
		}
		if got, want := result.SkipReason, "upload disabled"; got != want {
			t.Errorf("expected %q to be %q", got, want)
		}
		if _, err := os.Stat(filepath.Join(config.LocalDir, "agent_stats_2024-03-10.csv")); err != nil {
			t.Errorf("expected local copy: %v", err)
		}
	})

	t.Run("upload_exhausted", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		engine := &fakeEngine{count: "2\n", report: testReport}
		blobstore := &failingBlobstore{}
		e := newTestExporter(t, config, engine, blobstore)

		var delays []time.Duration
		recordingBackoff(e, &delays)

		result := e.Run(ctx, RunOptions{Date: "2024-03-10"})

		if got, want := result.Status, StatusFailure; got != want {
			t.Fatalf("expected %q to be %q", got, want)
		}
		if got, want := result.Stage, StageUpload; got != want {
			t.Errorf("expected %q to be %q", got, want)
		}
		if got, want := result.ExitCode(), ExitUpload; got != want {
			t.Errorf("expected exit code %d to be %d", got, want)
		}
		if got, want := blobstore.calls, 3; got != want {
			t.Errorf("expected %d attempts, got %d", want, got)
		}
		if got, want := result.UploadAttempts, 3; got != want {
			t.Errorf("expected %d recorded attempts, got %d", want, got)
		}
		if diff := cmp.Diff([]time.Duration{2 * time.Second, 4 * time.Second}, delays); diff != "" {
			t.Errorf("backoff mismatch (-want, +got):\n%s", diff)
		}

		// The local copy survives a failed upload.
		if _, err := os.Stat(filepath.Join(config.LocalDir, "agent_stats_2024-03-10.csv")); err != nil {
			t.Errorf("expected local copy: %v", err)
		}
	})

	t.Run("upload_recovers", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		engine := &fakeEngine{count: "2\n", report: testReport}
		memory := newRecordingBlobstore(t)
		blobstore := &flakyBlobstore{Blobstore: memory, failures: 2}
		e := newTestExporter(t, config, engine, blobstore)

		var delays []time.Duration
		recordingBackoff(e, &delays)

		result := e.Run(ctx, RunOptions{Date: "2024-03-10"})

		if got, want := result.Status, StatusSuccess; got != want {
			t.Fatalf("expected %q to be %q: %v", got, want, result.Err)
		}
		if got, want := result.UploadAttempts, 3; got != want {
			t.Errorf("expected %d attempts, got %d", want, got)
		}
		if got, want := memory.Len(), 1; got != want {
			t.Errorf("expected %d objects, got %d", want, got)
		}
	})

	t.Run("count_probe_failure", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		engine := &fakeEngine{countErr: fmt.Errorf("connection refused")}
		blobstore := newRecordingBlobstore(t)
		e := newTestExporter(t, config, engine, blobstore)

		result := e.Run(ctx, RunOptions{Date: "2024-03-10"})

		if got, want := result.Stage, StageCountProbe; got != want {
			t.Errorf("expected %q to be %q", got, want)
		}
		if got, want := result.ExitCode(), ExitQueryEngine; got != want {
			t.Errorf("expected exit code %d to be %d", got, want)
		}
	})

	t.Run("count_probe_unparsable", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		engine := &fakeEngine{count: "not a number\n"}
		e := newTestExporter(t, config, engine, newRecordingBlobstore(t))

		result := e.Run(ctx, RunOptions{Date: "2024-03-10"})

		if got, want := result.Stage, StageCountProbe; got != want {
			t.Errorf("expected %q to be %q", got, want)
		}
	})

	t.Run("aggregation_failure", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		engine := &fakeEngine{count: "2\n", reportErr: fmt.Errorf("memory limit exceeded")}
		blobstore := newRecordingBlobstore(t)
		e := newTestExporter(t, config, engine, blobstore)

		result := e.Run(ctx, RunOptions{Date: "2024-03-10"})

		if got, want := result.Stage, StageAggregation; got != want {
			t.Errorf("expected %q to be %q", got, want)
		}
		if got, want := result.ExitCode(), ExitQueryEngine; got != want {
			t.Errorf("expected exit code %d to be %d", got, want)
		}
		if got := blobstore.Len(); got != 0 {
			t.Errorf("expected no uploads, got %d", got)
		}
	})

	t.Run("invalid_date", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		engine := &fakeEngine{count: "2\n", report: testReport}
		e := newTestExporter(t, config, engine, newRecordingBlobstore(t))

		result := e.Run(ctx, RunOptions{Date: "2024-13-01"})

		if got, want := result.Stage, StageResolve; got != want {
			t.Errorf("expected %q to be %q", got, want)
		}
		if !errors.Is(result.Err, ErrInvalidDate) {
			t.Errorf("expected %v to be ErrInvalidDate", result.Err)
		}
		if got, want := result.ExitCode(), ExitConfig; got != want {
			t.Errorf("expected exit code %d to be %d", got, want)
		}
		if got := len(engine.Queries()); got != 0 {
			t.Errorf("expected no queries, got %d", got)
		}
	})

	t.Run("local_write_failure_is_not_fatal", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)

		// A regular file where the staging directory should be.
		blocker := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		config.LocalDir = filepath.Join(blocker, "exports")

		engine := &fakeEngine{count: "2\n", report: testReport}
		blobstore := newRecordingBlobstore(t)
		e := newTestExporter(t, config, engine, blobstore)

		result := e.Run(ctx, RunOptions{Date: "2024-03-10"})

		if got, want := result.Status, StatusSuccess; got != want {
			t.Fatalf("expected %q to be %q: %v", got, want, result.Err)
		}
		if result.LocalPath != "" {
			t.Errorf("expected no local path, got %q", result.LocalPath)
		}
		if got, want := blobstore.Len(), 1; got != want {
			t.Errorf("expected %d uploads, got %d", want, got)
		}
	})

	t.Run("edmonton_window_in_queries", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		config := testConfig(t)
		config.Timezone = "America/Edmonton"
		engine := &fakeEngine{count: "2\n", report: testReport}
		e := newTestExporter(t, config, engine, newRecordingBlobstore(t))

		result := e.Run(ctx, RunOptions{Date: "2024-03-10"})
		if got, want := result.Status, StatusSuccess; got != want {
			t.Fatalf("expected %q to be %q: %v", got, want, result.Err)
		}

		for _, q := range engine.Queries() {
			if !strings.Contains(q, "'2024-03-10 07:00:00'") || !strings.Contains(q, "'2024-03-11 06:00:00'") {
				t.Errorf("expected query to use the local day window: %s", q)
			}
		}
	})
}

func TestNewExporter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("missing_engine", func(t *testing.T) {
		t.Parallel()

		if _, err := NewExporter(testConfig(t), serverenv.New(ctx)); err == nil {
			t.Errorf("expected error")
		}
	})

	t.Run("missing_blobstore", func(t *testing.T) {
		t.Parallel()

		env := serverenv.New(ctx, serverenv.WithQueryEngine(&fakeEngine{}))
		if _, err := NewExporter(testConfig(t), env); err == nil {
			t.Errorf("expected error")
		}
	})

	t.Run("no_upload_without_blobstore", func(t *testing.T) {
		t.Parallel()

		config := testConfig(t)
		config.NoUpload = true
		env := serverenv.New(ctx, serverenv.WithQueryEngine(&fakeEngine{}))
		if _, err := NewExporter(config, env); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
	t.Run("zero_backoff", func(t *testing.T) {
		t.Parallel()

		config := testConfig(t)
		config.UploadBackoff = 0
		env := serverenv.New(ctx,
			serverenv.WithQueryEngine(&fakeEngine{}),
			serverenv.WithBlobStorage(newRecordingBlobstore(t)))
		if _, err := NewExporter(config, env); err == nil {
			t.Errorf("expected error")
		}
	})
}
