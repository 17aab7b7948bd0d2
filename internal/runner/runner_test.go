package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osvaldoandrade/xebench/internal/backend"
	"github.com/osvaldoandrade/xebench/internal/tracker"
	"github.com/osvaldoandrade/xebench/pkg/config"
)

type fakeBackend struct {
	calls     []string
	sampleErr error
}

func (f *fakeBackend) Optimize(_ context.Context, path string) (backend.Circuit, error) {
	f.calls = append(f.calls, "optimize")
	return backend.Circuit{Source: path, Handle: "c"}, nil
}

func (f *fakeBackend) Execute(_ context.Context, c backend.Circuit, shots int) (backend.Result, error) {
	f.calls = append(f.calls, "execute")
	return backend.Result{Handle: "r"}, nil
}

func (f *fakeBackend) SaveState(_ context.Context, _ backend.Result, statePath string) error {
	f.calls = append(f.calls, "save")
	return os.WriteFile(statePath, []byte("state"), 0o644)
}

func (f *fakeBackend) LoadState(_ context.Context, statePath string) (backend.Circuit, error) {
	f.calls = append(f.calls, "load")
	return backend.Circuit{Source: statePath, Handle: "s"}, nil
}

func (f *fakeBackend) Sample(_ context.Context, _ backend.Circuit, shots int, path string) error {
	f.calls = append(f.calls, "sample")
	if f.sampleErr != nil {
		return f.sampleErr
	}
	return os.WriteFile(path, []byte("00 0.5 0.5\n"), 0o644)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfigOptional("")
	require.NoError(t, err)
	root := t.TempDir()
	cfg.LogsDir = filepath.Join(root, "logs")
	cfg.CircuitDir = filepath.Join(root, "qasm")
	cfg.StateDir = filepath.Join(root, "state")
	cfg.Qubits = 4
	for _, d := range []string{cfg.LogsDir, cfg.CircuitDir} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return cfg
}

func newRunner(t *testing.T, cfg *config.Config, b backend.Backend) (*Runner, string) {
	t.Helper()
	paths, err := ResolvePaths(cfg, "42")
	require.NoError(t, err)
	logPath, snapPath := tracker.Paths(cfg.LogsDir, "42")
	tr, err := tracker.New(tracker.Options{
		LogPath:      logPath,
		SnapshotPath: snapPath,
		Identity:     config.WorkerIdentity{JobID: "42"},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return &Runner{Backend: b, Recorder: tr, Paths: paths, Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, snapPath
}

func writeCircuit(t *testing.T, cfg *config.Config) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.CircuitDir, "circuit_n4_m14_s0_e0_pEFGH.qasm"), []byte("OPENQASM 2.0;"), 0o644))
}

func taskTypes(t *testing.T, snapPath string) []string {
	t.Helper()
	run, err := tracker.ReadSnapshot(snapPath)
	require.NoError(t, err)
	var out []string
	for _, task := range run.Tasks {
		out = append(out, task.TaskType)
	}
	return out
}

func TestResolvePaths(t *testing.T) {
	cfg := testConfig(t)
	writeCircuit(t, cfg)

	p, err := ResolvePaths(cfg, "7")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.CircuitDir, "circuit_n4_m14_s0_e0_pEFGH.qasm"), p.Circuit)
	assert.Equal(t, filepath.Join(cfg.LogsDir, "qr_amplitudes_circuit_n4_m14_s0_e0_pEFGH_7.txt"), p.Amplitude)
	assert.Equal(t, filepath.Join(cfg.StateDir, "qr_state_circuit_n4_m14_s0_e0_pEFGH.bin"), p.State)
}

func TestResolvePathsMissingCircuit(t *testing.T) {
	cfg := testConfig(t)

	_, err := ResolvePaths(cfg, "7")
	assert.True(t, errors.Is(err, ErrInputNotFound))
	entries, _ := os.ReadDir(cfg.LogsDir)
	assert.Empty(t, entries)
}

func TestPrepare(t *testing.T) {
	cfg := testConfig(t)
	writeCircuit(t, cfg)
	b := &fakeBackend{}
	r, snap := newRunner(t, cfg, b)

	require.NoError(t, r.Prepare(context.Background()))
	assert.Equal(t, []string{"optimize", "execute", "save"}, b.calls)
	assert.FileExists(t, r.Paths.State)
	assert.Equal(t, []string{TaskOptimization, TaskFirstShot, TaskWriteState, "First Shot Overall"}, taskTypes(t, snap))
}

func TestMeasure(t *testing.T) {
	cfg := testConfig(t)
	writeCircuit(t, cfg)
	b := &fakeBackend{}
	r, snap := newRunner(t, cfg, b)
	require.NoError(t, os.WriteFile(r.Paths.Amplitude, []byte("stale\n"), 0o644))

	require.NoError(t, r.Measure(context.Background(), 1000))
	assert.Equal(t, []string{"load", "sample"}, b.calls)
	data, err := os.ReadFile(r.Paths.Amplitude)
	require.NoError(t, err)
	assert.Equal(t, "00 0.5 0.5\n", string(data))

	run, err := tracker.ReadSnapshot(snap)
	require.NoError(t, err)
	require.Len(t, run.Tasks, 3)
	outer := run.Tasks[2]
	assert.Equal(t, "Subsequent Shots Overall", outer.TaskType)
	shots, ok := outer.Metadata.Shots()
	require.True(t, ok)
	assert.Equal(t, int64(1000), shots)
}

func TestMeasureBackendFailureStillRecords(t *testing.T) {
	cfg := testConfig(t)
	writeCircuit(t, cfg)
	b := &fakeBackend{sampleErr: errors.New("device lost")}
	r, snap := newRunner(t, cfg, b)

	err := r.Measure(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device lost")
	assert.Equal(t, []string{TaskLoadingState, TaskSubsequentShots, "Subsequent Shots Overall"}, taskTypes(t, snap))
}

func TestMeasureRejectsBadShots(t *testing.T) {
	cfg := testConfig(t)
	writeCircuit(t, cfg)
	r, _ := newRunner(t, cfg, &fakeBackend{})
	assert.Error(t, r.Measure(context.Background(), 0))
}

func TestCheckState(t *testing.T) {
	cfg := testConfig(t)
	writeCircuit(t, cfg)
	r, _ := newRunner(t, cfg, &fakeBackend{})
	assert.True(t, errors.Is(r.CheckState(), ErrInputNotFound))
}
