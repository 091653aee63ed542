package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/banshee-data/sensor.sim/internal/config"
	"github.com/banshee-data/sensor.sim/internal/db"
	"github.com/banshee-data/sensor.sim/internal/fsutil"
	"github.com/banshee-data/sensor.sim/internal/monitoring"
	"github.com/banshee-data/sensor.sim/internal/serialout"
	"github.com/banshee-data/sensor.sim/internal/timeutil"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sensorsim dev")
}

func TestSimulateCmd_KalmanToCSVAndDB(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "session.csv")
	dbPath := filepath.Join(dir, "sessions.db")

	out, err := execute(t, "simulate",
		"--mode", "kalman",
		"--duration", "30s",
		"--dt", "100ms",
		"--ambient", "40",
		"--noise", "0.1",
		"--seed", "3",
		"--out", csvPath,
		"--db", dbPath,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "(kalman)")
	assert.Regexp(t, `samples:\s+7\n`, out)
	assert.Contains(t, out, "mean estimate error")
	assert.Contains(t, out, "wrote 7 rows to "+csvPath)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[0], "iteration,elapsed_seconds,"))
	assert.True(t, strings.HasPrefix(lines[1], "1,0.0,40.0000,"))

	id := regexp.MustCompile(`saved session ([0-9a-f-]{36})`).FindStringSubmatch(out)
	require.Len(t, id, 2)

	listed, err := execute(t, "sessions", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, listed, id[1])
	assert.Contains(t, listed, "kalman")

	exported, err := execute(t, "sessions", "export", id[1], "--db", dbPath, "--unit", "F")
	require.NoError(t, err)
	exportLines := strings.Split(strings.TrimSpace(exported), "\n")
	require.Len(t, exportLines, 8)
	// 40 °C is 104 °F
	assert.True(t, strings.HasPrefix(exportLines[1], "1,0.0,104.0000,"), exportLines[1])

	deleted, err := execute(t, "sessions", "delete", id[1], "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, deleted, "deleted session "+id[1])

	listed, err = execute(t, "sessions", "--db", dbPath)
	require.NoError(t, err)
	assert.NotContains(t, listed, id[1])

	_, err = execute(t, "sessions", "delete", id[1], "--db", dbPath)
	assert.ErrorIs(t, err, db.ErrSessionNotFound)
}

func TestSimulateCmd_PlainToStdout(t *testing.T) {
	out, err := execute(t, "simulate", "--mode", "plain", "--duration", "10s", "--noise", "0", "--seed", "1", "--out", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "(plain)")
	assert.Contains(t, out, "elapsed_seconds,true_temperature,measured_temperature,absolute_error,timestamp")
	assert.Contains(t, out, "\n5.0,25.0000,25.0000,0.0000,")
	assert.NotContains(t, out, "mean estimate error")
}

func TestSimulateCmd_ConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sim.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
ambient_temperature = 30.0
noise_level = 0.0
sample_interval = "2s"
temperature_unit = "K"
`), 0o644))

	out, err := execute(t, "--config", cfgPath, "simulate", "--mode", "plain", "--duration", "4s", "--out", "-")
	require.NoError(t, err)
	assert.Regexp(t, `samples:\s+3\n`, out)
	// 30 °C in kelvin
	assert.Contains(t, out, "\n2.0,303.1500,303.1500,0.0000,")
}

func TestSimulateCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad mode", []string{"simulate", "--mode", "extended"}, "invalid mode"},
		{"zero duration", []string{"simulate", "--duration", "0s"}, "duration must be positive"},
		{"zero dt", []string{"simulate", "--dt", "0s"}, "dt must be positive"},
		{"missing config", []string{"--config", "/nonexistent/sim.json", "simulate"}, "failed to load config"},
		{"bad unit", []string{"simulate", "--duration", "1s", "--out", "-", "--unit", "R"}, "invalid unit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMigrateCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "m.db")

	out, err := execute(t, "migrate", "status", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "current version: 0")
	assert.Contains(t, out, "migrations pending")

	out, err = execute(t, "migrate", "up", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "current version: 2")
	assert.NotContains(t, out, "pending")

	out, err = execute(t, "migrate", "down", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "current version: 1")

	_, err = execute(t, "migrate", "force", "abc", "--db", dbPath)
	assert.Error(t, err)
}

func TestRunRealtime_SerialAndSession(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	defer func() { monitoring.Logf = original }()

	ro := &rootOptions{cfg: config.EmptySimulationConfig(), logger: zap.NewNop().Sugar()}
	rn := &runOptions{duration: 6 * time.Second, mode: "kalman", serialPath: "/dev/ttyFAKE"}

	port := serialout.NewTestablePort()
	opener := func(path string, _ serialout.PortOptions) (serialout.Porter, error) {
		assert.Equal(t, "/dev/ttyFAKE", path)
		return port, nil
	}

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	clock := timeutil.NewMockClock(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))

	done := make(chan error, 1)
	go func() { done <- runRealtime(cmd, ro, rn, clock, opener) }()

	deadline := time.After(10 * time.Second)
loop:
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			break loop
		case <-deadline:
			t.Fatal("run did not finish")
		default:
			clock.Advance(100 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}

	lines := strings.Split(strings.TrimSpace(port.Output()), "\n")
	assert.Len(t, lines, 60)
	assert.True(t, port.Closed)
	assert.Regexp(t, `samples:\s+2\n`, out.String())
}

func TestSimulateCmd_WritesThroughOutputFS(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	original := outputFS
	outputFS = mem
	defer func() { outputFS = original }()

	out, err := execute(t, "simulate", "--mode", "plain", "--duration", "5s", "--out", "reports/run1.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 rows to reports/run1.csv")

	info, err := mem.Stat("reports")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	data, err := mem.ReadFile("reports/run1.csv")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
}
