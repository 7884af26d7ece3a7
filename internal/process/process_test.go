package process

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager creates a Process with short timeouts for testing.
func newTestManager(command string) *Process {
	m := NewProcess("test", command, testLogger(), nil)
	m.gracefulTimeout = 100 * time.Millisecond
	m.killTimeout = 100 * time.Millisecond
	return m
}

// runAsync runs the manager's Run method in a goroutine and returns exit code channel.
func runAsync(m *Process) <-chan int {
	done := make(chan int, 1)
	go func() {
		done <- m.Run()
	}()
	return done
}

// runWithRestartAsync runs RunWithRestart in a goroutine and returns exit code channel.
func runWithRestartAsync(m *Process) <-chan int {
	done := make(chan int, 1)
	go func() {
		done <- m.RunWithRestart()
	}()
	return done
}

// waitForExit waits for exit code with timeout, fails test on timeout.
func waitForExit(t *testing.T, done <-chan int, timeout time.Duration) int {
	t.Helper()
	select {
	case exitCode := <-done:
		return exitCode
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func TestGracefulShutdown(t *testing.T) {
	// Process that handles SIGINT
	m := newTestManager(`sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	m.gracefulTimeout = 500 * time.Millisecond

	done := runAsync(m)
	time.Sleep(100 * time.Millisecond)
	m.Shutdown()

	if exitCode := waitForExit(t, done, 1*time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	// Process that ignores SIGINT
	m := newTestManager(`sh -c "trap '' INT; sleep 10"`)
	m.gracefulTimeout = 50 * time.Millisecond
	m.killTimeout = 50 * time.Millisecond

	done := runAsync(m)
	time.Sleep(50 * time.Millisecond)
	m.Shutdown()

	// Process was killed, expect 137 (128 + 9 for SIGKILL)
	if exitCode := waitForExit(t, done, 500*time.Millisecond); exitCode != 137 {
		t.Errorf("expected exit code 137, got %d", exitCode)
	}
}

func TestContextCancellation(t *testing.T) {
	m := newTestManager("sleep 10")

	done := runAsync(m)
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	m.Shutdown()
	waitForExit(t, done, 500*time.Millisecond)

	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("shutdown took too long: %v", elapsed)
	}
}

func TestProcessAlreadyExited(t *testing.T) {
	m := newTestManager("true")

	done := runAsync(m)
	if exitCode := waitForExit(t, done, 500*time.Millisecond); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}

	// Shutdown after process has already exited - should not panic
	m.Shutdown()
}

func TestGetCommand(t *testing.T) {
	m := newTestManager("echo hello")
	if got := m.GetCommand(); got != "echo hello" {
		t.Errorf("GetCommand() = %q, want %q", got, "echo hello")
	}
}

func TestRequestRestart(t *testing.T) {
	m := newTestManager("sleep 10")

	done := runWithRestartAsync(m)
	time.Sleep(100 * time.Millisecond)

	m.RequestRestart("echo restarted")
	time.Sleep(100 * time.Millisecond)

	if got := m.GetCommand(); got != "echo restarted" {
		t.Errorf("GetCommand() after restart = %q, want %q", got, "echo restarted")
	}

	m.Shutdown()
	waitForExit(t, done, 1*time.Second)
}

func TestRunWithRestart(t *testing.T) {
	m := newTestManager("true")

	done := runWithRestartAsync(m)
	if exitCode := waitForExit(t, done, 500*time.Millisecond); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}

func TestRunWithRestartShutdown(t *testing.T) {
	m := newTestManager(`sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	m.gracefulTimeout = 500 * time.Millisecond

	done := runWithRestartAsync(m)
	time.Sleep(100 * time.Millisecond)
	m.Shutdown()

	if exitCode := waitForExit(t, done, 1*time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}

func TestRequestRestartAlreadyPending(t *testing.T) {
	m := newTestManager("sleep 10")

	m.RequestRestart("echo first")
	m.RequestRestart("echo second") // Should be ignored

	if got := <-m.restartChan; got != "echo first" {
		t.Errorf("expected 'echo first', got %q", got)
	}
}

func TestRunWithInvalidCommand(t *testing.T) {
	m := newTestManager(`echo "unclosed`)
	if exitCode := m.Run(); exitCode != 1 {
		t.Errorf("expected exit code 1 for parse error, got %d", exitCode)
	}
}

func TestRunWithEmptyCommand(t *testing.T) {
	m := newTestManager("")
	if exitCode := m.Run(); exitCode != 1 {
		t.Errorf("expected exit code 1 for empty command, got %d", exitCode)
	}
}

func TestRunWithRestartInvalidCommand(t *testing.T) {
	m := newTestManager(`echo "unclosed`)
	if exitCode := m.RunWithRestart(); exitCode != 1 {
		t.Errorf("expected exit code 1 for parse error, got %d", exitCode)
	}
}

func TestProcessExitWithError(t *testing.T) {
	m := newTestManager("sh -c 'exit 42'")
	if exitCode := m.Run(); exitCode != 42 {
		t.Errorf("expected exit code 42, got %d", exitCode)
	}
}

func TestRunWithNonExistentCommand(t *testing.T) {
	m := newTestManager("/nonexistent/command/that/does/not/exist")
	if exitCode := m.Run(); exitCode != 1 {
		t.Errorf("expected exit code 1 for start error, got %d", exitCode)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	m := newTestManager("sleep 10")
	if m.ShuttingDown() {
		t.Fatal("new process should not be shutting down")
	}
	m.Shutdown() // Should not panic
	if !m.ShuttingDown() {
		t.Error("ShuttingDown() = false after Shutdown")
	}

	// A shut-down process stops its server right after starting it.
	exitCode := waitForExit(t, runAsync(m), 2*time.Second)
	if m.State() != StateIdle {
		t.Errorf("state = %s after exit code %d, want idle", m.State(), exitCode)
	}
}

func TestParseCommandWithEscapes(t *testing.T) {
	args, err := parseCommand(`echo hello\ world`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 || args[1] != "hello world" {
		t.Errorf("expected ['echo', 'hello world'], got %v", args)
	}
}

func TestSendStopSignalAfterExit(t *testing.T) {
	m := newTestManager("true")
	if exitCode := m.Run(); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	m.sendStopSignal() // Should not panic, process already exited
}

func TestStreamOutputLogLevels(t *testing.T) {
	cmd := `echo "[error] error message" && echo "[warning] warn message" && echo "[debug] debug message" && echo "[fatal] fatal message" && echo "plain message"`
	m := newTestManager("sh -c '" + cmd + "'")
	m.SetLogParser(testLogger(), func(line string) (string, string) {
		if len(line) > 2 && line[0] == '[' {
			for i := 1; i < len(line); i++ {
				if line[i] == ']' {
					return line[1:i], line
				}
			}
		}
		return "info", line
	})
	if exitCode := m.Run(); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}

func TestOutputHandler(t *testing.T) {
	var lines []string
	handler := &testOutputHandler{lines: &lines}

	m := NewProcess("test", `sh -c "echo line1; echo line2"`, testLogger(), handler)
	m.gracefulTimeout = 100 * time.Millisecond
	m.killTimeout = 100 * time.Millisecond

	if exitCode := m.Run(); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if len(lines) != 2 || lines[0] != "line1" || lines[1] != "line2" {
		t.Errorf("lines = %v, want [line1 line2]", lines)
	}
}

type testOutputHandler struct {
	mu    sync.Mutex
	lines *[]string
}

func (h *testOutputHandler) HandleLine(_, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.lines = append(*h.lines, line)
}

// echoHandler forwards each line to a channel.
type echoHandler struct {
	lines chan string
}

func (h *echoHandler) HandleLine(_, line string) {
	h.lines <- line
}

// stateRecorder records state transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(_ string, _, newState State, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, newState)
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func waitForState(t *testing.T, p *Process, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", p.State(), want)
}

func TestExecuteRoundTrip(t *testing.T) {
	handler := &echoHandler{lines: make(chan string, 4)}
	p := NewProcess("test", "cat", testLogger(), handler)
	p.gracefulTimeout = 200 * time.Millisecond
	p.killTimeout = 100 * time.Millisecond

	done := runAsync(p)
	waitForState(t, p, StateRunning, time.Second)

	if err := p.Execute("list"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	select {
	case line := <-handler.lines:
		if line != "list" {
			t.Errorf("echoed line = %q, want %q", line, "list")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for echoed command")
	}

	p.Shutdown()
	waitForExit(t, done, time.Second)
}

func TestExecuteNotRunning(t *testing.T) {
	p := newTestManager("cat")
	if err := p.Execute("list"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Execute() before start error = %v, want ErrNotRunning", err)
	}

	q := newTestManager("true")
	if exitCode := q.Run(); exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", exitCode)
	}
	if err := q.Execute("list"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Execute() after exit error = %v, want ErrNotRunning", err)
	}
}

func TestExecuteRejectsLineBreaks(t *testing.T) {
	p := newTestManager("cat")
	if err := p.Execute("say hi\nstop"); err == nil || errors.Is(err, ErrNotRunning) {
		t.Errorf("Execute() with line break error = %v, want validation error", err)
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    []State
	}{
		{"clean exit", "true", []State{StateStarting, StateRunning, StateIdle}},
		{"failed exit", "sh -c 'exit 3'", []State{StateStarting, StateRunning, StateError}},
		{"start failure", "/nonexistent/server", []State{StateStarting, StateError}},
		{"parse failure", `echo "unclosed`, []State{StateStarting, StateError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stateRecorder{}
			p := newTestManager(tt.command)
			p.SetStateCallback(rec.record)
			p.Run()

			got := rec.get()
			if len(got) != len(tt.want) {
				t.Fatalf("states = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("states[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestShutdownStateTransitions(t *testing.T) {
	rec := &stateRecorder{}
	p := newTestManager("sleep 10")
	p.SetStateCallback(rec.record)

	done := runAsync(p)
	waitForState(t, p, StateRunning, time.Second)
	if info := p.Info(); info.PID == 0 || info.StartedAt.IsZero() {
		t.Errorf("Info() = %+v, want pid and start time", info)
	}

	p.Shutdown()
	waitForExit(t, done, time.Second)

	want := []State{StateStarting, StateRunning, StateStopping, StateIdle}
	got := rec.get()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("states[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if info := p.Info(); info.PID != 0 {
		t.Errorf("Info().PID after exit = %d, want 0", info.PID)
	}
}

func TestStopCommand(t *testing.T) {
	// Exits on its own once "stop" arrives on stdin; SIGINT is ignored.
	p := newTestManager(`sh -c "trap '' INT; while read line; do [ \"$line\" = stop ] && exit 0; done"`)
	p.SetStopCommand("stop")
	p.gracefulTimeout = time.Second

	done := runAsync(p)
	waitForState(t, p, StateRunning, time.Second)

	start := time.Now()
	p.Shutdown()
	if exitCode := waitForExit(t, done, 2*time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("stop command ignored, shutdown took %v", elapsed)
	}
}

func TestRestartCountsAndKeepsRunning(t *testing.T) {
	rec := &stateRecorder{}
	p := newTestManager("sleep 10")
	p.SetStateCallback(rec.record)

	done := runWithRestartAsync(p)
	waitForState(t, p, StateRunning, time.Second)

	p.RequestRestart("sleep 5")
	deadline := time.Now().Add(time.Second)
	for p.Info().RestartCount == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	waitForState(t, p, StateRunning, time.Second)

	if got := p.Info().RestartCount; got != 1 {
		t.Errorf("RestartCount = %d, want 1", got)
	}

	p.Shutdown()
	waitForExit(t, done, time.Second)

	want := []State{StateStarting, StateRunning, StateStopping, StateIdle, StateStarting, StateRunning, StateStopping, StateIdle}
	got := rec.get()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
}

func TestOutputDeliveredBeforeRunReturns(t *testing.T) {
	var lines []string
	handler := &testOutputHandler{lines: &lines}

	p := NewProcess("test", `sh -c "i=0; while [ $i -lt 200 ]; do echo line$i; i=$((i+1)); done"`, testLogger(), handler)
	if exitCode := p.Run(); exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", exitCode)
	}
	if len(lines) != 200 {
		t.Fatalf("got %d lines, want 200", len(lines))
	}
	for i, line := range lines {
		if want := "line" + strconv.Itoa(i); line != want {
			t.Fatalf("lines[%d] = %q, want %q", i, line, want)
		}
	}
}
