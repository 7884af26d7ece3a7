package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/logging"
)

// ErrNotRunning is returned by Execute when the server has no live stdin.
var ErrNotRunning = errors.New("server process is not running")

// OutputHandler receives output lines from the subprocess.
// HandleLine is never called concurrently and sees lines in delivery order.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
// Used to echo server output at the level the server reported it.
type LogParser func(line string) (level, msg string)

type exitReason int

const (
	exitReasonProcessExit exitReason = iota
	exitReasonShutdown
	exitReasonRestart
)

// outputLine is one line read from either output stream.
type outputLine struct {
	source string
	text   string
}

// Process manages the lifecycle of the server subprocess.
type Process struct {
	id              string
	command         string
	commandMu       sync.RWMutex
	workDir         string
	stopCommand     string // written to stdin before SIGINT on shutdown ("" = signal only)
	cmd             *exec.Cmd
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // parses process output for log level (nil = no parsing)
	ctx             context.Context
	cancel          context.CancelFunc
	restartChan     chan string // receives new command for restart
	outputHandler   OutputHandler
	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after Kill() before giving up

	stdinMu sync.Mutex
	stdin   io.WriteCloser

	stateMu      sync.RWMutex
	state        State
	pid          int
	startedAt    time.Time
	restartCount int
	lastError    error
	onState      StateCallback
}

// NewProcess creates a new process. The handler receives each line of
// stdout/stderr from the subprocess and may be nil.
func NewProcess(id, command string, logger logging.Logger, handler OutputHandler) *Process {
	ctx, cancel := context.WithCancel(context.Background())
	return &Process{
		id:              id,
		command:         command,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		restartChan:     make(chan string, 1),
		outputHandler:   handler,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		state:           StateIdle,
	}
}

// GetCommand returns the current command string.
func (p *Process) GetCommand() string {
	p.commandMu.RLock()
	defer p.commandMu.RUnlock()
	return p.command
}

// SetWorkDir sets the working directory of the subprocess.
func (p *Process) SetWorkDir(dir string) {
	p.workDir = dir
}

// SetStopCommand sets the console command written to stdin on shutdown,
// e.g. "stop". SIGINT is still sent if the server has not exited by the
// graceful timeout.
func (p *Process) SetStopCommand(command string) {
	p.stopCommand = command
}

// SetGracefulTimeout sets how long shutdown waits before force killing.
func (p *Process) SetGracefulTimeout(timeout time.Duration) {
	if timeout > 0 {
		p.gracefulTimeout = timeout
	}
}

// SetLogParser sets a custom logger and log parser for process output.
// The logger is used for process output (e.g., module="minecraft").
// The parser extracts log level from the server's output format.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetStateCallback sets the state change callback. Must be called before Run.
func (p *Process) SetStateCallback(callback StateCallback) {
	p.onState = callback
}

// State returns the current state.
func (p *Process) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// Info returns a snapshot of the process state.
func (p *Process) Info() Info {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return Info{
		ID:           p.id,
		State:        p.state,
		PID:          p.pid,
		StartedAt:    p.startedAt,
		RestartCount: p.restartCount,
		LastError:    p.lastError,
	}
}

func (p *Process) setState(newState State, err error) {
	p.stateMu.Lock()
	oldState := p.state
	p.state = newState
	if err != nil {
		p.lastError = err
	}
	p.stateMu.Unlock()

	if oldState == newState {
		return
	}
	p.logger.Debug("Process state changed", "id", p.id, "from", oldState, "to", newState)
	if p.onState != nil {
		p.onState(p.id, oldState, newState, err)
	}
}

// Execute writes a console command to the server's stdin.
func (p *Process) Execute(command string) error {
	if strings.ContainsAny(command, "\r\n") {
		return fmt.Errorf("command contains a line break: %q", command)
	}

	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()

	if p.stdin == nil || p.State() != StateRunning {
		return ErrNotRunning
	}
	if _, err := io.WriteString(p.stdin, command+"\n"); err != nil {
		return fmt.Errorf("write command to stdin: %w", err)
	}
	return nil
}

// RequestRestart requests a restart with a new command.
// Non-blocking: if a restart is already pending, this is a no-op.
func (p *Process) RequestRestart(newCommand string) {
	select {
	case p.restartChan <- newCommand:
		p.logger.Info("Restart requested")
	default:
		p.logger.Warn("Restart already pending, ignoring")
	}
}

// Shutdown triggers a graceful shutdown of the process.
func (p *Process) Shutdown() {
	p.cancel()
}

// ShuttingDown reports whether Shutdown was called or a shutdown signal
// arrived. Once true, Run and RunWithRestart stop the server immediately.
func (p *Process) ShuttingDown() bool {
	return p.ctx.Err() != nil
}

// runningProcess holds channels for monitoring a running subprocess.
type runningProcess struct {
	processDone <-chan error
	outputDone  <-chan struct{} // closed once every line has been delivered
}

// startProcess parses the command, starts the subprocess, and returns channels for monitoring.
func (p *Process) startProcess(command string) (*runningProcess, error) {
	p.setState(StateStarting, nil)

	args, err := parseCommand(command)
	if err != nil {
		p.logger.Error("Failed to parse command", "error", err)
		p.setState(StateError, err)
		return nil, err
	}

	if len(args) == 0 {
		err := errors.New("empty command")
		p.logger.Error("Empty command")
		p.setState(StateError, err)
		return nil, err
	}

	p.cmd = exec.Command(args[0], args[1:]...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	p.cmd.Dir = p.workDir

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		p.logger.Error("Failed to create stdin pipe", "error", err)
		p.setState(StateError, err)
		return nil, err
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		p.logger.Error("Failed to create stdout pipe", "error", err)
		p.setState(StateError, err)
		return nil, err
	}

	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		p.logger.Error("Failed to create stderr pipe", "error", err)
		p.setState(StateError, err)
		return nil, err
	}

	if err := p.cmd.Start(); err != nil {
		p.logger.Error("Failed to start process", "error", err, "command", command)
		p.setState(StateError, err)
		return nil, err
	}

	p.logger.Info("Process started", "id", p.id, "pid", p.cmd.Process.Pid, "command", command)

	p.stdinMu.Lock()
	p.stdin = stdin
	p.stdinMu.Unlock()

	p.stateMu.Lock()
	p.pid = p.cmd.Process.Pid
	p.startedAt = time.Now()
	p.stateMu.Unlock()

	// Output stays buffered in the pipes until the running callback returns.
	p.setState(StateRunning, nil)

	lines := make(chan outputLine, 256)
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		p.readOutput(stdout, "stdout", lines)
	}()
	go func() {
		defer readers.Done()
		p.readOutput(stderr, "stderr", lines)
	}()
	go func() {
		readers.Wait()
		close(lines)
	}()

	outputDone := make(chan struct{})
	go func() {
		defer close(outputDone)
		p.deliverOutput(lines)
	}()

	// Wait for process in goroutine
	processDone := make(chan error, 1)
	go func() {
		processDone <- p.cmd.Wait()
	}()

	return &runningProcess{processDone: processDone, outputDone: outputDone}, nil
}

// finishProcess closes stdin and records the final state of one run.
func (p *Process) finishProcess(exitCode int, reason exitReason) {
	p.stdinMu.Lock()
	p.stdin = nil
	p.stdinMu.Unlock()

	p.stateMu.Lock()
	p.pid = 0
	p.stateMu.Unlock()

	if reason == exitReasonProcessExit && exitCode != 0 {
		p.setState(StateError, fmt.Errorf("process exited with code %d", exitCode))
		return
	}
	p.setState(StateIdle, nil)
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// handleProcessExit extracts exit code from process error and logs non-ExitError errors.
func (p *Process) handleProcessExit(processErr error) int {
	exitCode := exitCodeFromError(processErr)
	if processErr != nil && exitCode == 1 {
		p.logger.Error("Process exited with error", "error", processErr)
	}
	return exitCode
}

// Run starts the subprocess and blocks until it exits or receives a signal.
// Returns the exit code of the subprocess.
func (p *Process) Run() int {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	exitCode, _ := p.runOnce(sigChan, nil)
	return exitCode
}

// RunWithRestart runs the subprocess and handles restart requests.
// It loops, restarting the process when RequestRestart() is called.
// Returns only on shutdown signal or unrecoverable error.
func (p *Process) RunWithRestart() int {
	// Setup signal handling once for the entire lifecycle
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		exitCode, reason := p.runOnce(sigChan, p.restartChan)

		switch reason {
		case exitReasonShutdown:
			p.logger.Info("Shutdown complete", "exit_code", exitCode)
			return exitCode
		case exitReasonRestart:
			p.stateMu.Lock()
			p.restartCount++
			p.stateMu.Unlock()
			p.logger.Info("Restarting process")
			continue
		case exitReasonProcessExit:
			// Process exited unexpectedly - don't restart, let parent handle
			p.logger.Info("Process exited unexpectedly", "exit_code", exitCode)
			return exitCode
		}
	}
}

// runOnce runs the process once and returns the exit code and reason for exit.
// A nil restart channel disables restarts.
func (p *Process) runOnce(sigChan <-chan os.Signal, restart <-chan string) (int, exitReason) {
	command := p.GetCommand()

	rp, err := p.startProcess(command)
	if err != nil {
		return 1, exitReasonProcessExit
	}

	exitCode, reason := p.supervise(rp, sigChan, restart)
	<-rp.outputDone
	p.finishProcess(exitCode, reason)
	return exitCode, reason
}

func (p *Process) supervise(rp *runningProcess, sigChan <-chan os.Signal, restart <-chan string) (int, exitReason) {
	select {
	case <-p.ctx.Done():
		p.logger.Info("Context cancelled, shutting down process")
		return p.stop(rp.processDone), exitReasonShutdown

	case sig := <-sigChan:
		p.logger.Info("Received shutdown signal", "signal", sig.String())
		p.cancel()
		return p.stop(rp.processDone), exitReasonShutdown

	case newCmd := <-restart:
		p.logger.Info("Received restart request")
		exitCode := p.stop(rp.processDone)
		p.commandMu.Lock()
		p.command = newCmd
		p.commandMu.Unlock()
		return exitCode, exitReasonRestart

	case processErr := <-rp.processDone:
		exitCode := p.handleProcessExit(processErr)
		p.logger.Info("Process exited", "exit_code", exitCode)
		return exitCode, exitReasonProcessExit
	}
}

// stop moves to StateStopping, asks the server to exit and waits for it.
func (p *Process) stop(processDone <-chan error) int {
	p.setState(StateStopping, nil)
	p.sendStopCommand()
	p.sendStopSignal()
	return p.waitForExit(processDone, p.gracefulTimeout)
}

// sendStopCommand writes the configured stop command to stdin, if any.
func (p *Process) sendStopCommand() {
	if p.stopCommand == "" {
		return
	}
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()
	if p.stdin == nil {
		return
	}
	if _, err := io.WriteString(p.stdin, p.stopCommand+"\n"); err != nil {
		p.logger.Warn("Failed to send stop command", "error", err)
	}
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.logger.Info("Sending SIGINT to process", "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Process) waitForExit(processDone <-chan error, timeout time.Duration) int {
	select {
	case err := <-processDone:
		return exitCodeFromError(err)
	case <-time.After(timeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", timeout)
		if p.cmd.Process != nil {
			if err := p.cmd.Process.Kill(); err != nil {
				// "os: process already finished" is OK - process exited between timeout and kill
				if !errors.Is(err, os.ErrProcessDone) {
					p.logger.Error("Failed to kill process", "error", err)
				}
			}
		}
		// Wait for process to exit with a secondary timeout to prevent hanging
		select {
		case <-processDone:
			// Process exited
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal")
		}
		return 137
	}
}

// readOutput scans one output stream into lines.
func (p *Process) readOutput(reader io.Reader, source string, lines chan<- outputLine) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lines <- outputLine{source: source, text: scanner.Text()}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}

// deliverOutput hands lines to the output handler and echoes them to the
// process logger. It is the only caller of HandleLine.
func (p *Process) deliverOutput(lines <-chan outputLine) {
	// Use process logger if configured, otherwise fall back to default logger
	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for line := range lines {
		if p.outputHandler != nil {
			p.outputHandler.HandleLine(line.source, line.text)
		}

		// Use configured parser or default to info level
		level, msg := "info", line.text
		if p.logParser != nil {
			level, msg = p.logParser(line.text)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg)
		case "warning", "warn":
			logger.Warn(msg)
		case "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}
}

// parseCommand parses a command string into arguments
// Handles quoted strings and basic escaping.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	command = strings.TrimSpace(command)
	runes := []rune(command)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			// Handle escape sequences
			i++ // Skip the backslash
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	// Add final argument
	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, errors.New("unclosed quote in command")
	}

	return args, nil
}
