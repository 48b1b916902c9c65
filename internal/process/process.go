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
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/camnode/internal/logging"
)

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, etc.)
type LogParser func(line string) (level, msg string)

type exitReason int

const (
	exitReasonProcessExit exitReason = iota
	exitReasonShutdown
	exitReasonRestart
)

const maxLineSize = 1024 * 1024

// Process manages the lifecycle of a subprocess.
type Process struct {
	id              string
	path            string
	args            []string
	argsMu          sync.RWMutex
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // parses process output for log level (nil = no parsing)
	outputHandler   OutputHandler
	ctx             context.Context
	cancel          context.CancelFunc
	restartChan     chan []string // receives new args for restart
	stopSignal      syscall.Signal
	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after SIGKILL before giving up
	drainTimeout    time.Duration // time allowed to drain output after exit

	mu      sync.Mutex
	current *runningProcess
}

// NewProcess creates a new process that runs path with args.
func NewProcess(id, path string, args []string, logger logging.Logger) *Process {
	ctx, cancel := context.WithCancel(context.Background())
	return &Process{
		id:              id,
		path:            path,
		args:            slices.Clone(args),
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		restartChan:     make(chan []string, 1),
		stopSignal:      syscall.SIGTERM,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		drainTimeout:    2 * time.Second,
	}
}

// Args returns a copy of the current argument vector.
func (p *Process) Args() []string {
	p.argsMu.RLock()
	defer p.argsMu.RUnlock()
	return slices.Clone(p.args)
}

// SetLogParser sets a custom logger and log parser for process output.
// The logger is used for process output (e.g., module="ffmpeg").
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetOutputHandler registers a handler for every output line. Must be called before Start.
func (p *Process) SetOutputHandler(handler OutputHandler) {
	p.outputHandler = handler
}

// SetTimeouts overrides the graceful stop window and the post-kill wait.
// Zero values keep the current setting.
func (p *Process) SetTimeouts(graceful, kill time.Duration) {
	if graceful > 0 {
		p.gracefulTimeout = graceful
	}
	if kill > 0 {
		p.killTimeout = kill
	}
}

// RequestRestart requests a restart with a new argument vector.
// Non-blocking: if a restart is already pending, this is a no-op.
func (p *Process) RequestRestart(args []string) {
	select {
	case p.restartChan <- slices.Clone(args):
		p.logger.Info("Restart requested")
	default:
		p.logger.Warn("Restart already pending, ignoring")
	}
}

// Shutdown triggers a graceful shutdown of a process started with Run or RunWithRestart.
func (p *Process) Shutdown() {
	p.cancel()
}

// runningProcess holds the state of one spawned subprocess.
type runningProcess struct {
	cmd     *exec.Cmd
	done    chan struct{} // closed once the process is reaped
	drained chan struct{} // closed once both output streams are finished
	exit    ExitStatus
}

// startProcess starts the subprocess and the goroutines that read its output and reap it.
func (p *Process) startProcess(args []string) (*runningProcess, error) {
	cmd := exec.Command(p.path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Own pipes so Wait does not close the read side before output is drained.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		p.logger.Error("Failed to start process", "error", err, "path", p.path)
		return nil, err
	}
	stdoutW.Close()
	stderrW.Close()

	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid)

	outputDone := make(chan struct{}, 2)
	go func() {
		p.streamOutput(stdoutR, "stdout")
		outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderrR, "stderr")
		outputDone <- struct{}{}
	}()

	rp := &runningProcess{
		cmd:     cmd,
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}

	go func() {
		rp.exit = exitStatusFromError(cmd.Wait())
		close(rp.done)

		// A grandchild can hold the pipes open after the leader is reaped.
		defer close(rp.drained)
		if !p.waitOutputDone(outputDone, p.drainTimeout) {
			p.logger.Warn("Output not drained after exit, closing pipes", "id", p.id)
			stdoutR.Close()
			stderrR.Close()
			p.waitOutputDone(outputDone, p.drainTimeout)
		}
		stdoutR.Close()
		stderrR.Close()
	}()

	return rp, nil
}

// waitOutputDone waits for both output streams to complete, up to timeout.
func (p *Process) waitOutputDone(outputDone <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for range 2 {
		select {
		case <-outputDone:
		case <-timer.C:
			return false
		}
	}
	return true
}

// Start spawns the subprocess and returns once it is running.
// Spawn failures are returned synchronously; exit is observed via Done.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		select {
		case <-p.current.done:
		default:
			return errors.New("process already started")
		}
	}

	rp, err := p.startProcess(p.Args())
	if err != nil {
		return err
	}
	p.current = rp
	return nil
}

// Done is closed as soon as the subprocess started by Start has been reaped.
// Output may still be draining; see Drained. It returns nil before Start.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return p.current.done
}

// Drained is closed after Done once every output line has been delivered, or
// the pipes were closed after the drain timeout. It returns nil before Start.
func (p *Process) Drained() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return p.current.drained
}

// ExitStatus returns the exit status of the last run. Only valid after Done is closed.
func (p *Process) ExitStatus() ExitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ExitStatus{}
	}
	return p.current.exit
}

// PID returns the process id of the running subprocess, or 0.
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.cmd.Process == nil {
		return 0
	}
	return p.current.cmd.Process.Pid
}

// Stop asks the subprocess to exit, escalating to SIGKILL after the graceful
// timeout. It returns within gracefulTimeout+killTimeout whatever the OS does.
func (p *Process) Stop() ExitStatus {
	p.mu.Lock()
	rp := p.current
	p.mu.Unlock()
	if rp == nil {
		return ExitStatus{}
	}

	select {
	case <-rp.done:
		return rp.exit
	default:
	}

	p.signal(rp, p.stopSignal)

	select {
	case <-rp.done:
		return rp.exit
	case <-time.After(p.gracefulTimeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", p.gracefulTimeout)
	}

	p.signal(rp, syscall.SIGKILL)

	select {
	case <-rp.done:
		return rp.exit
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal", "id", p.id)
		return ExitStatus{Code: 137, Signal: syscall.SIGKILL.String(), Err: errors.New("process did not exit after SIGKILL")}
	}
}

// signal delivers sig to the subprocess's process group.
func (p *Process) signal(rp *runningProcess, sig syscall.Signal) {
	if rp.cmd.Process == nil {
		return
	}
	pid := rp.cmd.Process.Pid
	p.logger.Debug("Sending signal to process group", "pid", pid, "signal", sig.String())
	if err := syscall.Kill(-pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return
		}
		// Fall back to the leader alone
		if sigErr := rp.cmd.Process.Signal(sig); sigErr != nil && !errors.Is(sigErr, os.ErrProcessDone) {
			p.logger.Warn("Failed to signal process", "signal", sig.String(), "error", sigErr)
		}
	}
}

// Run starts the subprocess and blocks until it exits or receives a signal.
// Returns the exit code of the subprocess.
func (p *Process) Run() int {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	code, _ := p.runOnce(sigChan)
	return code
}

// RunWithRestart runs the subprocess and handles restart requests.
// It loops, restarting the process when RequestRestart() is called.
// Returns only on shutdown signal or when the subprocess exits on its own.
func (p *Process) RunWithRestart() int {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		exitCode, reason := p.runOnce(sigChan)

		switch reason {
		case exitReasonShutdown:
			p.logger.Info("Shutdown complete", "exit_code", exitCode)
			return exitCode
		case exitReasonRestart:
			p.logger.Info("Restarting process")
			continue
		case exitReasonProcessExit:
			// Let the parent decide whether to restart
			p.logger.Info("Process exited unexpectedly", "exit_code", exitCode)
			return exitCode
		}
	}
}

// runOnce runs the process once and returns the exit code and reason for exit.
func (p *Process) runOnce(sigChan <-chan os.Signal) (int, exitReason) {
	if err := p.Start(); err != nil {
		return 1, exitReasonProcessExit
	}

	p.mu.Lock()
	rp := p.current
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		p.logger.Info("Context cancelled, shutting down process")
		return p.Stop().Code, exitReasonShutdown

	case sig := <-sigChan:
		p.logger.Info("Received shutdown signal", "signal", sig.String())
		return p.Stop().Code, exitReasonShutdown

	case newArgs := <-p.restartChan:
		p.logger.Info("Received restart request")
		code := p.Stop().Code
		p.argsMu.Lock()
		p.args = newArgs
		p.argsMu.Unlock()
		return code, exitReasonRestart

	case <-rp.done:
		<-rp.drained
		exit := rp.exit
		if exit.Err != nil && exit.Code == 1 {
			p.logger.Error("Process exited with error", "error", exit.Err)
		}
		p.logger.Info("Process exited", "exit_code", exit.Code)
		return exit.Code, exitReasonProcessExit
	}
}

// streamOutput streams output from the subprocess.
// Uses the configured processLogger (or falls back to default logger)
// and LogParser to pick a level for each line.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLines)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "panic", "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "verbose", "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}
