// Package process provides subprocess lifecycle management.
//
// Process wraps os/exec for a single subprocess:
//   - Spawn in its own process group, with spawn errors returned synchronously
//   - Graceful stop with SIGTERM and a configurable timeout
//   - Force kill with SIGKILL if graceful shutdown times out, bounded by a second timeout
//   - Output streaming with pluggable log parsing and line handlers
//   - Done channel closed as soon as the process is reaped, Drained once its output is flushed
//   - A foreground Run / RunWithRestart loop for CLI use
//
// Example usage under a supervisor:
//
//	proc := process.NewProcess("cam-1", "ffmpeg", args, logger)
//	proc.SetOutputHandler(handler)
//	if err := proc.Start(); err != nil {
//	    return err // nothing was spawned
//	}
//	go func() {
//	    <-proc.Done()
//	    onExit(proc.ExitStatus())
//	}()
//	...
//	proc.Stop()
package process
