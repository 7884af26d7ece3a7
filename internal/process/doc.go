// Package process manages the game server subprocess.
//
// Process wraps os/exec for a single long-running server:
//   - Console commands are written to the server's stdin (Execute)
//   - stdout and stderr are merged into one ordered line stream and handed
//     to an OutputHandler from a single goroutine
//   - Graceful shutdown with a console stop command or SIGINT and a
//     configurable timeout, then SIGKILL
//   - Restart support for configuration changes
//   - State tracking (idle, starting, running, stopping, error) with a
//     synchronous callback
//
// Example:
//
//	p := process.NewProcess("server", "java -jar server.jar nogui", logger, handler)
//	p.SetStateCallback(func(id string, old, new process.State, err error) {
//	    log.Printf("%s: %s -> %s", id, old, new)
//	})
//	go p.RunWithRestart()
//	_ = p.Execute("list")
package process
