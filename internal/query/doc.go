// Package query turns the server's asynchronous output stream into blocking
// request/response calls.
//
// A caller registers a pattern (optionally sending a console command first)
// and blocks until a matching output line arrives or the deadline passes:
//
//	svc := query.NewService(query.ServiceOptions{Sink: proc, Logger: logger})
//	guard := query.NewGuard(svc.Registry(), query.GuardOptions{Publisher: bus})
//	guard.Start("server started")
//
//	m, ok := svc.ExecuteAndWaitMatch(ctx, "list",
//	    `There are (\d+) of a max of (\d+) players online:(.*)`, 5*time.Second)
//	if ok {
//	    online, _ := m.Group(1)
//	}
//
// The pieces:
//   - Waiter: one pending request with a one-shot result slot
//   - Registry: the set of live waiters, stamped with the current epoch,
//     each armed with a deadline timer
//   - Service.OnLine: the matcher, fed serially by a single line consumer
//   - Guard: start/stop/reload transitions that cancel every pending waiter
//
// Timeouts, cancellations and lifecycle transitions all resolve through the
// same Registry.Resolve, so the first writer wins and later attempts are
// no-ops. A blocked caller waits only on its own waiter's done channel.
//
// Wait must not be called from the goroutine that feeds OnLine: no further
// lines would be delivered and the call would always time out.
package query
