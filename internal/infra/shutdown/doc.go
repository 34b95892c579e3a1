// Package shutdown coordinates graceful process termination.
//
// A Handler waits for SIGINT, SIGTERM, context cancellation or an
// explicit Trigger, then runs the registered hooks in reverse order of
// registration under a shared deadline.
//
// Usage:
//
//	h := shutdown.NewHandler(30*time.Second, log)
//	h.OnShutdown("http", srv.Shutdown)
//	h.OnShutdown("engine", func(context.Context) error { eng.Shutdown(); return nil })
//	err := h.Wait(ctx)
package shutdown
