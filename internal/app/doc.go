// Package app assembles the reporting web server: router, middleware chain,
// handlers and graceful shutdown.
//
// # Usage
//
//	application, err := app.NewApplication(cfg, st, providers, logger, ":8080")
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Run returns after SIGINT or SIGTERM once in-flight requests have drained
// (bounded by server.shutdown_timeout) and telemetry has been flushed.
package app
