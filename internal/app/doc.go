// Package app provides application initialization and lifecycle
// management. It handles configuration loading, logger and metrics
// setup, service wiring, routing, and graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize the structured logger
//	3. Create the Merton analyzer and market data providers
//	4. Wire the analysis service
//	5. Set up the HTTP router and middleware
//	6. Configure the HTTP server
//
// # Usage
//
// The main entry point is typically:
//
//	app, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//	    log.Fatal(err)
//	}
package app
