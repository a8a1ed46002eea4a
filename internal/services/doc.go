// Package services implements the business logic layer between the
// HTTP handlers and the Merton analysis engine.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Domain-focused methods that encapsulate business rules
//
// # Available Services
//
// The package provides:
//
//	- AnalysisService: Orchestrates analyses, sensitivity runs, and
//	  result retention per ticker
//	- EquityClient: Fetches firm fundamentals from an external market
//	  data API
//	- FREDClient: Resolves rating-bucket benchmark spreads from the
//	  ICE BofA option-adjusted spread indices on FRED
//
// # Error Handling
//
// Provider failures are wrapped in typed errors (DataUnavailableError,
// BenchmarkUnavailableError) that the transport layer maps to RFC 7807
// responses with the right status codes. Analysis errors from the
// solver pass through unchanged so their diagnostics survive to the
// response.
//
// # Testing
//
// Services are tested by mocking providers behind the
// EquityDataProvider and MarketSpreadProvider interfaces; the HTTP
// clients are tested against httptest servers.
package services
