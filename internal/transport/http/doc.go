// Package http implements the HTTP request handlers for the analysis
// service. It provides a thin layer between HTTP transport and business
// logic, keeping handlers focused solely on HTTP concerns.
//
// # Architecture Principles
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service errors to HTTP responses
//	4. No business logic - all logic belongs in the service layer
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Analyzer
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/analysis/solver-not-converged",
//	    "title": "Solver Did Not Converge",
//	    "status": 422,
//	    "detail": "merton solver did not converge: ...",
//	    "instance": "/api/v1/analysis",
//	    "best_residual": 0.42,
//	    "evaluations": 1200
//	}
//
// # Testing
//
// Handlers are tested using httptest with the real service wired to
// stub providers.
package http
