// Package middleware provides the HTTP middleware chain for the Minerva
// API surface: panic recovery, structured request logging, request ID
// propagation, CORS, and per-request timeouts.
//
// Middleware composes outermost first:
//
//	handler = Recovery(Logging(RequestID(CORS(cfg)(Auth(Timeout(d)(mux))))))
//
// Recovery sits outermost so a panic anywhere in the chain still produces
// a well-formed error response, and Logging wraps everything below it so
// every request gets exactly one completion log line.
package middleware
