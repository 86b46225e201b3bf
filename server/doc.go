// Package server exposes the research assistant, browser automation and
// run history over HTTP.
//
// Routes:
//
//	GET    /
//	GET    /api/health
//	POST   /api/research
//	GET    /api/research/{thread}
//	DELETE /api/research/{thread}
//	POST   /api/research/{thread}/template-feedback
//	POST   /api/research/{thread}/analyst-feedback
//	GET    /api/research/{thread}/report.html
//	POST   /api/browse                  (NDJSON stream, auth)
//	GET    /api/history                 (auth)
//	GET    /api/history/{id}            (auth)
//	DELETE /api/history/{id}            (auth)
//
// Authenticated routes read the user from the "sub" claim of a Bearer
// token. The signature is not checked; run the server behind a gateway that
// verifies tokens.
package server
