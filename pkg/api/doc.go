// Package api serves validation over HTTP: registered messages are listed
// and validated by name, and /v1/check validates an instance against
// sources and rules supplied in the request.
package api
