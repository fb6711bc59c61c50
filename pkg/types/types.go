// Package types defines the JSON bodies exchanged with the phonebook API.
// It is imported by the server and by pkg/client.
package types

// Person is the wire representation of a phonebook entry.
type Person struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// PersonRequest is the body of create and update requests.
type PersonRequest struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// ErrorResponse is the body of every JSON error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ReadinessResponse is returned by GET /readiness when the store is up.
type ReadinessResponse struct {
	Status string `json:"status"`
}

// VersionResponse is returned by GET /version.
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}
