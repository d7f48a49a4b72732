// ABOUTME: Error types for node transport and REST calls
// ABOUTME: Sentinels plus wrapping errors usable with errors.Is and errors.As
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrClosed             = errors.New("connection closed")
	ErrUnauthorized       = errors.New("unauthorized: check the node password")
	ErrUnknownOp          = errors.New("unknown op")
	ErrUnknownEvent       = errors.New("unknown event type")
	ErrUnsupportedVersion = errors.New("not supported by this protocol version")
)

// TransportError is a dial, handshake, read or write failure on a node's
// WebSocket. Status is the HTTP status of a failed handshake, if any.
type TransportError struct {
	Node   string
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("node %s: %s: status %d: %v", e.Node, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("node %s: %s: %v", e.Node, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx REST response.
type HTTPError struct {
	Status  int
	Message string
	Path    string
	Body    string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: %d %s", e.Path, e.Status, msg)
}

// StatusCode returns the HTTP status.
func (e *HTTPError) StatusCode() int { return e.Status }

func newHTTPError(status int, path string, body []byte) *HTTPError {
	e := &HTTPError{Status: status, Path: path, Body: string(body)}
	var data ErrorData
	if json.Unmarshal(body, &data) == nil {
		e.Message = data.Message
		if e.Message == "" {
			e.Message = data.Error
		}
		if data.Path != "" {
			e.Path = data.Path
		}
	}
	return e
}
