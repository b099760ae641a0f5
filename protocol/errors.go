package protocol

import (
	"errors"
	"fmt"
)

// Numbered protocol error codes carried in closeWithError payloads. The codes
// are part of the wire contract with the extension; renumbering breaks peers.
const (
	CodeInternal          = 100
	CodeHandshakeFailed   = 101
	CodeSignatureInvalid  = 102
	CodeMessageOutOfOrder = 103
	CodeInvalidPayload    = 104
	CodeTransferIntegrity = 105
	CodeUpdateRequired    = 106
	CodeKeysExpired       = 107
	CodeRemoteError       = 108
)

// WebSocketError is a coded protocol failure. Every error escaping a message
// handler is converted to one before it reaches the peer.
type WebSocketError struct {
	Code    int
	Message string
	Err     error
}

func (e *WebSocketError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error %d: %s: %s", e.Code, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

func (e *WebSocketError) Unwrap() error {
	return e.Err
}

func protocolErr(code int, message string) *WebSocketError {
	return &WebSocketError{Code: code, Message: message}
}

func wrapErr(code int, message string, err error) *WebSocketError {
	return &WebSocketError{Code: code, Message: message, Err: err}
}

// asWebSocketError coerces any error into a coded one; unknown errors map to
// CodeInternal.
func asWebSocketError(err error) *WebSocketError {
	var wsErr *WebSocketError
	if errors.As(err, &wsErr) {
		return wsErr
	}
	return &WebSocketError{Code: CodeInternal, Message: err.Error(), Err: err}
}

// ResultStatus of a finished session.
type ResultStatus string

const (
	StatusSuccess   ResultStatus = "success"
	StatusFailure   ResultStatus = "failure"
	StatusCancelled ResultStatus = "cancelled"
)

// Result is what the caller observes; no errors cross the protocol boundary.
type Result struct {
	Status       ResultStatus
	ErrorCode    int
	ErrorMessage string
}

func successResult() Result {
	return Result{Status: StatusSuccess}
}

func cancelledResult() Result {
	return Result{Status: StatusCancelled, ErrorMessage: "closed by user"}
}

func failureResult(err *WebSocketError) Result {
	return Result{Status: StatusFailure, ErrorCode: err.Code, ErrorMessage: err.Message}
}
