package lnurl

import "fmt"

const (
	// StatusOK is the status of a successful response.
	StatusOK = "OK"

	// StatusError is the status of a failed response.
	StatusError = "ERROR"

	// ReasonMissingSecret is the baseline failure when a request carries
	// neither a secret reference nor a signed creation request.
	ReasonMissingSecret = "Missing secret"

	// ReasonInvalidSecret is the uniform failure for a missing, unknown
	// or already-used secret. Lookup and action modes deliberately share
	// it so callers cannot tell which secrets ever existed.
	ReasonInvalidSecret = "Invalid secret"

	// ReasonInvalidSignature is the uniform failure for any signed
	// request that does not verify.
	ReasonInvalidSignature = "Invalid API key signature"

	// ReasonUnexpected is the generic failure used when a backend action
	// or the store fails; raw backend errors are never surfaced.
	ReasonUnexpected = "Unexpected error"
)

// StatusResponse is the JSON body of a plain success or failure.
type StatusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// OKResponse returns the plain success response.
func OKResponse() *StatusResponse {
	return &StatusResponse{Status: StatusOK}
}

// ErrorResponse returns a failure response with the given user-facing
// reason.
func ErrorResponse(reason string) *StatusResponse {
	return &StatusResponse{
		Status: StatusError,
		Reason: reason,
	}
}

// UnknownSubprotocolReason formats the failure reason for an unregistered
// tag.
func UnknownSubprotocolReason(tag string) string {
	return fmt.Sprintf("Unknown subprotocol: %q", tag)
}
