package types

// SuccessEnvelope wraps operational payloads such as readiness checks.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body shared by the backend and the request client.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
