// Package common contains shared constants and sentinel errors used across
// zkvault components.
package common

// AuthorizationHeaderName carries the bearer access token on API requests.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName correlates client requests with server log lines.
const RequestIDHeaderName = "X-Request-ID"
