// Package client is the zkvault HTTP API client.
//
// HTTPClient implements services.RecordStore, services.Authenticator and
// services.RotationCommitter over the server's JSON API using resty. The
// bearer token is read from a TokenSource on every request, so the session
// remains its single owner.
//
// HTTP statuses are mapped back to the sentinel errors in internal/common:
// 400 ErrorValidation, 401/403 ErrorUnauthorized, 404 ErrorNotFound,
// 409 ErrConflict, 429/502/503/504 and transport failures ErrUnavailable,
// anything else ErrorInternal.
package client
