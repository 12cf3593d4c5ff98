package client

import (
	"context"

	"github.com/dmitrijs2005/zkvault/internal/client/services"
)

// Client is the full server API used by the CLI.
type Client interface {
	services.RecordStore
	services.Authenticator
	services.RotationCommitter
	Ping(ctx context.Context) error
}

// TokenSource returns the current bearer token, or "" when logged out.
type TokenSource func() string
