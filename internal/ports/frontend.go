package ports

import (
	"context"
)

// Frontend drives the session controller from an operator surface
type Frontend interface {
	// Run serves the operator until ctx is done or they quit
	Run(ctx context.Context) error

	// Stop releases anything the frontend holds
	Stop() error
}
