package ports

import (
	"context"

	"github.com/aretw0/glacier/pkg/domain"
)

// HTTPClient performs outbound HTTP requests for scripts.
// The request URI must be absolute.
type HTTPClient interface {
	Do(ctx context.Context, req domain.Request) (domain.Response, error)
}
