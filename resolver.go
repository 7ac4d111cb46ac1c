package bulk_downloader

import (
	"context"
	"net/http"
)

// An Authenticator adds credentials to outgoing requests for sites that need them.
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// A Resolver turns a Post into the directly fetchable Resource(s) it links to. The Authenticator may be nil, and
// resolvers for sites that don't need credentials are free to ignore it.
type Resolver interface {
	FindResources(ctx context.Context, post *Post, auth Authenticator) ([]*Resource, error)
}

type ResolverFunc func(ctx context.Context, post *Post, auth Authenticator) ([]*Resource, error)

func (f ResolverFunc) FindResources(ctx context.Context, post *Post, auth Authenticator) ([]*Resource, error) {
	return f(ctx, post, auth)
}

// Authenticate applies auth to req if auth is non-nil.
func Authenticate(auth Authenticator, req *http.Request) error {
	if auth == nil {
		return nil
	}
	return auth.Authenticate(req)
}
