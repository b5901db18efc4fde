package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// StoreScheme is the URI scheme of images that live inside our blob store, eg "store:uploads/17.jpg"
const StoreScheme = "store"

var ErrUnsupportedURI = errors.New("Unsupported image URI")

// Maximum size of a source image that we're willing to read into memory
const MaxSourceImageBytes = 64 * 1024 * 1024

// Opener reads the content behind a source image URI
type Opener interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Resolver is the standard Opener.
// It understands bare filesystem paths, file:// URIs, and store: URIs.
type Resolver struct {
	Store Storage // May be nil, in which case store: URIs cannot be opened
}

func NewResolver(store Storage) *Resolver {
	return &Resolver{Store: store}
}

// Create a URI that refers to 'name' inside the blob store
func StoreURI(name string) string {
	return StoreScheme + ":" + name
}

// Split a URI into scheme and location.
// A URI with no scheme (or a single letter scheme, such as a Windows drive) is a filesystem path.
func ParseURI(uri string) (scheme, location string, err error) {
	if uri == "" {
		return "", "", fmt.Errorf("%w: empty", ErrUnsupportedURI)
	}
	if strings.HasPrefix(uri, StoreScheme+":") {
		return StoreScheme, strings.TrimPrefix(uri, StoreScheme+":"), nil
	}
	u, err := url.Parse(uri)
	if err != nil || len(u.Scheme) <= 1 {
		return "file", uri, nil
	}
	switch u.Scheme {
	case "file":
		return "file", u.Path, nil
	default:
		return "", "", fmt.Errorf("%w: %v", ErrUnsupportedURI, uri)
	}
}

func (r *Resolver) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	scheme, location, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case StoreScheme:
		if r.Store == nil {
			return nil, fmt.Errorf("%w: no blob store configured for %v", ErrUnsupportedURI, uri)
		}
		f, err := r.Store.ReadFile(ctx, location)
		if err != nil {
			return nil, err
		}
		return f.Reader, nil
	default:
		return os.Open(location)
	}
}

// Delete removes an image from the blob store.
// Filesystem paths are never deleted, because we don't own them.
func (r *Resolver) Delete(ctx context.Context, uri string) error {
	scheme, location, err := ParseURI(uri)
	if err != nil {
		return err
	}
	if scheme != StoreScheme || r.Store == nil {
		return nil
	}
	return r.Store.DeleteFile(ctx, location)
}

// ReadAll reads the entire image behind uri, up to MaxSourceImageBytes
func ReadAll(ctx context.Context, opener Opener, uri string) ([]byte, error) {
	rc, err := opener.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, MaxSourceImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxSourceImageBytes {
		return nil, fmt.Errorf("Image %v is larger than %v bytes", uri, MaxSourceImageBytes)
	}
	return b, nil
}
