package wwwx

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/cyclopcam/www"
)

// Fetch GETs url, and returns the response body, up to maxBytes.
// A non-200 response is an error.
func Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := www.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > maxBytes {
		return nil, fmt.Errorf("Response from %v is larger than %v bytes", url, maxBytes)
	}
	return b, nil
}
