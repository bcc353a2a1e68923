package connectivity

import (
	"context"
	"fmt"
	"net/http"
)

// HTTPSource treats a reachable probe URL as "online". Any 2xx-5xx
// response counts: the question is reachability, not endpoint health.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{},
	}
}

func (s *HTTPSource) Online(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, nil
	}
	resp.Body.Close()

	return true, nil
}
