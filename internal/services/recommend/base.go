package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	xhttp "RewardBid/pkg/http"
)

// httpBase posts JSON to one collaborator endpoint with bounded retries.
type httpBase struct {
	baseURL string
	client  *xhttp.Client
}

func newHTTPBase(baseURL string, timeout time.Duration, opts ...xhttp.ClientOption) *httpBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &httpBase{baseURL: baseURL, client: xhttp.NewClient(opts...)}
}

func (b *httpBase) postJSON(ctx context.Context, path string, payload, dest interface{}) error {
	if b.baseURL == "" {
		return errors.New("recommender url not configured")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Body:   payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// postJSONWithRetry retries transport failures and 5xx/429 answers; other
// statuses are returned at once.
func (b *httpBase) postJSONWithRetry(ctx context.Context, path string, payload, dest interface{}, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = b.postJSON(ctx, path, payload, dest); err == nil {
			return nil
		}
		var se *xhttp.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return err
		}
		if i == attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
