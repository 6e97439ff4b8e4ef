package expansion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPWordVectorClient talks to the word-vector service over HTTP. Calls
// run behind a circuit breaker so a dead service fails fast instead of
// stalling every search request on its timeout.
type HTTPWordVectorClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]Neighbor]
}

type similarResponse struct {
	Neighbors []Neighbor `json:"neighbors"`
}

func NewHTTPWordVectorClient(baseURL string, timeout time.Duration) *HTTPWordVectorClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	settings := gobreaker.Settings{
		Name:    "wordvec",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Out-of-vocabulary is a valid answer, not a service failure.
			return err == nil || errors.Is(err, ErrOutOfVocabulary)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	return &HTTPWordVectorClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[[]Neighbor](settings),
	}
}

// Similar fetches the count nearest neighbors of term.
func (c *HTTPWordVectorClient) Similar(ctx context.Context, term string, count int) ([]Neighbor, error) {
	return c.breaker.Execute(func() ([]Neighbor, error) {
		return c.similar(ctx, term, count)
	})
}

func (c *HTTPWordVectorClient) similar(ctx context.Context, term string, count int) ([]Neighbor, error) {
	endpoint := fmt.Sprintf("%s/similar?word=%s&count=%s",
		c.baseURL, url.QueryEscape(term), strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build word-vector request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("word-vector service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrOutOfVocabulary
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("word-vector service returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed similarResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode word-vector response: %w", err)
	}
	return parsed.Neighbors, nil
}
