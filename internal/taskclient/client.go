// Package taskclient is the internal service-to-service client for the Task
// API. It is used by the recurring regenerator to create successor tasks; the
// call is mesh-internal and not user-authenticated.
package taskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/sony/gobreaker"
)

// ErrRejected indicates the Task API refused the request with a 4xx.
// Retrying cannot help; callers record the failure and move on.
var ErrRejected = errors.New("task api rejected request")

// CreateTaskRequest is the internal task-creation body. UserID rides in the
// body because internal routes are not user-scoped paths.
type CreateTaskRequest struct {
	UserID         string     `json:"user_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Priority       *string    `json:"priority,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	IsRecurring    bool       `json:"is_recurring"`
	RecurrenceRule *string    `json:"recurrence_rule,omitempty"`
}

// CreatedTask is the subset of the response the regenerator cares about.
type CreatedTask struct {
	ID string `json:"id"`
}

// Client calls the Task API's internal surface with bounded retries and a
// circuit breaker so a down API does not melt the consumer loop.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	attempts   uint
}

// New creates a client for the given Task API base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "task-api",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		attempts: 3,
	}
}

// CreateTask creates a task on behalf of a user. 4xx responses surface as
// ErrRejected; transport errors and 5xx responses are retried with backoff
// and, past the breaker threshold, fail fast.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*CreatedTask, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		var created *CreatedTask
		err := retry.Do(
			func() error {
				var doErr error
				created, doErr = c.doCreate(ctx, body)
				return doErr
			},
			retry.Attempts(c.attempts),
			retry.Delay(200*time.Millisecond),
			retry.DelayType(retry.BackOffDelay),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return !errors.Is(err, ErrRejected)
			}),
		)
		return created, err
	})
	if err != nil {
		return nil, err
	}

	return result.(*CreatedTask), nil
}

func (c *Client) doCreate(ctx context.Context, body []byte) (*CreatedTask, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("task api unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		var created CreatedTask
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &created, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, detail)

	default:
		return nil, fmt.Errorf("task api returned status %d", resp.StatusCode)
	}
}
