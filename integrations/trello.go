package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/chxlky/trello-citydash/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultTrelloBaseURL = "https://api.trello.com/1"

	defaultAttempts = 3
	defaultBackoff  = 400 * time.Millisecond
	maxErrorExcerpt = 500
)

// APIError is returned for any non-2xx response, after retries when the
// status was retryable.
type APIError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trello API error (%d): %s", e.Status, e.Message)
}

func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// CallRecorder observes every HTTP attempt made against the Trello API.
type CallRecorder interface {
	RecordExternalAPICall(endpoint, method string, statusCode int, duration time.Duration, err error)
}

type TrelloClient struct {
	Client   *http.Client
	BaseURL  string
	APIKey   string
	APIToken string

	// Attempts is the total number of tries for 429 and 5xx responses.
	Attempts uint
	// Backoff is the first wait between attempts; it doubles every retry.
	Backoff time.Duration

	Recorder CallRecorder
	Logger   *zap.Logger
}

func NewTrelloClient(key, token string) *TrelloClient {
	return &TrelloClient{
		Client:   &http.Client{},
		BaseURL:  DefaultTrelloBaseURL,
		APIKey:   key,
		APIToken: token,
		Attempts: defaultAttempts,
		Backoff:  defaultBackoff,
		Logger:   zap.NewNop(),
	}
}

// Fetch issues an authenticated GET against path and decodes the JSON body into out.
func (tc *TrelloClient) Fetch(ctx context.Context, path string, query url.Values, out any) error {
	params := url.Values{}
	for k, v := range query {
		params[k] = v
	}
	params.Set("key", tc.APIKey)
	params.Set("token", tc.APIToken)

	apiURL := strings.TrimRight(tc.BaseURL, "/") + path + "?" + params.Encode()

	var body []byte
	err := retry.Do(
		func() error {
			b, err := tc.do(ctx, path, apiURL)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(tc.attempts()),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.retryable()
		}),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return retryDelay(n, err, tc.backoff())
		}),
		retry.OnRetry(func(n uint, err error) {
			tc.logger().Warn("Retrying Trello request",
				zap.String("path", path),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode Trello response for %s: %w", path, err)
	}
	return nil
}

func (tc *TrelloClient) do(ctx context.Context, path, apiURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create get request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	start := time.Now()
	resp, err := tc.Client.Do(req)
	if err != nil {
		tc.record(path, 0, time.Since(start), err)
		return nil, fmt.Errorf("failed to send get request: %w", err)
	}
	defer resp.Body.Close()
	tc.record(path, resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &APIError{
			Status:     resp.StatusCode,
			Message:    "rate limited by Trello after several attempts",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Trello response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Status:  resp.StatusCode,
			Message: truncate(strings.TrimSpace(string(bodyBytes)), maxErrorExcerpt),
		}
	}
	return bodyBytes, nil
}

// retryDelay honours a positive Retry-After, otherwise backs off exponentially from base.
func retryDelay(n uint, err error, base time.Duration) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	return base << n
}

func parseRetryAfter(v string) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func (tc *TrelloClient) record(path string, status int, d time.Duration, err error) {
	if tc.Recorder != nil {
		tc.Recorder.RecordExternalAPICall(path, http.MethodGet, status, d, err)
	}
}

func (tc *TrelloClient) attempts() uint {
	if tc.Attempts == 0 {
		return defaultAttempts
	}
	return tc.Attempts
}

func (tc *TrelloClient) backoff() time.Duration {
	if tc.Backoff <= 0 {
		return defaultBackoff
	}
	return tc.Backoff
}

func (tc *TrelloClient) logger() *zap.Logger {
	if tc.Logger == nil {
		return zap.NewNop()
	}
	return tc.Logger
}

func (tc *TrelloClient) BoardLists(ctx context.Context, boardID string) ([]models.List, error) {
	var lists []models.List
	err := tc.Fetch(ctx, "/boards/"+url.PathEscape(boardID)+"/lists", url.Values{
		"fields": {"id,name,closed,pos"},
		"filter": {"open"},
	}, &lists)
	return lists, err
}

func (tc *TrelloClient) BoardCustomFields(ctx context.Context, boardID string) ([]models.CustomField, error) {
	var fields []models.CustomField
	err := tc.Fetch(ctx, "/boards/"+url.PathEscape(boardID)+"/customFields", url.Values{
		"fields": {"id,name,type,options"},
	}, &fields)
	return fields, err
}

func (tc *TrelloClient) BoardCards(ctx context.Context, boardID string) ([]models.Card, error) {
	var cards []models.Card
	err := tc.Fetch(ctx, "/boards/"+url.PathEscape(boardID)+"/cards", url.Values{
		"filter":            {"open"},
		"fields":            {"id,name,desc,shortUrl,url,idList,idAttachmentCover,labels,idMembers,due,dueComplete,dateLastActivity"},
		"members":           {"true"},
		"member_fields":     {"fullName,username"},
		"attachments":       {"true"},
		"attachment_fields": {"id,name,url,mimeType"},
		"checklists":        {"all"},
		"checklist_fields":  {"id,name"},
		"checkItem_fields":  {"id,name,state,due,dueComplete,pos,idMember"},
		"customFieldItems":  {"true"},
	}, &cards)
	return cards, err
}
