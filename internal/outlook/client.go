// Package outlook talks to the Outlook REST (OData) mail endpoint.
package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"outlookterm/internal/model"
)

// PageSize is the number of messages FetchRecentInbox asks for.
const PageSize = 50

const maxResponseBytes = 32 << 20

var selectFields = []string{
	"Id", "Subject", "From", "DateTimeReceived", "BodyPreview", "Body",
	"IsRead", "HasAttachments", "Importance", "WebLink",
}

// TokenFunc supplies a bearer token. It is called before every request so
// an expired token can be replaced transparently.
type TokenFunc func(ctx context.Context) (string, error)

// Client is bound to one service base URL and one token supplier.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenFunc
	limiter *rate.Limiter
	log     *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit caps outgoing requests at rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) { c.log = l.WithField("pkg", "outlook") }
}

func NewClient(baseURL string, tokens TokenFunc, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		log:     logrus.NewEntry(logrus.StandardLogger()).WithField("pkg", "outlook"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ServiceError is a non-success answer from the mail service.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
}

// FetchRecentInbox returns the PageSize most recent inbox messages, newest
// first. Only the first page is read; Page.HasMore records whether the
// service had more.
//
// Errors wrap one of model.ErrAuthNoToken, model.ErrAuthRejected,
// model.ErrFetchNetwork or model.ErrFetchService, or whatever the token
// supplier returned.
func (c *Client) FetchRecentInbox(ctx context.Context) (model.Page, error) {
	q := url.Values{}
	q.Set("$orderby", "DateTimeReceived desc")
	q.Set("$top", strconv.Itoa(PageSize))
	q.Set("$select", strings.Join(selectFields, ","))

	var list messageList
	if err := c.get(ctx, "/Me/Folders('Inbox')/Messages", q, &list); err != nil {
		return model.Page{}, fmt.Errorf("fetch inbox: %w", err)
	}

	msgs := make([]model.Message, 0, len(list.Value))
	for _, m := range list.Value {
		msgs = append(msgs, m.toModel())
	}
	model.SortNewestFirst(msgs)
	hasMore := list.NextLink != ""
	if len(msgs) > PageSize {
		msgs = msgs[:PageSize]
		hasMore = true
	}
	c.log.WithFields(logrus.Fields{"count": len(msgs), "more": hasMore}).Info("inbox fetched")
	return model.Page{Messages: msgs, FetchedAt: time.Now(), HasMore: hasMore}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	token, err := c.tokens(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	if token == "" {
		return model.ErrAuthNoToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limit: %w", err)
	}

	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", model.ErrFetchService, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("request failed")
		return fmt.Errorf("%w: %w", model.ErrFetchNetwork, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", model.ErrFetchNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		svcErr := parseServiceError(resp.StatusCode, body)
		c.log.WithField("status", resp.StatusCode).WithField("code", svcErr.Code).Warn("service returned error")
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %w", model.ErrAuthRejected, svcErr)
		}
		return fmt.Errorf("%w: %w", model.ErrFetchService, svcErr)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", model.ErrFetchService, err)
	}
	return nil
}

func parseServiceError(status int, body []byte) *ServiceError {
	e := &ServiceError{StatusCode: status}
	var oe odataError
	if err := json.Unmarshal(body, &oe); err == nil && (oe.Error.Code != "" || oe.Error.Message != "") {
		e.Code = oe.Error.Code
		e.Message = oe.Error.Message
		return e
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		e.Message = text
	} else {
		e.Message = http.StatusText(status)
	}
	return e
}
