package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/conventionhub/internal/observability"
)

const tokenHeader = "x-auth-token"

var (
	// ErrExternalCallFailed marks a failed write (registration). It is fatal
	// to the owning task.
	ErrExternalCallFailed = errors.New("webinar platform call failed")
	// ErrUnavailable marks a failed read. Callers degrade to empty data.
	ErrUnavailable = errors.New("webinar platform unavailable")
)

type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds every call; the platform has been seen to hang.
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
	prom *observability.Prom
}

func NewClient(cfg Config, log *slog.Logger, prom *observability.Prom) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
		prom: prom,
	}
}

// SessionInfo fetches session status and attached files.
func (c *Client) SessionInfo(ctx context.Context, sessionID int64) (SessionInfo, error) {
	path := "/eventsessions/" + strconv.FormatInt(sessionID, 10)

	body, err := c.get(ctx, "session_info", path)
	if err != nil {
		return SessionInfo{}, err
	}

	var info SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		c.prom.ObservePlatform("session_info", "error")
		return SessionInfo{}, fmt.Errorf("%w: decode session %d: %v", ErrUnavailable, sessionID, err)
	}
	info.Raw = body
	return info, nil
}

// TestID resolves the session's test. A failed lookup is logged and
// reported as "no test".
func (c *Client) TestID(ctx context.Context, sessionID int64) (int64, bool) {
	info, err := c.SessionInfo(ctx, sessionID)
	if err != nil {
		c.log.WarnContext(ctx, "platform.test_id_degraded", "session_id", sessionID, "err", err)
		return 0, false
	}
	return info.TestID()
}

// Register signs email up for the session and returns the personal link.
// The platform's own invitation mail is suppressed.
func (c *Client) Register(ctx context.Context, sessionID int64, email string) (Registration, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("sendEmail", "false")

	path := "/eventsessions/" + strconv.FormatInt(sessionID, 10) + "/register"

	req, err := c.newRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return Registration{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.prom.ObservePlatform("register", "error")
		return Registration{}, fmt.Errorf("%w: register session=%d email=%s: %v", ErrExternalCallFailed, sessionID, email, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.prom.ObservePlatform("register", "error")
		c.log.ErrorContext(ctx, "platform.register_failed",
			"session_id", sessionID,
			"email", email,
			"status", resp.StatusCode,
		)
		return Registration{}, fmt.Errorf("%w: register session=%d email=%s: status %d", ErrExternalCallFailed, sessionID, email, resp.StatusCode)
	}

	var reg Registration
	if err := json.Unmarshal(body, &reg); err != nil {
		c.prom.ObservePlatform("register", "error")
		return Registration{}, fmt.Errorf("%w: decode registration: %v", ErrExternalCallFailed, err)
	}

	c.prom.ObservePlatform("register", "ok")
	return reg, nil
}

// VisitorStats lists visitors of eventID from startDate (YYYY-MM-DD).
func (c *Client) VisitorStats(ctx context.Context, eventID int64, startDate string) ([]VisitorStat, error) {
	q := url.Values{}
	q.Set("from", startDate)
	q.Set("eventId", strconv.FormatInt(eventID, 10))

	body, err := c.get(ctx, "visitor_stats", "/stats/users?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var out []VisitorStat
	if err := json.Unmarshal(body, &out); err != nil {
		c.prom.ObservePlatform("visitor_stats", "error")
		return nil, fmt.Errorf("%w: decode visitor stats: %v", ErrUnavailable, err)
	}
	return out, nil
}

// TestResults returns the first result block of the test.
func (c *Client) TestResults(ctx context.Context, testID int64) (TestResults, error) {
	body, err := c.get(ctx, "test_results", "/tests/"+strconv.FormatInt(testID, 10)+"/results")
	if err != nil {
		return TestResults{}, err
	}

	var blocks []TestResults
	if err := json.Unmarshal(body, &blocks); err != nil {
		c.prom.ObservePlatform("test_results", "error")
		return TestResults{}, fmt.Errorf("%w: decode test results: %v", ErrUnavailable, err)
	}
	if len(blocks) == 0 {
		return TestResults{}, nil
	}
	return blocks[0], nil
}

// get performs a read. Anything but 200 is ErrUnavailable.
func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.prom.ObservePlatform(op, "degraded")
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.prom.ObservePlatform(op, "degraded")
		return nil, fmt.Errorf("%w: %s: status %d", ErrUnavailable, op, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.prom.ObservePlatform(op, "degraded")
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrUnavailable, op, err)
	}

	c.prom.ObservePlatform(op, "ok")
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(tokenHeader, c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
