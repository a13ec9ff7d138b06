// Package portal talks to the business portal's invoice API: paginated,
// date-filtered listing plus on-demand PDF fetch. Callers see a single
// lazy record sequence; pages, retries and session renewal are handled
// here.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicefetcher/internal/auth"
	"invoicefetcher/internal/logger"
	"invoicefetcher/pkg/models"
)

const dateLayout = "2006-01-02"

// Config holds portal client configuration.
type Config struct {
	// BaseURL is the portal API root, e.g. "https://business.example.com".
	BaseURL string

	// Timeout is the per-request timeout. Default: 30 seconds.
	Timeout time.Duration

	// MaxAttempts bounds retries of a single call on rate limiting or
	// transient failure. Default: 4.
	MaxAttempts int

	// RetryInterval is the initial backoff interval. Default: 500ms.
	RetryInterval time.Duration
}

// Client fetches invoice listings and PDF content.
type Client struct {
	baseURL       string
	client        *http.Client
	maxAttempts   int
	retryInterval time.Duration
	log           zerolog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		client:        &http.Client{Timeout: cfg.Timeout},
		maxAttempts:   cfg.MaxAttempts,
		retryInterval: cfg.RetryInterval,
		log:           logger.WithComponent("portal"),
	}
}

type wireInvoice struct {
	InvoiceNumber   string `json:"invoice_number"`
	TransactionDate string `json:"transaction_date"`
	Amount          string `json:"amount"`
	Team            string `json:"team"`
	ContentRef      string `json:"content_ref"`
}

type listPageResponse struct {
	Invoices      []wireInvoice `json:"invoices"`
	NextPageToken string        `json:"next_page_token"`
}

// List returns a lazy iterator over all invoices in the window. Pagination
// is followed transparently; records outside the window are dropped even
// if the portal returned them. The sequence restarts from scratch, it is
// not resumable mid-page.
func (c *Client) List(session *auth.Session, window models.SyncWindow) *ListIterator {
	return &ListIterator{
		client:  c,
		session: session,
		window:  window,
	}
}

// ListIterator yields invoice records one at a time, fetching pages on
// demand.
type ListIterator struct {
	client    *Client
	session   *auth.Session
	window    models.SyncWindow
	pageToken string
	buf       []models.InvoiceRecord
	done      bool
	malformed int
}

// Next returns the next record in the listing, or (nil, nil) when the
// listing is exhausted.
func (it *ListIterator) Next(ctx context.Context) (*models.InvoiceRecord, error) {
	for {
		if len(it.buf) > 0 {
			rec := it.buf[0]
			it.buf = it.buf[1:]
			return &rec, nil
		}
		if it.done {
			return nil, nil
		}
		if err := it.fetchPage(ctx); err != nil {
			it.done = true
			return nil, err
		}
	}
}

// Malformed reports how many listing entries were skipped because they
// could not be parsed.
func (it *ListIterator) Malformed() int {
	return it.malformed
}

func (it *ListIterator) fetchPage(ctx context.Context) error {
	c := it.client

	res, err := c.do(ctx, it.session, "ListPage", func() (*http.Request, error) {
		q := url.Values{}
		q.Set("team", it.window.Team)
		q.Set("since", it.window.Since.Format(dateLayout))
		q.Set("until", it.window.Until.Format(dateLayout))
		if it.pageToken != "" {
			q.Set("page_token", it.pageToken)
		}
		u := c.baseURL + "/api/v1/invoices?" + q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var page listPageResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return newPortalError("ListPage", err, "decode response")
	}

	it.pageToken = page.NextPageToken
	if it.pageToken == "" {
		it.done = true
	}

	for _, wi := range page.Invoices {
		rec, err := it.decodeRecord(wi)
		if err != nil {
			it.malformed++
			c.log.Warn().
				Err(err).
				Str("invoice_number", wi.InvoiceNumber).
				Msg("Skipping malformed listing entry")
			continue
		}
		// The portal occasionally leaks records just outside the requested
		// range (boundary and clock-skew mismatches); drop them here
		// rather than trusting the server-side filter.
		if !it.window.Contains(rec.TransactionDate) {
			c.log.Debug().
				Str("invoice_number", rec.InvoiceNumber).
				Time("transaction_date", rec.TransactionDate).
				Msg("Dropping record outside sync window")
			continue
		}
		it.buf = append(it.buf, *rec)
	}

	return nil
}

func (it *ListIterator) decodeRecord(wi wireInvoice) (*models.InvoiceRecord, error) {
	if wi.InvoiceNumber == "" {
		return nil, fmt.Errorf("missing invoice_number")
	}
	date, err := time.Parse(dateLayout, wi.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("bad transaction_date %q: %w", wi.TransactionDate, err)
	}
	amount, err := decimal.NewFromString(wi.Amount)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", wi.Amount, err)
	}
	// Sub-cent precision would be silently rounded into the filename,
	// fabricating an identity the portal never reported.
	if amount.Exponent() < -2 {
		return nil, fmt.Errorf("bad amount %q: more than two fractional digits", wi.Amount)
	}
	team := wi.Team
	if team == "" {
		team = it.window.Team
	}
	return &models.InvoiceRecord{
		InvoiceNumber:   wi.InvoiceNumber,
		TransactionDate: date,
		Amount:          amount,
		Team:            team,
		ContentRef:      wi.ContentRef,
	}, nil
}

// FetchContent downloads the PDF bytes behind a content ref.
func (c *Client) FetchContent(ctx context.Context, session *auth.Session, contentRef string) ([]byte, error) {
	res, err := c.do(ctx, session, "FetchContent", func() (*http.Request, error) {
		u := c.baseURL + "/api/v1/invoices/content/" + url.PathEscape(contentRef)
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, newPortalError("FetchContent", err, "read body")
	}
	return body, nil
}

// do performs one logical portal call with bounded retries. Rate limiting
// and transient failures back off exponentially, honoring a Retry-After
// hint when the portal sends one. A 401 triggers a single session renewal
// followed by one more attempt; a second 401 is final.
func (c *Client) do(ctx context.Context, session *auth.Session, op string, build func() (*http.Request, error)) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.Reset()

	renewed := false
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return nil, newPortalError(op, err, "create request")
		}
		req.Header.Set("Authorization", "Bearer "+session.Token())
		req.Header.Set("Accept", "application/json, application/pdf")

		res, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = &PortalError{Op: op, Err: ErrTransient, Details: err.Error()}
			c.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("Portal call failed, retrying")
			if err := sleepCtx(ctx, bo.NextBackOff()); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case res.StatusCode == http.StatusOK:
			return res, nil

		case res.StatusCode == http.StatusUnauthorized:
			res.Body.Close()
			if renewed {
				return nil, newPortalError(op, ErrAuthExpired, "session rejected after renewal")
			}
			renewed = true
			c.log.Info().Str("op", op).Msg("Session expired mid-run, renewing once")
			if err := session.Renew(ctx); err != nil {
				return nil, newPortalError(op, ErrAuthExpired, err.Error())
			}
			// Renewal succeeded; retry immediately without burning backoff.
			continue

		case res.StatusCode == http.StatusNotFound:
			res.Body.Close()
			return nil, newPortalError(op, ErrNotFound, "")

		case res.StatusCode == http.StatusTooManyRequests:
			hint := retryAfter(res)
			res.Body.Close()
			lastErr = &PortalError{Op: op, Err: ErrRateLimited, RetryAfter: hint}
			wait := bo.NextBackOff()
			if hint > wait {
				wait = hint
			}
			c.log.Warn().
				Str("op", op).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("Rate limited by portal")
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case res.StatusCode >= 500:
			body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
			res.Body.Close()
			lastErr = &PortalError{Op: op, Err: ErrTransient,
				Details: fmt.Sprintf("status %d: %s", res.StatusCode, string(body))}
			c.log.Warn().Str("op", op).Int("status", res.StatusCode).Int("attempt", attempt).Msg("Portal server error, retrying")
			if err := sleepCtx(ctx, bo.NextBackOff()); err != nil {
				return nil, err
			}
			continue

		default:
			body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
			res.Body.Close()
			return nil, newPortalError(op,
				fmt.Errorf("unexpected status %d: %s", res.StatusCode, string(body)), "")
		}
	}

	if lastErr == nil {
		lastErr = newPortalError(op, ErrTransient, "retry budget exhausted")
	}
	return nil, lastErr
}

func retryAfter(res *http.Response) time.Duration {
	v := res.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
