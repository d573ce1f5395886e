// Package calendar mirrors jobs into Google Calendar and exports them as
// iCalendar feeds.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"usaha/internal/core"
	"usaha/internal/log"
	"usaha/internal/metrics"
	"usaha/internal/store"
)

// ErrSessionExpired is returned when Google rejects the owner's token. The
// token is dropped from the cache before it is returned.
var ErrSessionExpired = core.ErrSessionExpired

// ErrNotConnected means the owner has not handed over a calendar token.
var ErrNotConnected = errors.New("calendar not connected")

// Config selects the target calendar.
type Config struct {
	CalendarID string
	Location   *time.Location
	// Endpoint overrides the API base URL.
	Endpoint string
}

// Client is the calendar collaborator used by the store.
type Client struct {
	cfg     Config
	tokens  *TokenCache
	logger  *log.Logger
	metrics *metrics.Metrics
}

var _ store.Calendar = (*Client)(nil)

func NewClient(cfg Config, tokens *TokenCache, logger *log.Logger, m *metrics.Metrics) *Client {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimeZone)
		if err != nil {
			loc = time.UTC
		}
		cfg.Location = loc
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		cfg:     cfg,
		tokens:  tokens,
		logger:  logger.WithComponent(log.ComponentCalendar),
		metrics: m,
	}
}

// Tokens returns the session token cache.
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

func (c *Client) service(ctx context.Context, owner string) (*gcal.Service, error) {
	tok, ok := c.tokens.Get(owner)
	if !ok {
		return nil, ErrNotConnected
	}
	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(tok))}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return svc, nil
}

// Upsert creates the job's event, or updates it when the job already carries
// an event id. An event deleted on Google's side is recreated.
func (c *Client) Upsert(ctx context.Context, owner, businessName string, j core.Job) (string, error) {
	svc, err := c.service(ctx, owner)
	if err != nil {
		return "", err
	}
	ev := BuildEvent(businessName, j, c.cfg.Location)

	if j.CalendarEventID != "" {
		out, err := svc.Events.Update(c.cfg.CalendarID, j.CalendarEventID, ev).Context(ctx).Do()
		if err == nil {
			return out.Id, nil
		}
		if !isGone(err) {
			return "", c.fail(ctx, owner, "update", err)
		}
		c.logger.InfoContext(ctx, "Calendar event vanished, recreating",
			log.FieldEventID, j.CalendarEventID, log.FieldJobID, j.ID)
	}

	out, err := svc.Events.Insert(c.cfg.CalendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", c.fail(ctx, owner, "insert", err)
	}
	c.logger.DebugContext(ctx, "Calendar event saved", log.FieldEventID, out.Id, log.FieldJobID, j.ID)
	return out.Id, nil
}

// Delete removes an event. Events already gone count as deleted.
func (c *Client) Delete(ctx context.Context, owner, eventID string) error {
	if eventID == "" {
		return nil
	}
	svc, err := c.service(ctx, owner)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(c.cfg.CalendarID, eventID).Context(ctx).Do(); err != nil && !isGone(err) {
		return c.fail(ctx, owner, "delete", err)
	}
	return nil
}

func (c *Client) fail(ctx context.Context, owner, op string, err error) error {
	c.metrics.CalendarFailure(op)
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		c.tokens.Drop(owner)
		c.logger.WarnContext(ctx, "Calendar token rejected, dropped from session",
			log.FieldOwner, owner, log.FieldOperation, op)
		return fmt.Errorf("calendar %s: %w", op, ErrSessionExpired)
	}
	return fmt.Errorf("calendar %s: %w", op, err)
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}
