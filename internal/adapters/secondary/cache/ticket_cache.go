// Package cache holds a Redis read-through cache in front of the ticket
// store. The dashboard re-filters on every keystroke, so the same
// technician's ticket list is requested many times in a short window.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
)

const keyPrefix = "helpdesk-analytics"

// DefaultTTL is used when a non-positive TTL is configured.
const DefaultTTL = 30 * time.Second

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis. A failed ping is logged, not fatal: the
// cache falls through to the store while Redis is down.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("unable to reach redis", "addr", opts.Addr, "error", err)
	} else {
		logger.Info("connected to redis", "addr", opts.Addr)
	}

	return client
}

// TicketCache decorates a TicketRepository with a short-lived Redis cache.
type TicketCache struct {
	next   ports.TicketRepository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.TicketRepository = (*TicketCache)(nil)

// NewTicketCache wraps next with a cache on client.
func NewTicketCache(next ports.TicketRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *TicketCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TicketCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "ticket_cache"),
	}
}

// GetTechnician implements ports.TicketRepository.
func (c *TicketCache) GetTechnician(ctx context.Context, technicianID int64) (*domain.Technician, error) {
	key := technicianKey(technicianID)

	var tech domain.Technician
	if c.load(ctx, key, &tech) {
		return &tech, nil
	}

	found, err := c.next.GetTechnician(ctx, technicianID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, found)
	return found, nil
}

// ListByTechnician implements ports.TicketRepository.
func (c *TicketCache) ListByTechnician(ctx context.Context, params ports.ListTicketsParams) ([]domain.Ticket, error) {
	key := ticketsKey(params)

	var tickets []domain.Ticket
	if c.load(ctx, key, &tickets) {
		if tickets == nil {
			tickets = []domain.Ticket{}
		}
		return tickets, nil
	}

	tickets, err := c.next.ListByTechnician(ctx, params)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, tickets)
	return tickets, nil
}

// Invalidate drops everything cached for a technician.
func (c *TicketCache) Invalidate(ctx context.Context, technicianID int64) error {
	pattern := fmt.Sprintf("%s:tickets:%d:*", keyPrefix, technicianID)

	keys := []string{technicianKey(technicianID)}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached tickets: %w", err)
	}

	return c.client.Del(ctx, keys...).Err()
}

// Ping verifies Redis connectivity for readiness checks.
func (c *TicketCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *TicketCache) load(ctx context.Context, key string, dst any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (c *TicketCache) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func technicianKey(technicianID int64) string {
	return fmt.Sprintf("%s:technician:%d", keyPrefix, technicianID)
}

func ticketsKey(params ports.ListTicketsParams) string {
	return fmt.Sprintf("%s:tickets:%d:%s:%s:%d",
		keyPrefix, params.TechnicianID, boundKey(params.From), boundKey(params.To), params.Limit)
}

func boundKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
