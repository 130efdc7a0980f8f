package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jcmexdev/order-registration/internal/order-service/domain"
	"github.com/jcmexdev/order-registration/internal/order-service/ports"
	"github.com/jcmexdev/order-registration/internal/pkg/cache"
	"github.com/jcmexdev/order-registration/internal/pkg/requestctx"
)

const (
	registerOperation = "register"
	pendingMarker     = "pending"
	// maxReservation bounds how long a crashed registration blocks its key.
	maxReservation = time.Minute
)

// IdempotentService replays the confirmed result of an earlier registration
// carrying the same idempotency key instead of registering the order twice.
// The key is reserved before the saga runs, so a concurrent duplicate is
// rejected as a conflict. Only confirmed registrations are remembered;
// failures release the key so they can be retried.
type IdempotentService struct {
	next   ports.OrderService
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.OrderService = (*IdempotentService)(nil)

func NewIdempotentService(next ports.OrderService, c cache.Cache, ttl time.Duration, logger *slog.Logger) *IdempotentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotentService{next: next, cache: c, ttl: ttl, logger: logger}
}

func (s *IdempotentService) RegisterOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	key := requestctx.IdempotencyKey(ctx)
	if key == "" || s.cache == nil {
		return s.next.RegisterOrder(ctx, req)
	}
	cacheKey := s.cache.GenerateKey(registerOperation, key)

	reserved, err := s.cache.SetNX(ctx, cacheKey, pendingMarker, s.reservationTTL())
	if err != nil {
		// the cache is an optimisation; registration proceeds without it
		s.logger.WarnContext(ctx, "idempotency reservation failed", "idempotency_key", key, "error", err)
		return s.next.RegisterOrder(ctx, req)
	}
	if !reserved {
		return s.replay(ctx, cacheKey, key)
	}

	res, err := s.next.RegisterOrder(ctx, req)
	detached := context.WithoutCancel(ctx)
	if err != nil {
		s.release(detached, cacheKey, key)
		return nil, err
	}

	payload, err := json.Marshal(res)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode registration result", "error", err)
		s.release(detached, cacheKey, key)
		return res, nil
	}
	if err := s.cache.Set(detached, cacheKey, payload, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "failed to remember registration", "idempotency_key", key, "error", err)
	}
	return res, nil
}

// replay answers a request whose key is already taken.
func (s *IdempotentService) replay(ctx context.Context, cacheKey, key string) (*domain.OrderResult, error) {
	cached, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		return nil, domain.ExternalServiceUnavailable("idempotency store unavailable", err)
	}

	switch cached {
	case pendingMarker, "":
		s.logger.InfoContext(ctx, "duplicate registration while the first is in flight", "idempotency_key", key)
		return nil, domain.Conflict("registration with this idempotency key is in progress")
	}

	var res domain.OrderResult
	if err := json.Unmarshal([]byte(cached), &res); err != nil {
		s.logger.WarnContext(ctx, "discarding unreadable idempotency entry", "idempotency_key", key, "error", err)
		s.release(context.WithoutCancel(ctx), cacheKey, key)
		return nil, domain.Conflict("stored result for this idempotency key was unreadable; retry the request")
	}
	s.logger.InfoContext(ctx, "replaying registration for idempotency key",
		"idempotency_key", key, "order_id", res.OrderID)
	return &res, nil
}

func (s *IdempotentService) release(ctx context.Context, cacheKey, key string) {
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		s.logger.WarnContext(ctx, "failed to release idempotency key", "idempotency_key", key, "error", err)
	}
}

func (s *IdempotentService) reservationTTL() time.Duration {
	if s.ttl > 0 && s.ttl < maxReservation {
		return s.ttl
	}
	return maxReservation
}
