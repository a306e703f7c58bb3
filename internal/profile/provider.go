package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookline-ai/bookline/internal/hours"
	"github.com/bookline-ai/bookline/pkg/logging"
)

// ErrNotFound means no profile exists for the business.
var ErrNotFound = errors.New("profile: business not found")

// DefaultCacheTTL bounds how stale a cached profile may get.
const DefaultCacheTTL = 5 * time.Minute

// Profile is the per-business configuration the engine and notifier need.
type Profile struct {
	BusinessID string          `json:"businessId" dynamodbav:"businessId"`
	Name       string          `json:"name" dynamodbav:"name"`
	Timezone   string          `json:"timezone,omitempty" dynamodbav:"timezone,omitempty"`
	HoursJSON  json.RawMessage `json:"hours,omitempty" dynamodbav:"hours,omitempty"`

	NotifyEmail     bool     `json:"notifyEmail" dynamodbav:"notifyEmail"`
	EmailRecipients []string `json:"emailRecipients,omitempty" dynamodbav:"emailRecipients,omitempty"`
	NotifySMS       bool     `json:"notifySms" dynamodbav:"notifySms"`
	SMSNumber       string   `json:"smsNumber,omitempty" dynamodbav:"smsNumber,omitempty"`
}

// Source loads profiles from the system of record.
type Source interface {
	FetchProfile(ctx context.Context, businessID string) (*Profile, error)
}

// Provider is what the rest of the system sees: profiles plus the parsed
// hours index for availability checks.
type Provider interface {
	GetBusinessProfile(ctx context.Context, businessID string) (*Profile, error)
	BusinessHours(ctx context.Context, businessID string) (hours.Index, error)
}

// CachedProvider fronts a Source with a redis cache. Cache trouble is
// logged and falls through to the source; only the source decides whether
// a business exists.
type CachedProvider struct {
	source Source
	cache  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedProvider constructs a provider. cache may be nil to run
// uncached.
func NewCachedProvider(source Source, cache *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedProvider {
	if source == nil {
		panic("profile: source required")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedProvider{source: source, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(businessID string) string {
	return "bookline:profile:" + businessID
}

// GetBusinessProfile returns the profile, from cache when fresh.
func (p *CachedProvider) GetBusinessProfile(ctx context.Context, businessID string) (*Profile, error) {
	if businessID == "" {
		return nil, fmt.Errorf("profile: business id required")
	}

	if p.cache != nil {
		raw, err := p.cache.Get(ctx, cacheKey(businessID)).Bytes()
		if err == nil {
			var cached Profile
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
			p.logger.Warn("corrupt cached profile, refetching", "business_id", businessID)
		} else if !errors.Is(err, redis.Nil) {
			p.logger.Warn("profile cache read failed", "business_id", businessID, "error", err)
		}
	}

	fetched, err := p.source.FetchProfile(ctx, businessID)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if raw, err := json.Marshal(fetched); err == nil {
			if err := p.cache.Set(ctx, cacheKey(businessID), raw, p.ttl).Err(); err != nil {
				p.logger.Warn("profile cache write failed", "business_id", businessID, "error", err)
			}
		}
	}
	return fetched, nil
}

// BusinessHours parses the profile's schedule. Implements the hours side
// of availability checks.
func (p *CachedProvider) BusinessHours(ctx context.Context, businessID string) (hours.Index, error) {
	prof, err := p.GetBusinessProfile(ctx, businessID)
	if err != nil {
		return nil, err
	}
	idx, err := hours.Parse(prof.HoursJSON)
	if err != nil {
		return nil, fmt.Errorf("profile: business %s hours: %w", businessID, err)
	}
	return idx, nil
}

// Invalidate drops a business from the cache, for profile updates.
func (p *CachedProvider) Invalidate(ctx context.Context, businessID string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Del(ctx, cacheKey(businessID)).Err(); err != nil {
		p.logger.Warn("profile cache invalidation failed", "business_id", businessID, "error", err)
	}
}
