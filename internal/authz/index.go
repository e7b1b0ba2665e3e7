package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const grantsKeyPrefix = "authz:grants:"

// Source resolves granted permission names from storage.
type Source interface {
	Grants(ctx context.Context, userID int64) ([]string, error)
}

// PGSource resolves grants through the user → role → permission join.
type PGSource struct {
	pool *pgxpool.Pool
}

// NewPGSource constructs a PGSource backed by the provided pool.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

// Grants returns the deduplicated permission names granted to the user.
// A user with no roles gets an empty slice, not an error.
func (s *PGSource) Grants(ctx context.Context, userID int64) ([]string, error) {
	const query = `
		SELECT DISTINCT p.name
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY p.name`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: query grants: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("authz: scan grant: %w", err)
		}
		perms = append(perms, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: read grants: %w", err)
	}
	return perms, nil
}

// Index serves per-user grant sets with a short-TTL Redis cache in front of
// the source. Concurrent misses for the same user are collapsed into a single
// storage round trip. A cache failure degrades to a direct source read; only
// a source failure makes the index unavailable.
type Index struct {
	source Source
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewIndex constructs an Index. client may be nil to disable caching.
func NewIndex(source Source, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Index {
	return &Index{
		source: source,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Grants returns the permission set granted to the user.
func (i *Index) Grants(ctx context.Context, userID int64) (PermissionSet, error) {
	if cached, ok := i.cacheGet(ctx, userID); ok {
		return NewPermissionSet(cached), nil
	}

	v, err, _ := i.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		perms, err := i.source.Grants(ctx, userID)
		if err != nil {
			return nil, err
		}
		i.cacheSet(ctx, userID, perms)
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(v.([]string)), nil
}

// Invalidate drops the cached grant set for one user. Call after role
// assignment changes.
func (i *Index) Invalidate(ctx context.Context, userID int64) error {
	if i.client == nil {
		return nil
	}
	if err := i.client.Del(ctx, grantsKey(userID)).Err(); err != nil {
		return fmt.Errorf("authz: invalidate grants: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached grant set. Call after role-permission
// mutations, where the affected user population is unknown.
func (i *Index) InvalidateAll(ctx context.Context) error {
	if i.client == nil {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := i.client.Scan(ctx, cursor, grantsKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("authz: scan grants keys: %w", err)
		}
		if len(keys) > 0 {
			if err := i.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("authz: invalidate all grants: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Warm pre-populates the cache for the given users. Used by the background
// warmup job; failures for individual users are logged and skipped.
func (i *Index) Warm(ctx context.Context, userIDs []int64) {
	for _, id := range userIDs {
		if _, err := i.Grants(ctx, id); err != nil {
			if i.logger != nil {
				i.logger.Warn("permission cache warmup", slog.Int64("user_id", id), slog.Any("error", err))
			}
		}
	}
}

func (i *Index) cacheGet(ctx context.Context, userID int64) ([]string, bool) {
	if i.client == nil {
		return nil, false
	}
	payload, err := i.client.Get(ctx, grantsKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil && i.logger != nil {
			i.logger.Warn("grants cache read", slog.Any("error", err))
		}
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal(payload, &perms); err != nil {
		return nil, false
	}
	return perms, true
}

func (i *Index) cacheSet(ctx context.Context, userID int64, perms []string) {
	if i.client == nil {
		return
	}
	payload, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := i.client.Set(ctx, grantsKey(userID), payload, i.ttl).Err(); err != nil && i.logger != nil {
		i.logger.Warn("grants cache write", slog.Any("error", err))
	}
}

func grantsKey(userID int64) string {
	return grantsKeyPrefix + strconv.FormatInt(userID, 10)
}
