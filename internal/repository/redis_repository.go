package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/Kosench/tinylink/internal/errors"
	"github.com/Kosench/tinylink/internal/model"
	"github.com/redis/go-redis/v9"
)

// Все изменения выполняются Lua-скриптами: Redis исполняет скрипт атомарно.
var (
	// KEYS: link, link:id, links:created
	// ARGV: id, short_code, target_url, created_at
	createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1],
	'id', ARGV[1],
	'short_code', ARGV[2],
	'target_url', ARGV[3],
	'total_clicks', 0,
	'created_at', ARGV[4])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[1], ARGV[2])
return 1
`)

	// KEYS: link
	// ARGV: id, now
	clickScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') ~= ARGV[1] then
	return false
end
redis.call('HINCRBY', KEYS[1], 'total_clicks', 1)
local created = redis.call('HGET', KEYS[1], 'created_at')
local now = ARGV[2]
if tonumber(now) < tonumber(created) then
	now = created
end
redis.call('HSET', KEYS[1], 'last_clicked_time', now)
return redis.call('HGETALL', KEYS[1])
`)

	// KEYS: link, link:id, links:created
	// ARGV: id, short_code
	deleteScript = redis.NewScript(`
local id = redis.call('HGET', KEYS[1], 'id')
if not id then
	return 0
end
if id ~= ARGV[1] then
	return -1
end
redis.call('DEL', KEYS[1], KEYS[2])
redis.call('ZREM', KEYS[3], ARGV[2])
return 1
`)
)

const deleteAttempts = 3

// RedisLinkRepository - key-value хранилище ссылок на Redis
type RedisLinkRepository struct {
	client *redis.Client
	keys   *KeyBuilder
	now    func() time.Time
}

func NewRedisLinkRepository(client *redis.Client, namespace string) *RedisLinkRepository {
	return &RedisLinkRepository{
		client: client,
		keys:   NewKeyBuilder(namespace),
		now:    time.Now,
	}
}

func (r *RedisLinkRepository) FindByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	fields, err := r.client.HGetAll(ctx, r.keys.Link(shortCode)).Result()
	if err != nil {
		return nil, apperrors.NewStorageError("find", err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("link with short code '%s': %w", shortCode, apperrors.ErrLinkNotFound)
	}

	link, err := linkFromHash(fields)
	if err != nil {
		return nil, apperrors.NewStorageError("find", err)
	}

	return link, nil
}

// Create резервирует ID через INCR (пропуски допустимы, как у BIGSERIAL),
// затем проверка и запись выполняются одним скриптом.
func (r *RedisLinkRepository) Create(ctx context.Context, shortCode, targetURL string) (*model.Link, error) {
	id, err := r.client.Incr(ctx, r.keys.Sequence()).Result()
	if err != nil {
		return nil, apperrors.NewStorageError("create", err)
	}

	createdAt := r.now().UTC().Truncate(time.Microsecond)

	created, err := createScript.Run(ctx, r.client,
		[]string{r.keys.Link(shortCode), r.keys.LinkID(id), r.keys.Created()},
		id, shortCode, targetURL, createdAt.UnixMicro(),
	).Int()
	if err != nil {
		return nil, apperrors.NewStorageError("create", err)
	}

	if created == 0 {
		return nil, apperrors.NewConflictError(shortCode)
	}

	return &model.Link{
		ID:          id,
		ShortCode:   shortCode,
		TargetURL:   targetURL,
		TotalClicks: 0,
		CreatedAt:   createdAt,
	}, nil
}

func (r *RedisLinkRepository) RegisterClick(ctx context.Context, id int64) (*model.Link, error) {
	shortCode, err := r.client.Get(ctx, r.keys.LinkID(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("link with ID %d: %w", id, apperrors.ErrLinkNotFound)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("click", err)
	}

	res, err := clickScript.Run(ctx, r.client,
		[]string{r.keys.Link(shortCode)},
		id, r.now().UnixMicro(),
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("link with ID %d: %w", id, apperrors.ErrLinkNotFound)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("click", err)
	}

	fields, err := pairsToMap(res)
	if err != nil {
		return nil, apperrors.NewStorageError("click", err)
	}

	link, err := linkFromHash(fields)
	if err != nil {
		return nil, apperrors.NewStorageError("click", err)
	}

	return link, nil
}

func (r *RedisLinkRepository) DeleteByCode(ctx context.Context, shortCode string) error {
	linkKey := r.keys.Link(shortCode)

	// Ссылку могли пересоздать между HGET и скриптом - тогда повторяем
	for attempt := 0; attempt < deleteAttempts; attempt++ {
		rawID, err := r.client.HGet(ctx, linkKey, "id").Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("link with short code '%s': %w", shortCode, apperrors.ErrLinkNotFound)
		}
		if err != nil {
			return apperrors.NewStorageError("delete", err)
		}

		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return apperrors.NewStorageError("delete", fmt.Errorf("corrupt id %q: %w", rawID, err))
		}

		deleted, err := deleteScript.Run(ctx, r.client,
			[]string{linkKey, r.keys.LinkID(id), r.keys.Created()},
			id, shortCode,
		).Int()
		if err != nil {
			return apperrors.NewStorageError("delete", err)
		}

		switch deleted {
		case 1:
			return nil
		case 0:
			return fmt.Errorf("link with short code '%s': %w", shortCode, apperrors.ErrLinkNotFound)
		}
	}

	return apperrors.NewStorageError("delete", fmt.Errorf("link '%s' changed concurrently", shortCode))
}

func (r *RedisLinkRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	codes, err := r.client.ZRevRange(ctx, r.keys.Created(), 0, -1).Result()
	if err != nil {
		return nil, apperrors.NewStorageError("list", err)
	}

	links := make([]*model.Link, 0, len(codes))
	if len(codes) == 0 {
		return links, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.HGetAll(ctx, r.keys.Link(code))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperrors.NewStorageError("list", err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// удалена между ZREVRANGE и HGETALL
			continue
		}

		link, err := linkFromHash(fields)
		if err != nil {
			return nil, apperrors.NewStorageError("list", err)
		}
		links = append(links, link)
	}

	return links, nil
}

func (r *RedisLinkRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return apperrors.NewStorageError("ping", err)
	}
	return nil
}

func linkFromHash(fields map[string]string) (*model.Link, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt id: %w", err)
	}

	clicks, err := strconv.ParseInt(fields["total_clicks"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt total_clicks: %w", err)
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at: %w", err)
	}

	link := &model.Link{
		ID:          id,
		ShortCode:   fields["short_code"],
		TargetURL:   fields["target_url"],
		TotalClicks: clicks,
		CreatedAt:   time.UnixMicro(createdAt).UTC(),
	}

	if raw, ok := fields["last_clicked_time"]; ok && raw != "" {
		lastClicked, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt last_clicked_time: %w", err)
		}
		t := time.UnixMicro(lastClicked).UTC()
		link.LastClickedTime = &t
	}

	return link, nil
}

// pairsToMap разбирает ответ HGETALL, возвращенный из Lua: [k1, v1, k2, v2, ...]
func pairsToMap(values []interface{}) (map[string]string, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("odd number of hash fields: %d", len(values))
	}

	fields := make(map[string]string, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected hash key type %T", values[i])
		}
		value, ok := values[i+1].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected hash value type %T", values[i+1])
		}
		fields[key] = value
	}

	return fields, nil
}
