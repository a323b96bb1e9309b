package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyActiveEvents        = "bets:active_events"
	keyActiveEventsVersion = "bets:active_events:version"
)

// setIfVersion grava a listagem só se nenhuma invalidação ocorreu desde a leitura da versão
var setIfVersion = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisCache guarda a listagem de eventos com apostas NEW.
// Client: cliente Redis
// TTL: tempo de expiração da listagem
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// ActiveEvents retorna (ids, versão, true) em cache hit e (nil, versão, false) em miss.
// A versão deve ser repassada a SetActiveEvents.
func (r *RedisCache) ActiveEvents(ctx context.Context) ([]string, int64, bool, error) {
	vals, err := r.Client.MGet(ctx, keyActiveEvents, keyActiveEventsVersion).Result()
	if err != nil {
		return nil, 0, false, err
	}

	var version int64
	if v, ok := vals[1].(string); ok {
		if version, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, 0, false, err
		}
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, version, false, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, version, false, err
	}
	return ids, version, true, nil
}

// SetActiveEvents armazena a listagem com o TTL definido. Se houve Invalidate
// depois da leitura de version a listagem está velha e é descartada (stored=false).
func (r *RedisCache) SetActiveEvents(ctx context.Context, ids []string, version int64) (bool, error) {
	b, err := json.Marshal(ids)
	if err != nil {
		return false, err
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	n, err := setIfVersion.Run(ctx, r.Client,
		[]string{keyActiveEvents, keyActiveEventsVersion},
		b, version, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Invalidate descarta a listagem e avança a versão; chamado quando apostas são criadas ou liquidadas
func (r *RedisCache) Invalidate(ctx context.Context) error {
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, keyActiveEventsVersion)
		pipe.Del(ctx, keyActiveEvents)
		return nil
	})
	return err
}
