package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxRedisEntries = 500

// holdScript decrements the balance only when it covers ARGV[1]; -1 means it did not.
var holdScript = redis.NewScript(`
local bal = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
if bal < amount then
	return -1
end
return redis.call("DECRBY", KEYS[1], amount)
`)

// RedisStore keeps each balance in a string key and its entries in a capped list.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a Redis-backed credit store. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "credits"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) balanceKey(userID string) string {
	return fmt.Sprintf("%s:balance:%s", s.prefix, userID)
}

func (s *RedisStore) entriesKey(userID string) string {
	return fmt.Sprintf("%s:entries:%s", s.prefix, userID)
}

func (s *RedisStore) Balance(ctx context.Context, userID string) (int, error) {
	bal, err := s.client.Get(ctx, s.balanceKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return bal, nil
}

func (s *RedisStore) Hold(ctx context.Context, userID, analysisID string, amount int) (Entry, error) {
	bal, err := holdScript.Run(ctx, s.client, []string{s.balanceKey(userID)}, amount).Int()
	if err != nil {
		return Entry{}, err
	}
	if bal < 0 {
		return Entry{}, ErrInsufficientCredits
	}
	return s.appendEntry(ctx, userID, analysisID, EntryHold, amount, bal)
}

func (s *RedisStore) Add(ctx context.Context, userID, analysisID string, kind EntryType, amount int) (Entry, error) {
	bal, err := s.client.IncrBy(ctx, s.balanceKey(userID), int64(amount)).Result()
	if err != nil {
		return Entry{}, err
	}
	return s.appendEntry(ctx, userID, analysisID, kind, amount, int(bal))
}

func (s *RedisStore) Capture(ctx context.Context, userID, analysisID string, amount int) (Entry, error) {
	bal, err := s.Balance(ctx, userID)
	if err != nil {
		return Entry{}, err
	}
	return s.appendEntry(ctx, userID, analysisID, EntryCapture, amount, bal)
}

func (s *RedisStore) Entries(ctx context.Context, userID string, limit int) ([]Entry, error) {
	raw, err := s.client.LRange(ctx, s.entriesKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode credit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// appendEntry pushes newest-first and trims the list to maxRedisEntries.
func (s *RedisStore) appendEntry(ctx context.Context, userID, analysisID string, kind EntryType, amount, balanceAfter int) (Entry, error) {
	e := Entry{
		ID:           uuid.NewString(),
		UserID:       userID,
		AnalysisID:   analysisID,
		Type:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		CreatedAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return Entry{}, err
	}
	key := s.entriesKey(userID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, maxRedisEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return Entry{}, err
	}
	return e, nil
}
