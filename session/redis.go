package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokeStatusNotFound int64 = 0
	revokeStatusExpired  int64 = 1
	revokeStatusRevoked  int64 = 2
	revokeStatusDone     int64 = 3
)

// revokeScript marks a token row revoked iff it is currently usable. It
// returns the row as it was before revocation so the caller can chain a
// successor. The user index key is derived inside the script from the row
// itself, mirroring how the row was indexed at creation.
const revokeScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
local row = cjson.decode(data)
local now = tonumber(ARGV[1])
if row.revoked_at and row.revoked_at > 0 then
  return {2}
end
if row.expires_at <= now then
  return {1}
end
row.revoked_at = now
local updated = cjson.encode(row)
local ttl = redis.call("PTTL", KEYS[1])
if ttl and ttl > 0 then
  redis.call("SET", KEYS[1], updated, "PX", ttl)
else
  redis.call("SET", KEYS[1], updated)
end
local user_key = ARGV[2] .. ":u:" .. row.tenant_id .. ":" .. row.user_id
redis.call("ZREM", user_key, row.token_hash)
return {3, data}
`

var revokeLua = redis.NewScript(revokeScript)

type wireToken struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	TenantID   string     `json:"tenant_id"`
	TokenHash  string     `json:"token_hash"`
	Device     DeviceInfo `json:"device"`
	IssuedAt   int64      `json:"issued_at"`
	ExpiresAt  int64      `json:"expires_at"`
	RevokedAt  int64      `json:"revoked_at"`
	ReplacedBy string     `json:"replaced_by,omitempty"`
}

func toWire(t *RefreshToken) wireToken {
	w := wireToken{
		ID:         t.ID,
		UserID:     t.UserID,
		TenantID:   t.TenantID,
		TokenHash:  t.TokenHash,
		Device:     t.Device,
		IssuedAt:   t.IssuedAt.Unix(),
		ExpiresAt:  t.ExpiresAt.Unix(),
		ReplacedBy: t.ReplacedBy,
	}
	if t.RevokedAt != nil {
		w.RevokedAt = t.RevokedAt.Unix()
	}
	return w
}

func fromWire(w wireToken) *RefreshToken {
	t := &RefreshToken{
		ID:         w.ID,
		UserID:     w.UserID,
		TenantID:   w.TenantID,
		TokenHash:  w.TokenHash,
		Device:     w.Device,
		IssuedAt:   time.Unix(w.IssuedAt, 0),
		ExpiresAt:  time.Unix(w.ExpiresAt, 0),
		ReplacedBy: w.ReplacedBy,
	}
	if w.RevokedAt > 0 {
		at := time.Unix(w.RevokedAt, 0)
		t.RevokedAt = &at
	}
	return t
}

// RedisStore is a Redis-backed [Store]. Rows live under a configurable key
// prefix and expire with the token itself, so revoked rows stay visible for
// replay detection until their natural expiry.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a store namespaced under prefix ("ae" if empty).
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ae"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) tokenKey(tokenHash string) string {
	return s.prefix + ":t:" + tokenHash
}

func (s *RedisStore) idKey(id string) string {
	return s.prefix + ":i:" + id
}

func (s *RedisStore) userKey(tenantID, userID string) string {
	return s.prefix + ":u:" + tenantID + ":" + userID
}

// Create inserts the row, indexes it for the owning user, and maps its ID to
// the token hash for cap enforcement. All keys expire with the token.
func (s *RedisStore) Create(ctx context.Context, token *RefreshToken) error {
	data, err := json.Marshal(toWire(token))
	if err != nil {
		return err
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return ErrTokenExpired
	}

	userKey := s.userKey(token.TenantID, token.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(token.TokenHash), data, ttl)
		pipe.Set(ctx, s.idKey(token.ID), token.TokenHash, ttl)
		pipe.ZAdd(ctx, userKey, redis.Z{
			Score:  float64(token.IssuedAt.UnixNano()),
			Member: token.TokenHash,
		})
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	data, err := s.client.Get(ctx, s.tokenKey(tokenHash)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var w wireToken
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(w), nil
}

func (s *RedisStore) Rotate(ctx context.Context, tokenHash string, now time.Time) (*RefreshToken, error) {
	res, err := revokeLua.Run(ctx, s.client,
		[]string{s.tokenKey(tokenHash)},
		now.Unix(), s.prefix,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(res) == 0 {
		return nil, ErrStoreUnavailable
	}

	status, _ := res[0].(int64)
	switch status {
	case revokeStatusNotFound:
		return nil, ErrTokenNotFound
	case revokeStatusExpired:
		return nil, ErrTokenExpired
	case revokeStatusRevoked:
		return nil, ErrTokenRevoked
	}

	raw, _ := res[1].(string)
	var w wireToken
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, err
	}
	return fromWire(w), nil
}

func (s *RedisStore) Revoke(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := s.Rotate(ctx, tokenHash, now)
	switch err {
	case nil, ErrTokenNotFound, ErrTokenRevoked, ErrTokenExpired:
		return nil
	default:
		return err
	}
}

func (s *RedisStore) RevokeAllForUser(ctx context.Context, tenantID, userID string, now time.Time) (int, error) {
	userKey := s.userKey(tenantID, userID)
	hashes, err := s.client.ZRange(ctx, userKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	revoked := 0
	for _, hash := range hashes {
		if _, err := s.Rotate(ctx, hash, now); err == nil {
			revoked++
		} else if err != ErrTokenNotFound && err != ErrTokenRevoked && err != ErrTokenExpired {
			return revoked, err
		}
	}

	if err := s.client.Del(ctx, userKey).Err(); err != nil {
		return revoked, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return revoked, nil
}

func (s *RedisStore) ActiveForUser(ctx context.Context, tenantID, userID string) ([]*RefreshToken, error) {
	hashes, err := s.client.ZRevRange(ctx, s.userKey(tenantID, userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	tokens := make([]*RefreshToken, 0, len(hashes))
	for _, hash := range hashes {
		token, err := s.Find(ctx, hash)
		if err == ErrTokenNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if token.Usable(now) {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

func (s *RedisStore) RevokeByID(ctx context.Context, id string, now time.Time) error {
	hash, err := s.client.Get(ctx, s.idKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s.Revoke(ctx, hash, now)
}
