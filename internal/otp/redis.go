package otp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// evictionGrace keeps expired entries around briefly so a verification
// attempt inside the grace window can report "expired" instead of
// "not found" before Redis reclaims the key.
const evictionGrace = time.Minute

// redisVerifyScript compares and deletes atomically. The stored value is
// "<issuedUnix>:<code>". ARGV: submitted code, now (unix), window seconds.
var redisVerifyScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  return "notfound"
end
local sep = string.find(v, ":")
local ts = tonumber(string.sub(v, 1, sep - 1))
local code = string.sub(v, sep + 1)
if tonumber(ARGV[2]) - ts > tonumber(ARGV[3]) then
  redis.call("DEL", KEYS[1])
  return "expired"
end
if code == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return "ok"
end
return "mismatch"
`)

// RedisRegistry is the Redis-backed registry: native TTL expiry and
// compare-and-delete verification, safe across restarts and instances.
type RedisRegistry struct {
	client *redis.Client
	prefix string
	flow   string
	expiry time.Duration

	now func() time.Time
}

// NewRedisRegistry constructs a RedisRegistry for one flow.
func NewRedisRegistry(client *redis.Client, prefix, flow string, expiry time.Duration) *RedisRegistry {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &RedisRegistry{
		client: client,
		prefix: strings.TrimSpace(prefix),
		flow:   flow,
		expiry: expiry,
		now:    time.Now,
	}
}

func (r *RedisRegistry) key(email string) string {
	if r.prefix == "" {
		return "otp:" + r.flow + ":" + email
	}
	return r.prefix + ":otp:" + r.flow + ":" + email
}

// Issue stores a fresh code under the flow-scoped key, replacing any prior
// entry and resetting the TTL.
func (r *RedisRegistry) Issue(ctx context.Context, email string) (string, error) {
	code, errGen := GenerateCode()
	if errGen != nil {
		return "", errGen
	}
	value := strconv.FormatInt(r.now().Unix(), 10) + ":" + code
	if errSet := r.client.Set(ctx, r.key(email), value, r.expiry+evictionGrace).Err(); errSet != nil {
		return "", fmt.Errorf("otp: redis issue: %w", errSet)
	}
	return code, nil
}

// Verify runs the compare-and-delete script against the stored entry.
func (r *RedisRegistry) Verify(ctx context.Context, email, submitted string) (Result, error) {
	windowSeconds := int64(r.expiry / time.Second)
	res, errEval := redisVerifyScript.Run(ctx, r.client,
		[]string{r.key(email)},
		strings.TrimSpace(submitted), r.now().Unix(), windowSeconds,
	).Result()
	if errEval != nil {
		return Result{}, fmt.Errorf("otp: redis verify: %w", errEval)
	}
	outcome, ok := res.(string)
	if !ok {
		return Result{}, fmt.Errorf("otp: redis verify: unexpected response type %T", res)
	}
	switch outcome {
	case "ok":
		return Result{Valid: true, Status: StatusOK}, nil
	case "expired":
		return Result{Status: StatusExpired}, nil
	case "mismatch":
		return Result{Status: StatusMismatch}, nil
	default:
		return Result{Status: StatusNotFound}, nil
	}
}

// Outstanding reports whether an entry survives for the email. Presence
// alone blocks account creation; a key past code expiry keeps blocking
// until a verify attempt or the TTL evicts it.
func (r *RedisRegistry) Outstanding(ctx context.Context, email string) (bool, error) {
	existing, errExists := r.client.Exists(ctx, r.key(email)).Result()
	if errExists != nil {
		return false, fmt.Errorf("otp: redis outstanding: %w", errExists)
	}
	return existing > 0, nil
}
