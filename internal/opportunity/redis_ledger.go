package opportunity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
)

const (
	DefaultKeyPrefix = "codemeet:opportunity"
	dailyMarkerTTL   = 48 * time.Hour
)

// Every script starts by creating a missing account with the initial
// balance. KEYS[1] is the balance key and KEYS[2] today's daily marker;
// ARGV[1] is the initial balance and ARGV[2] the marker TTL in seconds.
const ensureAccountLua = `
local created = 0
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('SET', KEYS[1], ARGV[1])
  redis.call('SET', KEYS[2], 1, 'EX', ARGV[2])
  created = 1
end
`

var consumeScript = redis.NewScript(ensureAccountLua + `
local balance = tonumber(redis.call('GET', KEYS[1]))
if balance <= 0 then
  return 0
end
redis.call('DECR', KEYS[1])
return 1
`)

// ARGV[3] is the amount.
var awardScript = redis.NewScript(ensureAccountLua + `
return redis.call('INCRBY', KEYS[1], ARGV[3])
`)

var dailyScript = redis.NewScript(ensureAccountLua + `
if created == 1 then
  return 0
end
if redis.call('SET', KEYS[2], 1, 'NX', 'EX', ARGV[2]) then
  redis.call('INCR', KEYS[1])
  return 1
end
return 0
`)

// RedisLedger keeps balances as plain integers in redis. Check and update
// run inside Lua scripts, so they are atomic per user across processes.
type RedisLedger struct {
	client         redis.UniversalClient
	logger         *zap.Logger
	prefix         string
	initialBalance int
	now            func() time.Time
}

func NewRedisLedger(client redis.UniversalClient, logger *zap.Logger, prefix string, initialBalance int) *RedisLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if initialBalance < 0 {
		initialBalance = 0
	}
	return &RedisLedger{
		client:         client,
		logger:         logger,
		prefix:         prefix,
		initialBalance: initialBalance,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// keys share a hash tag so both land in the same cluster slot.
func (l *RedisLedger) keys(userID string) []string {
	day := l.now().Format("20060102")
	return []string{
		fmt.Sprintf("%s:{%s}:balance", l.prefix, userID),
		fmt.Sprintf("%s:{%s}:daily:%s", l.prefix, userID, day),
	}
}

func (l *RedisLedger) Balance(ctx context.Context, userID string) (int, error) {
	balance, err := l.client.Get(ctx, l.keys(userID)[0]).Int()
	if errors.Is(err, redis.Nil) {
		return l.initialBalance, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read opportunity balance: %w", err)
	}
	return balance, nil
}

func (l *RedisLedger) HasOpportunity(ctx context.Context, userID string) (bool, error) {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance > 0, nil
}

func (l *RedisLedger) TryConsume(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, apperrors.ErrInvalidArgument.Explain("user id is required")
	}
	n, err := consumeScript.Run(ctx, l.client, l.keys(userID), l.initialBalance, int(dailyMarkerTTL.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume opportunity: %w", err)
	}
	return n == 1, nil
}

func (l *RedisLedger) Award(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return apperrors.ErrInvalidArgument.Explain("award amount must be positive, got %d", amount)
	}
	if userID == "" {
		return apperrors.ErrInvalidArgument.Explain("user id is required")
	}
	balance, err := awardScript.Run(ctx, l.client, l.keys(userID), l.initialBalance, int(dailyMarkerTTL.Seconds()), amount).Int()
	if err != nil {
		return fmt.Errorf("failed to award opportunity: %w", err)
	}
	l.logger.Debug("Opportunities awarded",
		zap.String("user_id", userID),
		zap.Int("amount", amount),
		zap.Int("balance", balance))
	return nil
}

// TryAwardDaily grants one opportunity once per UTC calendar day. The
// marker key expires on its own after two days.
func (l *RedisLedger) TryAwardDaily(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, apperrors.ErrInvalidArgument.Explain("user id is required")
	}
	n, err := dailyScript.Run(ctx, l.client, l.keys(userID), l.initialBalance, int(dailyMarkerTTL.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("failed to award daily opportunity: %w", err)
	}
	return n == 1, nil
}
