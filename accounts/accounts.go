// Package accounts manages the shared pool of in-game accounts that are handed
// to players without own account for the duration of a match.
package accounts

import (
	"context"
	nativeerrors "errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/lefinal/pug-server/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"sync"
)

// DefaultKeyPrefix is the key prefix used in Redis if none is configured.
const DefaultKeyPrefix = "pug:accounts"

// reserveScript atomically moves ARGV[1] accounts from the free list in
// KEYS[1] to the session set in KEYS[2]. If not enough accounts are free,
// nothing is moved and nil is returned.
var reserveScript = redis.NewScript(`
local count = tonumber(ARGV[1])
if redis.call("LLEN", KEYS[1]) < count then
	return false
end
local reserved = {}
for i = 1, count do
	local id = redis.call("LPOP", KEYS[1])
	redis.call("SADD", KEYS[2], id)
	reserved[i] = id
end
return reserved
`)

// releaseScript moves all accounts from the session set in KEYS[2] back to the
// free list in KEYS[1] and returns the number of released accounts.
var releaseScript = redis.NewScript(`
local ids = redis.call("SMEMBERS", KEYS[2])
for _, id in ipairs(ids) do
	redis.call("RPUSH", KEYS[1], id)
end
redis.call("DEL", KEYS[2])
return #ids
`)

// Pool is the shared account pool that is stored in Redis. Concurrently running
// matches compete for accounts via their Allocator.
type Pool struct {
	logger    *zap.Logger
	client    redis.UniversalClient
	keyPrefix string
}

// NewPool creates a new Pool using the given client. If the key prefix is
// empty, DefaultKeyPrefix is used.
func NewPool(logger *zap.Logger, client redis.UniversalClient, keyPrefix string) *Pool {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Pool{
		logger:    logger,
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (p *Pool) freeKey() string {
	return fmt.Sprintf("%s:free", p.keyPrefix)
}

func (p *Pool) sessionKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s:session:%s", p.keyPrefix, sessionID)
}

func (p *Pool) usageKey() string {
	return fmt.Sprintf("%s:usage", p.keyPrefix)
}

// Seed replaces the free accounts with the given ones.
func (p *Pool) Seed(ctx context.Context, accountIDs []string) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.freeKey())
		if len(accountIDs) > 0 {
			ids := make([]interface{}, 0, len(accountIDs))
			for _, id := range accountIDs {
				ids = append(ids, id)
			}
			pipe.RPush(ctx, p.freeKey(), ids...)
		}
		return nil
	})
	if err != nil {
		return newRedisError(err, "seed accounts", errors.Details{"accounts": len(accountIDs)})
	}
	p.logger.Debug("seeded account pool", zap.Int("accounts", len(accountIDs)))
	return nil
}

// Available returns the number of free accounts.
func (p *Pool) Available(ctx context.Context) (int, error) {
	n, err := p.client.LLen(ctx, p.freeKey()).Result()
	if err != nil {
		return 0, newRedisError(err, "count free accounts", nil)
	}
	return int(n), nil
}

// Usage returns how often the account with the given id was used in matches.
func (p *Pool) Usage(ctx context.Context, accountID string) (int, error) {
	n, err := p.client.HGet(ctx, p.usageKey(), accountID).Int()
	if err != nil {
		if nativeerrors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, newRedisError(err, "get account usage", errors.Details{"account": accountID})
	}
	return n, nil
}

// NewAllocator creates an Allocator for the match session with the given id.
func (p *Pool) NewAllocator(sessionID uuid.UUID) *Allocator {
	return &Allocator{
		pool:      p,
		sessionID: sessionID,
	}
}

// Allocator reserves accounts from the Pool for one match session.
type Allocator struct {
	pool      *Pool
	sessionID uuid.UUID
	// reserved holds all account ids reserved by the allocator.
	reserved []string
	// reservedMutex locks reserved.
	reservedMutex sync.Mutex
}

// Reserve the given number of accounts. If the pool holds fewer free accounts,
// nothing is reserved and an errors.KindAccountsNotEnough error is returned.
func (a *Allocator) Reserve(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	keys := []string{a.pool.freeKey(), a.pool.sessionKey(a.sessionID)}
	reserved, err := reserveScript.Run(ctx, a.pool.client, keys, count).StringSlice()
	if err != nil {
		if nativeerrors.Is(err, redis.Nil) {
			return nil, errors.Error{
				Code:    errors.ErrResourceExhausted,
				Kind:    errors.KindAccountsNotEnough,
				Message: "not enough accounts available",
				Details: errors.Details{"requested": count},
			}
		}
		return nil, newRedisError(err, "reserve accounts", errors.Details{"requested": count})
	}
	a.reservedMutex.Lock()
	a.reserved = append(a.reserved, reserved...)
	a.reservedMutex.Unlock()
	return reserved, nil
}

// Reserved returns all account ids reserved by the Allocator.
func (a *Allocator) Reserved() []string {
	a.reservedMutex.Lock()
	defer a.reservedMutex.Unlock()
	reserved := make([]string, len(a.reserved))
	copy(reserved, a.reserved)
	return reserved
}

// Sync records the usage of all reserved accounts.
func (a *Allocator) Sync(ctx context.Context) error {
	reserved := a.Reserved()
	if len(reserved) == 0 {
		return nil
	}
	_, err := a.pool.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range reserved {
			pipe.HIncrBy(ctx, a.pool.usageKey(), id, 1)
		}
		return nil
	})
	if err != nil {
		return newRedisError(err, "record account usage", errors.Details{"accounts": reserved})
	}
	return nil
}

// Release all reserved accounts back to the pool.
func (a *Allocator) Release(ctx context.Context) error {
	keys := []string{a.pool.freeKey(), a.pool.sessionKey(a.sessionID)}
	released, err := releaseScript.Run(ctx, a.pool.client, keys).Int()
	if err != nil {
		return newRedisError(err, "release accounts", errors.Details{"session": a.sessionID.String()})
	}
	a.reservedMutex.Lock()
	a.reserved = nil
	a.reservedMutex.Unlock()
	a.pool.logger.Debug("released accounts", zap.String("session", a.sessionID.String()), zap.Int("released", released))
	return nil
}

func newRedisError(err error, message string, details errors.Details) error {
	return errors.Error{
		Code:    errors.ErrCommunication,
		Err:     err,
		Message: message,
		Details: details,
	}
}
