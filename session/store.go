package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mvachell/authcore/internal"
)

// ErrRedisUnavailable is returned when the backing Redis deployment cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	// DefaultTTL is the session lifetime applied when NewStore is given a zero ttl.
	DefaultTTL = 7 * 24 * time.Hour

	defaultPrefix = "as"
	sweepScanStep = 1000
)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed session store. Tokens are opaque handles
// generated server-side; Redis key TTLs bound storage growth while the
// ExpiresAt field inside the record is the authoritative expiry.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace and ttl the session lifetime;
// zero values select the defaults.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// TTL reports the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) sessionKey(token string) string {
	return s.prefix + ":s:" + token
}

func (s *Store) subjectKey(subjectID string) string {
	return s.prefix + ":u:" + subjectID
}

// Create mints a fresh opaque token, persists the session record under
// it, and indexes the token in the subject's session set.
//
//	Performance: 2 Redis commands (SET + SADD, pipelined).
func (s *Store) Create(ctx context.Context, subjectID, email string) (*Session, error) {
	token, err := internal.NewSessionToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		Token:     token.String(),
		SubjectID: subjectID,
		Email:     email,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}

	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.Token), data, s.ttl)
		pipe.SAdd(ctx, s.subjectKey(subjectID), sess.Token)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return sess, nil
}

// Get retrieves a session by its opaque token. A missing, malformed, or
// expired token yields redis.Nil; an expired record is deleted on the
// way out so a later call cannot resurrect it.
//
//	Performance: 1 Redis GET on the hot path.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	if _, err := internal.ParseSessionToken(token); err != nil {
		return nil, redis.Nil
	}

	data, err := s.redis.Get(ctx, s.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.Token = token

	if time.Now().Unix() >= sess.ExpiresAt {
		if err := s.deleteSessionAndIndex(ctx, sess.SubjectID, token); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	return sess, nil
}

// Delete removes a session and its subject-index entry. The boolean
// reports whether the token referred to a live record, so callers can
// distinguish a real logout from a replayed or stale token. Deleting a
// token that does not exist is not an error.
func (s *Store) Delete(ctx context.Context, token string) (bool, error) {
	if _, err := internal.ParseSessionToken(token); err != nil {
		return false, nil
	}

	data, err := s.redis.Get(ctx, s.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// Corrupt record: still remove the key so it cannot linger.
		if delErr := s.redis.Del(ctx, s.sessionKey(token)).Err(); delErr != nil {
			return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
		}
		return true, nil
	}

	existed, err := s.deleteSessionAndIndexExisted(ctx, sess.SubjectID, token)
	if err != nil {
		return false, err
	}
	return existed, nil
}

// DeleteAllForSubject removes every tracked session for a subject and
// returns how many live records were dropped.
//
// ATOMICITY NOTE: this is NOT fully atomic. It reads the subject's
// session set, then deletes in a transaction; a session created between
// the two phases is not captured and will expire naturally or be caught
// by the next call.
func (s *Store) DeleteAllForSubject(ctx context.Context, subjectID string) (int, error) {
	subjectKey := s.subjectKey(subjectID)

	tokens, err := s.redis.SMembers(ctx, subjectKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var existing int
	if len(tokens) > 0 {
		pipe := s.redis.Pipeline()
		existsCmds := make([]*redis.IntCmd, len(tokens))
		for i, token := range tokens {
			existsCmds[i] = pipe.Exists(ctx, s.sessionKey(token))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		for _, cmd := range existsCmds {
			v, cmdErr := cmd.Result()
			if cmdErr != nil {
				return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
			}
			existing += int(v)
		}
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, token := range tokens {
			pipe.Del(ctx, s.sessionKey(token))
		}
		pipe.Del(ctx, subjectKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return existing, nil
}

// ActiveSessionCount returns the number of tracked tokens for a subject.
// Lazy deletion means the count can briefly include expired sessions.
func (s *Store) ActiveSessionCount(ctx context.Context, subjectID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// SweepExpired scans all session records, deletes the ones whose
// ExpiresAt has passed, prunes subject-index entries whose session key
// no longer exists, and returns the number of expired records removed.
// This is an O(n) maintenance operation and must not run on request
// hot paths.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	nowUnix := time.Now().Unix()
	sessionPrefix := s.prefix + ":s:"

	var (
		cursor uint64
		swept  int
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, sessionPrefix+"*", sweepScanStep).Result()
		if err != nil {
			return swept, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		for _, key := range keys {
			data, getErr := s.redis.Get(ctx, key).Bytes()
			if getErr != nil {
				if errors.Is(getErr, redis.Nil) {
					continue
				}
				return swept, fmt.Errorf("%w: %v", ErrRedisUnavailable, getErr)
			}

			sess, decErr := Decode(data)
			if decErr != nil {
				continue
			}
			if sess.ExpiresAt > nowUnix {
				continue
			}

			token := strings.TrimPrefix(key, sessionPrefix)
			existed, delErr := s.deleteSessionAndIndexExisted(ctx, sess.SubjectID, token)
			if delErr != nil {
				return swept, delErr
			}
			if existed {
				swept++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if err := s.pruneSubjectIndexes(ctx); err != nil {
		return swept, err
	}

	return swept, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) pruneSubjectIndexes(ctx context.Context) error {
	subjectPrefix := s.prefix + ":u:"

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, subjectPrefix+"*", sweepScanStep).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		for _, subjectKey := range keys {
			tokens, memErr := s.redis.SMembers(ctx, subjectKey).Result()
			if memErr != nil {
				if errors.Is(memErr, redis.Nil) {
					continue
				}
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, memErr)
			}

			for _, token := range tokens {
				exists, exErr := s.redis.Exists(ctx, s.sessionKey(token)).Result()
				if exErr != nil {
					return fmt.Errorf("%w: %v", ErrRedisUnavailable, exErr)
				}
				if exists == 0 {
					if err := s.redis.SRem(ctx, subjectKey, token).Err(); err != nil {
						return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
					}
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, subjectID, token string) error {
	_, err := s.deleteSessionAndIndexExisted(ctx, subjectID, token)
	return err
}

func (s *Store) deleteSessionAndIndexExisted(ctx context.Context, subjectID, token string) (bool, error) {
	keys := []string{s.sessionKey(token), s.subjectKey(subjectID)}
	existed, err := deleteSessionLua.Run(ctx, s.redis, keys, token).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return existed == 1, nil
}
