// Package redis implements the db contracts on rueidis against Redis 8+,
// which ships the search and JSON modules.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/sqee/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	readyBackoffMin = 50 * time.Millisecond
	readyBackoffMax = time.Second
)

// Config holds connection parameters.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// Standalone skips cluster topology discovery.
	Standalone bool
	// ClientName is sent with CLIENT SETNAME; empty means "sqee".
	ClientName string
}

func (c Config) validate() error {
	if len(c.Addrs) == 0 {
		return errors.New("addrs is required")
	}
	if c.Standalone && len(c.Addrs) > 1 {
		return errors.New("standalone mode takes a single address")
	}
	if c.DB < 0 {
		return errors.New("db must not be negative")
	}
	return nil
}

// Store talks to a single Redis deployment through one rueidis client.
type Store struct {
	client rueidis.Client
}

// NewStore validates cfg and opens a client. The connection is established
// lazily; call WaitForReady before serving traffic.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	name := cfg.ClientName
	if name == "" {
		name = "sqee"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   name,
		DisableCache: true,
		// reply parsers expect RESP2 arrays from FT.SEARCH and FT.AGGREGATE
		AlwaysRESP2:       true,
		ForceSingleClient: cfg.Standalone,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return db.Wrap(db.OpPing, "", s.do(ctx, s.b().Ping().Build()).Error())
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings with exponential backoff until the backend answers or
// timeout expires. The returned error matches db.ErrNotReady and carries the
// last ping failure.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := readyBackoffMin
	timer := time.NewTimer(0)
	defer timer.Stop()

	var last error
	for {
		select {
		case <-ctx.Done():
			if last == nil {
				last = ctx.Err()
			}
			return fmt.Errorf("%w after %s: %w", db.ErrNotReady, timeout, last)
		case <-timer.C:
			if last = s.Ping(ctx); last == nil {
				return nil
			}
			timer.Reset(backoff)
			backoff = min(backoff*2, readyBackoffMax)
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr reports whether err is a server reply containing substr, ignoring case.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

// isMissingIndex covers both the Redis 8 and older RediSearch wordings.
func isMissingIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}
