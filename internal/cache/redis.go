// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Rdb is the global Redis client. Connect it once at application startup;
// leaving it nil disables the journal.
var Rdb *redis.Client

// DefaultQueueName is the Redis list that receives game outcome records.
var DefaultQueueName = "palace_outcomes"

// OutcomeRecord is one journaled game fact (an elimination, a result) for
// out-of-band consumers such as a stats worker.
type OutcomeRecord struct {
	LobbyID   string                 `json:"lobby_id"`
	Kind      string                 `json:"kind"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"`
}

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		Rdb = nil
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// PublishOutcome serializes the record to JSON and pushes it onto the queue.
func PublishOutcome(ctx context.Context, record OutcomeRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal OutcomeRecord: %w", err)
	}

	queueName := getEnv("OUTCOME_QUEUE_NAME", DefaultQueueName)
	if err := Rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

// Journal adapts the redis queue to the session's journal interface.
// Records are pushed off the event path; failures are logged and dropped.
type Journal struct {
	log *logrus.Logger
}

// NewJournal returns a Journal logging through the given logger.
func NewJournal(log *logrus.Logger) *Journal {
	return &Journal{log: log}
}

// Record pushes one outcome record, fire-and-forget.
func (j *Journal) Record(lobbyID, kind string, payload map[string]interface{}) {
	if Rdb == nil {
		return
	}
	rec := OutcomeRecord{
		LobbyID:   lobbyID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := PublishOutcome(ctx, rec); err != nil && j.log != nil {
			j.log.Warnf("outcome journal push failed for lobby %s: %v", lobbyID, err)
		}
	}()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
