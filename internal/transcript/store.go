// Package transcript persists conversation turns per session in Redis.
// Turn text is encrypted at rest; structure (role, timestamp) stays in the
// clear so expiry and debugging tooling can work without the secret.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sparshcare/wellness-platform/internal/triage"
	"github.com/sparshcare/wellness-platform/pkg/logging"
	"github.com/sparshcare/wellness-platform/pkg/securetext"
)

var tracer = otel.Tracer("sparsh.internal.transcript")

const keyPrefix = "transcript:"

// storedTurn is the Redis representation of a turn. Text holds the
// securetext token, never the plaintext.
type storedTurn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Store appends and reads session transcripts.
type Store struct {
	client *redis.Client
	codec  *securetext.Codec
	ttl    time.Duration
	logger *logging.Logger
}

// NewStore creates a transcript store. Sessions expire ttl after the most
// recent append.
func NewStore(client *redis.Client, codec *securetext.Codec, ttl time.Duration, logger *logging.Logger) *Store {
	if client == nil {
		panic("transcript: redis client cannot be nil")
	}
	if codec == nil {
		panic("transcript: codec cannot be nil")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, codec: codec, ttl: ttl, logger: logger}
}

// Append adds one turn to the end of a session transcript and refreshes the
// session's expiry.
func (s *Store) Append(ctx context.Context, sessionID string, turn triage.Turn) error {
	ctx, span := tracer.Start(ctx, "transcript.append")
	defer span.End()
	span.SetAttributes(
		attribute.String("sparsh.session_id", sessionID),
		attribute.String("sparsh.role", turn.Role),
	)

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	token, err := s.codec.Encrypt(turn.Text)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: encrypt turn: %w", err)
	}

	body, err := json.Marshal(storedTurn{Role: turn.Role, Text: token, Timestamp: turn.Timestamp})
	if err != nil {
		return fmt.Errorf("transcript: encode turn: %w", err)
	}

	key := keyPrefix + sessionID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, body)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: append turn: %w", err)
	}
	return nil
}

// History returns the full transcript for a session, oldest first, with turn
// text decrypted. A turn whose token fails to authenticate is skipped rather
// than poisoning the whole read.
func (s *Store) History(ctx context.Context, sessionID string) ([]triage.Turn, error) {
	ctx, span := tracer.Start(ctx, "transcript.history")
	defer span.End()
	span.SetAttributes(attribute.String("sparsh.session_id", sessionID))

	entries, err := s.client.LRange(ctx, keyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: read session %s: %w", sessionID, err)
	}

	turns := make([]triage.Turn, 0, len(entries))
	for _, entry := range entries {
		var stored storedTurn
		if err := json.Unmarshal([]byte(entry), &stored); err != nil {
			s.logger.Warn("skipping undecodable transcript entry", "session_id", sessionID, "error", err)
			continue
		}
		text, err := s.codec.Decrypt(stored.Text)
		if err != nil {
			s.logger.Warn("skipping unreadable transcript entry", "session_id", sessionID, "error", err)
			continue
		}
		turns = append(turns, triage.Turn{Role: stored.Role, Text: text, Timestamp: stored.Timestamp})
	}
	span.SetAttributes(attribute.Int("sparsh.turn_count", len(turns)))
	return turns, nil
}

// Recent returns up to n most recent turns, oldest first.
func (s *Store) Recent(ctx context.Context, sessionID string, n int) ([]triage.Turn, error) {
	if n <= 0 {
		return nil, nil
	}
	turns, err := s.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}
