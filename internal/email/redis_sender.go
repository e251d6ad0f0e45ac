package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shopops/portal/internal/logger"
)

// Kinds of mail the portal sends, used to key captured messages.
const (
	KindDailySummary = "daily_summary"
	KindOther        = "other"
)

// SubjectDailySummary prefixes the subject of the end-of-day report mail.
const SubjectDailySummary = "Daily summary"

const mockEmailTTL = 5 * time.Minute

// MockEmailKey is where RedisSender keeps the last message of a kind for a recipient.
func MockEmailKey(to, kind string) string {
	return fmt.Sprintf("mockemail:%s:%s", to, kind)
}

// KindOf classifies a message by its subject.
func KindOf(subject string) string {
	if strings.HasPrefix(subject, SubjectDailySummary) {
		return KindDailySummary
	}
	return KindOther
}

// RedisSender stores messages in Redis instead of delivering them, so
// integration tests can fetch them through the service API.
type RedisSender struct {
	client *redis.Client
	from   string
}

func NewRedisSender(client *redis.Client, from string) *RedisSender {
	return &RedisSender{client: client, from: from}
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}
	kind := KindOf(subject)

	jsonData, err := json.Marshal(map[string]interface{}{
		"to":      strings.Join(to, ", "),
		"from":    s.from,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		"kind":    kind,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(primaryTo, kind)
	if err := s.client.Set(ctx, key, jsonData, mockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	logger.Info("Mock email stored", zap.String("key", key), zap.String("subject", subject))
	return nil
}
