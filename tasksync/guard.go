package tasksync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "docsync"

// ContentGuard remembers the last synchronized content hash per document in
// Redis so repeated submissions of unchanged text skip reconciliation on
// every instance.
type ContentGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewContentGuard creates a guard using the provided Redis client and TTL.
func NewContentGuard(client *redis.Client, ttl time.Duration) *ContentGuard {
	return &ContentGuard{client: client, ttl: ttl}
}

func (g *ContentGuard) key(documentID string) string {
	return guardKeyPrefix + ":" + documentID
}

// Unchanged reports whether the content matches the last remembered hash for
// the document. Redis errors degrade to false so a guard outage never
// suppresses synchronization.
func (g *ContentGuard) Unchanged(ctx context.Context, documentID, content string) bool {
	if g == nil || g.client == nil {
		return false
	}
	stored, err := g.client.Get(ctx, g.key(documentID)).Result()
	if err != nil {
		return false
	}
	return stored == hashContent(content)
}

// Remember stores the content hash for the document. Best effort: failures
// only cost a redundant sync pass later.
func (g *ContentGuard) Remember(ctx context.Context, documentID, content string) {
	if g == nil || g.client == nil {
		return
	}
	_ = g.client.Set(ctx, g.key(documentID), hashContent(content), g.ttl).Err()
}

// Forget drops the remembered hash, forcing the next submission through a
// full sync pass.
func (g *ContentGuard) Forget(ctx context.Context, documentID string) {
	if g == nil || g.client == nil {
		return
	}
	_ = g.client.Del(ctx, g.key(documentID)).Err()
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
