package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func DocumentStatusKey(docID uuid.UUID) string {
	return fmt.Sprintf("doc:status:%s", docID)
}

func DraftSessionKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("draft:%s", sessionID)
}

func RateLimitKey(userID string) string {
	return fmt.Sprintf("ratelimit:%s", userID)
}
