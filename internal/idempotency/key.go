// Package idempotency derives the deterministic object names used at
// every storage boundary. Re-processing the same input always resolves
// to the same key, making repeated writes no-ops or safe overwrites.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/z316data/salespipe/internal/models"
)

// hashLen is the number of hex characters of the content hash kept in
// landing keys. 16 hex chars (64 bits) is collision-resistant at any
// plausible event volume.
const hashLen = 16

// ContentHash returns the sha256 hex digest of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LandingKey names a raw event in the landing store. The content hash
// distinguishes legitimate payload changes (an order edited and
// re-sent) while making webhook retries of the identical payload
// resolve to the same object.
func LandingKey(et models.EventType, sourceID string, body []byte) string {
	return fmt.Sprintf("raw/%s/%s/%s.json", et, sourceID, ContentHash(body)[:hashLen])
}

// EnrichedKey names an enriched record in the intermediate store.
// Re-running enrichment overwrites the same object rather than
// accumulating duplicates.
func EnrichedKey(rt models.RecordType, sourceID string) string {
	return fmt.Sprintf("enriched/%s/%s.json", rt, sourceID)
}

// DeadLetterKey names a failure envelope. Keyed by stage and the
// failed object's key so repeated failures of the same object
// overwrite their envelope instead of piling up.
func DeadLetterKey(stage, objectKey string) string {
	sum := ContentHash([]byte(objectKey))[:hashLen]
	return fmt.Sprintf("deadletter/%s/%s.json", stage, sum)
}

// ProductSourceID derives the natural key for a produto record looked
// up as part of an order's line-item fan-out.
func ProductSourceID(productID string) string {
	return "PROD-" + productID
}
