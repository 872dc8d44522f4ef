package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeClickEventID computes a deterministic click event id using SHA256.
// Formula: SHA256(promoted_listing_id|shop_id|product_id|clicked_at)
// Returns hex-encoded hash (64 characters).
//
// A client retry carrying the same observation timestamp maps to the same id,
// so the durable store rejects it as a duplicate instead of double-counting.
func ComputeClickEventID(
	promotedListingID string,
	shopID string,
	productID string,
	clickedAt int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		promotedListingID,
		shopID,
		productID,
		clickedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeImpressionEventID computes a deterministic impression event id.
// Formula: SHA256(promoted_listing_id|observed_at)
// Returns hex-encoded hash (64 characters).
func ComputeImpressionEventID(promotedListingID string, observedAt int64) string {
	data := fmt.Sprintf("%s|%d", promotedListingID, observedAt)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
