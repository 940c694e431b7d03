package search

import (
	"context"
	"encoding/json"

	"github.com/young1lin/supplementbot/internal/models"
)

// NoResultsMessage is returned when the shopping provider finds nothing
const NoResultsMessage = "No supplements found for your query."

// ShoppingSearcher looks up purchasable supplements
type ShoppingSearcher interface {
	// FetchSupplementInfo never fails: provider errors are carried in the lookup value
	FetchSupplementInfo(ctx context.Context, query string) SupplementLookup
}

// ReviewSearcher looks up review text for a supplement
type ReviewSearcher interface {
	// SearchReviews returns found=false when the provider yields nothing
	SearchReviews(ctx context.Context, supplement string) (text string, found bool, err error)
}

// SupplementLookup is either a list of records or a human-readable message.
// It encodes to a JSON array or a JSON string accordingly.
type SupplementLookup struct {
	Records []models.SupplementRecord
	Message string
}

// LookupMessage builds a message-only lookup
func LookupMessage(msg string) SupplementLookup {
	return SupplementLookup{Message: msg}
}

// IsMessage reports whether the lookup carries a message instead of records
func (l SupplementLookup) IsMessage() bool {
	return len(l.Records) == 0
}

// MarshalJSON implements json.Marshaler
func (l SupplementLookup) MarshalJSON() ([]byte, error) {
	if l.IsMessage() {
		msg := l.Message
		if msg == "" {
			msg = NoResultsMessage
		}
		return json.Marshal(msg)
	}
	return json.Marshal(l.Records)
}
