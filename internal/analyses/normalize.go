package analyses

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const genericEmptyMessage = "Keine Daten erhalten"

// errNoResults is returned by normalizers; Normalize turns it into the
// type's user-facing empty-result error.
var errNoResults = errors.New("no results")

// Normalize maps raw provider result items to the canonical JSON of type t.
// An empty result set fails with an error matching ErrEmptyResult.
func Normalize(t Type, results []json.RawMessage) (json.RawMessage, error) {
	fn, emptyMessage := normalizerFor(t)
	canonical, err := fn(results)
	if err != nil {
		if errors.Is(err, errNoResults) {
			return nil, &emptyResultError{message: emptyMessage}
		}
		return nil, err
	}
	payload, err := json.Marshal(canonical)
	if err != nil {
		return nil, fmt.Errorf("encode canonical result: %w", err)
	}
	return payload, nil
}

// Rating is the common provider rating block.
type Rating struct {
	Value float64 `json:"value"`
	Votes int64   `json:"votes"`
	Max   float64 `json:"max"`
}

type rawRating struct {
	Value      flexFloat `json:"value"`
	VotesCount flexInt   `json:"votes_count"`
	RatingMax  flexFloat `json:"rating_max"`
}

func (r rawRating) canonical() Rating {
	return Rating{Value: float64(r.Value), Votes: int64(r.VotesCount), Max: float64(r.RatingMax)}
}

// GenericResult is the shape for analysis types without a dedicated normalizer.
type GenericResult struct {
	Items []json.RawMessage `json:"items"`
}

func normalizeGeneric(results []json.RawMessage) (any, error) {
	items := make([]json.RawMessage, 0, len(results))
	for _, r := range results {
		trimmed := bytes.TrimSpace(r)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		items = append(items, r)
	}
	if len(items) == 0 {
		return nil, errNoResults
	}
	return GenericResult{Items: items}, nil
}
