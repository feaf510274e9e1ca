package credits

import "time"

// EntryType classifies a ledger movement.
type EntryType string

const (
	EntryGrant   EntryType = "grant"
	EntryHold    EntryType = "hold"
	EntryCapture EntryType = "capture"
	EntryRelease EntryType = "release"
)

// Entry is one append-only row of a user's credit history.
type Entry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	AnalysisID   string    `json:"analysisId,omitempty"`
	Type         EntryType `json:"type"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary is the balance view returned to clients.
type Summary struct {
	Balance int     `json:"balance"`
	Entries []Entry `json:"entries"`
}
