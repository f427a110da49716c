package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// DonationRecord is one entry in a user's donation history.
// A record without a date is provisional: it was written optimistically and is
// eligible to be promoted (date-stamped) instead of duplicated when the same
// donation is confirmed.
type DonationRecord struct {
	Charity string     `json:"charity"`
	Amount  float64    `json:"amount"`
	Date    *time.Time `json:"date,omitempty"`
}

// Confirmed reports whether the record carries a confirmation date.
func (d DonationRecord) Confirmed() bool {
	return d.Date != nil
}

// Value returns the record in the shape persisted under
// users/{uid}/donationHistory/{key}. Dates are ISO8601 strings.
func (d DonationRecord) Value() map[string]any {
	v := map[string]any{
		"charity": d.Charity,
		"amount":  d.Amount,
	}
	if d.Date != nil {
		v["date"] = d.Date.UTC().Format(time.RFC3339)
	}
	return v
}

// DonationRecordFromValue decodes a donation history node as read from the
// remote store. Missing or malformed fields degrade to zero values rather
// than failing; amounts stored as strings are coerced to numbers.
func DonationRecordFromValue(v any) (DonationRecord, bool) {
	fields, ok := v.(map[string]any)
	if !ok {
		return DonationRecord{}, false
	}
	rec := DonationRecord{
		Amount: CoerceAmount(fields["amount"]),
	}
	if name, ok := fields["charity"].(string); ok {
		rec.Charity = name
	}
	if raw, ok := fields["date"].(string); ok && raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			rec.Date = &t
		}
	}
	return rec, true
}

// CoerceAmount converts a remotely stored amount to a float64. The store can
// hand back numbers, json.Number, or stringified decimals depending on how
// the value was written; anything unparseable counts as 0.
func CoerceAmount(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

// WalletSnapshot is the consumer-facing view of a wallet: current balance,
// the derived donation total, and goal progress when a goal is set.
type WalletSnapshot struct {
	Balance      float64  `json:"balance"`
	TotalDonated float64  `json:"total_donated"`
	Goal         *float64 `json:"goal,omitempty"`
	GoalProgress *float64 `json:"goal_progress,omitempty"`
}

// Remote store layout, keyed by user identifier.
const (
	BalanceKey         = "walletBalance"
	DonationHistoryKey = "donationHistory"
)

func BalancePath(uid string) string {
	return "users/" + uid + "/" + BalanceKey
}

func DonationHistoryPath(uid string) string {
	return "users/" + uid + "/" + DonationHistoryKey
}
