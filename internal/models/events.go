package models

import "time"

type DonationStatus string

const (
	DonationStatusConfirmed DonationStatus = "CONFIRMED"
	DonationStatusDeclined  DonationStatus = "DECLINED"

	WalletFundedTopic     = "wallet.funded"
	DonationRecordedTopic = "donation.recorded"
	WalletDLQTopic        = "wallet.dlq"
)

type WalletFundedEvent struct {
	UserID     string    `json:"user_id"`
	Amount     float64   `json:"amount"`
	NewBalance float64   `json:"new_balance"`
	TraceID    string    `json:"trace_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type DonationRecordedEvent struct {
	UserID    string         `json:"user_id"`
	Charity   string         `json:"charity"`
	Amount    float64        `json:"amount"`
	Status    DonationStatus `json:"status"`
	Reason    string         `json:"reason"`
	TraceID   string         `json:"trace_id"`
	CreatedAt time.Time      `json:"created_at"`
}

type DLQMessage struct {
	OriginalTopic string    `json:"original_topic"`
	Key           string    `json:"key"`
	Value         string    `json:"value"`
	Timestamp     time.Time `json:"timestamp"`
	Attempts      int       `json:"attempts"`
}
