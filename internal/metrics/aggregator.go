package metrics

import (
	"context"
	"encoding/json"

	"github.com/Vrajp222/Donation-Tracker/internal/models"
	"github.com/sirupsen/logrus"
)

// Aggregator turns wallet events into prometheus observations.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Handle processes one wallet event based on its topic. Unknown topics are
// ignored.
func (a *Aggregator) Handle(ctx context.Context, topic string, raw []byte) error {
	switch topic {
	case models.WalletFundedTopic:
		var event models.WalletFundedEvent

		if err := json.Unmarshal(raw, &event); err != nil {
			logrus.Errorf("Error unmarshalling WalletFundedEvent: %s", err.Error())
			return err
		}

		FundsAddedTotal.Inc()
		FundsAmounts.Observe(event.Amount)
	case models.DonationRecordedTopic:
		var event models.DonationRecordedEvent

		if err := json.Unmarshal(raw, &event); err != nil {
			logrus.Errorf("Error unmarshalling DonationRecordedEvent: %s", err.Error())
			return err
		}

		DonationsTotal.WithLabelValues(string(event.Status)).Inc()
		if event.Status == models.DonationStatusConfirmed {
			DonationAmounts.WithLabelValues(event.Charity).Observe(event.Amount)
		}
	}

	return nil
}
