package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	FundsAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_funds_added_total",
			Help: "Number of wallet top-ups processed",
		},
	)

	FundsAmounts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wallet_funds_amounts",
			Help:    "Distribution of top-up amounts",
			Buckets: prometheus.LinearBuckets(0, 50, 20),
		},
	)

	DonationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donations_total",
			Help: "Number of donations by status",
		},
		[]string{"status"},
	)

	DonationAmounts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "donation_amounts",
			Help:    "Distribution of confirmed donation amounts",
			Buckets: prometheus.LinearBuckets(0, 50, 20),
		},
		[]string{"charity"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		FundsAddedTotal,
		FundsAmounts,
		DonationsTotal,
		DonationAmounts,
	)
}
