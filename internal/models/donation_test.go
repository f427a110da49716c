package models_test

import (
	"testing"
	"time"

	"github.com/Vrajp222/Donation-Tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceAmount(t *testing.T) {
	assert.Equal(t, 10.5, models.CoerceAmount(10.5))
	assert.Equal(t, 10.5, models.CoerceAmount("10.5"))
	assert.Equal(t, 3.0, models.CoerceAmount(3))
	assert.Equal(t, 0.0, models.CoerceAmount(nil))
	assert.Equal(t, 0.0, models.CoerceAmount("not a number"))
	assert.Equal(t, 0.0, models.CoerceAmount(map[string]any{}))
}

func TestDonationRecordFromValue(t *testing.T) {
	rec, ok := models.DonationRecordFromValue(map[string]any{
		"charity": "Red Cross",
		"amount":  "20.5",
		"date":    "2026-01-02T03:04:05Z",
	})

	require.True(t, ok)
	assert.Equal(t, "Red Cross", rec.Charity)
	assert.Equal(t, 20.5, rec.Amount)
	require.True(t, rec.Confirmed())
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), rec.Date.UTC())
}

func TestDonationRecordFromValueProvisional(t *testing.T) {
	rec, ok := models.DonationRecordFromValue(map[string]any{
		"charity": "UNICEF",
		"amount":  5.0,
	})

	require.True(t, ok)
	assert.False(t, rec.Confirmed())
}

func TestDonationRecordFromValueRejectsNonMap(t *testing.T) {
	_, ok := models.DonationRecordFromValue("garbage")
	assert.False(t, ok)
}

func TestDonationRecordValueRoundTrip(t *testing.T) {
	date := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	rec := models.DonationRecord{Charity: "Red Cross", Amount: 20, Date: &date}

	decoded, ok := models.DonationRecordFromValue(rec.Value())

	require.True(t, ok)
	assert.Equal(t, rec.Charity, decoded.Charity)
	assert.Equal(t, rec.Amount, decoded.Amount)
	assert.Equal(t, date, decoded.Date.UTC())
}

func TestProvisionalRecordValueOmitsDate(t *testing.T) {
	rec := models.DonationRecord{Charity: "UNICEF", Amount: 5}
	assert.NotContains(t, rec.Value(), "date")
}
