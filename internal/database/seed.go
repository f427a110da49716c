package database

import (
	"context"
	"log"
	"time"

	"github.com/Vrajp222/Donation-Tracker/internal/models"
	"github.com/Vrajp222/Donation-Tracker/internal/remote"
)

func SeedWallets(store *remote.TreeStore) error {
	ctx := context.Background()

	balances := map[string]float64{
		"demo_user_1": 100.0,
		"demo_user_2": 50.0,
		"demo_user_3": 20.0,
	}

	for uid, balance := range balances {
		existing, err := store.Get(ctx, models.BalancePath(uid))
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := store.Write(ctx, models.BalancePath(uid), balance); err != nil {
			return err
		}
	}

	historyPath := models.DonationHistoryPath("demo_user_1")
	existing, err := store.Get(ctx, historyPath)
	if err != nil {
		return err
	}
	if existing == nil {
		records := []models.DonationRecord{
			{Charity: "Red Cross", Amount: 20},
			{Charity: "UNICEF", Amount: 15},
		}
		for _, rec := range records {
			now := time.Now().UTC()
			rec.Date = &now
			if err := store.Write(ctx, historyPath+"/"+store.PushKey(historyPath), rec.Value()); err != nil {
				return err
			}
		}
	}

	log.Println("✅ Wallets seeded successfully")
	return nil
}
