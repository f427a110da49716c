package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Vrajp222/Donation-Tracker/config"
	"github.com/Vrajp222/Donation-Tracker/internal/charity"
	"github.com/Vrajp222/Donation-Tracker/internal/database"
	"github.com/Vrajp222/Donation-Tracker/internal/handler"
	"github.com/Vrajp222/Donation-Tracker/internal/identity"
	"github.com/Vrajp222/Donation-Tracker/internal/ledger"
	"github.com/Vrajp222/Donation-Tracker/internal/localcache"
	"github.com/Vrajp222/Donation-Tracker/internal/metrics"
	"github.com/Vrajp222/Donation-Tracker/internal/publisher"
	"github.com/Vrajp222/Donation-Tracker/internal/remote"
	"github.com/Vrajp222/Donation-Tracker/internal/subscriber"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type App struct {
	config *config.Config
	Router *gin.Engine
	Ledger *ledger.WalletLedger
}

func (a *App) Initialize(ctx context.Context, cfg *config.Config) {
	a.config = cfg

	db, err := cfg.DB.GormConnect()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	store, err := remote.NewTreeStore(db)
	if err != nil {
		log.Fatalf("failed to initialize remote store: %v", err)
	}

	if os.Getenv("GO_ENV") == "local" {
		if err := database.SeedWallets(store); err != nil {
			log.Printf("Warning: failed to seed wallets: %v", err)
		}
	}

	cache, err := localcache.Open(cfg.Cache.Path)
	if err != nil {
		log.Fatalf("failed to open local cache: %v", err)
	}

	sessions := identity.NewSessionManager(identity.NewClient(cfg.Auth.BaseURL, cfg.Auth.APIKey))
	charities := charity.NewClient(cfg.Charity.BaseURL, cfg.Charity.APIKey)

	brokers := strings.Split(cfg.Kafka.Brokers, ",")
	publishTopics := strings.Split(cfg.Kafka.PublishTopics, ",")
	publishers := publisher.NewKafkaPublisher(brokers[0], publishTopics, cfg.Kafka.GetRetryConfig())

	a.Ledger = ledger.New(store, cache, sessions, publishers)
	a.Ledger.Start(ctx)

	walletHandler := handler.NewWalletHandler(a.Ledger, sessions, charities)

	metrics.RegisterMetrics()

	a.Router = gin.Default()
	a.Router.Use(gin.Recovery())
	a.RegisterRoutes(walletHandler)

	a.initSubscribers(ctx, publishers)
}

func (a *App) Run() {
	err := a.Router.Run(fmt.Sprintf(":%s", a.config.APP.PORT))
	if err != nil {
		panic(err)
	}
}

func (a *App) initSubscribers(ctx context.Context, publishers *publisher.KafkaPublisher) {
	brokers := strings.Split(a.config.Kafka.Brokers, ",")
	topics := strings.Split(a.config.Kafka.SubscriberTopics, ",")
	groupID := a.config.Kafka.ConsumerGroup

	consumer := subscriber.NewMultiTopicConsumer(brokers, topics, groupID, publishers, a.config.GetRetryConfig())
	aggregator := metrics.NewAggregator()

	consumer.Listen(ctx, func(topic string, value []byte) error {
		if err := aggregator.Handle(ctx, topic, value); err != nil {
			logrus.Error(err.Error())
		}
		return nil
	})
}
