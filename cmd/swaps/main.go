package main

import (
	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/handler"
	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/repository"
	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/service"
	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/validator"
	"github.com/pranaytiwariii/SlotSwapper/pkg/app"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	mongotx "github.com/pranaytiwariii/SlotSwapper/pkg/db/mongo"
	"github.com/pranaytiwariii/SlotSwapper/pkg/kafka"
	kafkaconfig "github.com/pranaytiwariii/SlotSwapper/pkg/kafka/config"
)

const (
	ServiceName = "swaps"
	EventsTopic = "swap-events"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Swaps service")

	producer := initProducer(cfg)
	swapService, slotService := initServices(cfg, producer)

	serverApp := app.NewApplication(cfg)
	serverApp.SetProducer(producer)
	serverApp.SetApp(
		handler.NewSwapHandler(cfg, swapService),
		handler.NewSlotHandler(cfg, slotService),
	)
	serverApp.Run()
}

// initProducer returns nil when no brokers are configured; the services
// treat a nil publisher as "events disabled".
func initProducer(cfg *config.Config) *kafka.Producer {
	kafkaCfg := kafkaconfig.Load()
	if kafkaCfg == nil {
		cfg.Log.Info("Kafka brokers not configured, event publishing disabled")
		return nil
	}

	producer, err := kafka.NewProducer(kafkaCfg, EventsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create event producer", "error", err)
	}

	cfg.Log.Info("Event producer initialized", "topic", EventsTopic)
	return producer
}

func initServices(cfg *config.Config, producer *kafka.Producer) (service.SwapService, service.SlotService) {
	swapValidator := validator.NewSwapValidator(cfg.Log)
	slotRepo := repository.NewMongoSlotRepository(cfg)
	requestRepo := repository.NewMongoSwapRequestRepository(cfg)
	userRepo := repository.NewMongoUserRepository(cfg)
	txManager := mongotx.NewTransactionManager(cfg.Client.Mongo)

	// kafka.Producer satisfies service.EventPublisher, but a typed nil
	// pointer must stay a nil interface.
	var publisher service.EventPublisher
	if producer != nil {
		publisher = producer
	}

	swapService := service.NewSwapService(cfg, slotRepo, requestRepo, userRepo, swapValidator, publisher)
	slotService := service.NewSlotService(cfg, slotRepo, userRepo, txManager, swapValidator, publisher)

	cfg.Log.Info("Swap services initialized", "database", cfg.MongoDatabaseName)
	return swapService, slotService
}
