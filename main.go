package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/zlnvch/wire/config"
	"github.com/zlnvch/wire/cryptox"
	"github.com/zlnvch/wire/events"
	eventsredis "github.com/zlnvch/wire/events/redis"
	"github.com/zlnvch/wire/logging"
	"github.com/zlnvch/wire/mq/sqsmq"
	"github.com/zlnvch/wire/service"
	"github.com/zlnvch/wire/store"
	"github.com/zlnvch/wire/store/dynamo"
	"github.com/zlnvch/wire/store/memory"
	storeredis "github.com/zlnvch/wire/store/redis"
	"github.com/zlnvch/wire/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("WIRE_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.Logging.Format, cfg.Logging.Level)

	// One redis connection serves both the store and pub/sub when both use it
	var redisClient goredis.UniversalClient
	dialRedis := func() goredis.UniversalClient {
		if redisClient == nil {
			client, err := storeredis.Dial(ctx, cfg.DevMode, cfg.Store.RedisEndpoint)
			if err != nil {
				log.Fatalf("Failed to connect to redis: %v", err)
			}
			redisClient = client
		}
		return redisClient
	}

	var wireStore store.WireStore
	switch cfg.Store.Backend {
	case config.BackendRedis:
		wireStore = storeredis.NewRedisWireStore(dialRedis())
	case config.BackendDynamo:
		dynamoStore, err := dynamo.NewDynamoWireStore(ctx, cfg.DevMode, cfg.Store.DynamoDBEndpoint, cfg.Store.DynamoDBTable)
		if err != nil {
			log.Fatalf("Failed to create dynamodb store: %v", err)
		}
		wireStore = dynamoStore
	case config.BackendMemory:
		wireStore = memory.NewMemoryWireStore()
	}
	defer wireStore.Close()

	if err := wireStore.Ping(ctx); err != nil {
		log.Fatalf("Store not reachable: %v", err)
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	var publisher events.Publisher
	switch cfg.Events.Backend {
	case config.BackendRedis:
		publisher = eventsredis.NewRedisBroker(dialRedis(), logger)
	case config.BackendSQS:
		queue, err := sqsmq.NewSQSMessageQueue(ctx, cfg.DevMode, cfg.Events.SQSEndpoint, cfg.Events.SQSQueue)
		if err != nil {
			log.Fatalf("Failed to create SQS MQ: %v", err)
		}
		publisher = events.NewQueuePublisher(queue)

		if cfg.Events.Relay {
			relay := worker.NewEventRelay(queue, eventsredis.NewRedisBroker(dialRedis(), logger), logger)
			go relay.Run(shutdownCtx)
		}
	}

	svc := service.NewService(
		wireStore,
		publisher,
		cryptox.NewBcryptHasher(cfg.Security.BcryptCost),
		cryptox.NewAESProvider(),
		logger,
	)
	if len(os.Args) > 1 {
		if err := runCommand(shutdownCtx, svc, os.Args[1:], os.Stdout); err != nil {
			log.Fatalf("%s: %v", os.Args[1], err)
		}
		return
	}

	logger.Info(ctx, "wire started",
		"store", cfg.Store.Backend,
		"events", cfg.Events.Backend,
		"relay", cfg.Events.Relay,
	)

	<-shutdownCtx.Done()

	logger.Info(ctx, "wire shutting down")
}
