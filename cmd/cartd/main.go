package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/cache"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/catalog"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/checkout"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/config"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/httpapi"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/poller"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/repository"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/reservation"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/service"
	"github.com/abhijeets54/ankkorwoo-sub001/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal("failed to connect to mongodb", "error", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())

	repo := repository.NewMongoRepository(mongoDB)
	if err := repo.CreateIndexes(ctx); err != nil {
		log.Fatal("failed to create mongo indexes", "error", err)
	}
	log.Info("connected to mongodb", "uri", cfg.MongoURI)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", "error", err)
	}
	cartCache := cache.NewRedisCache(redisClient)
	log.Info("connected to redis", "addr", cfg.RedisAddr)

	source := catalog.NewHTTPSource(cfg.StockSourceURL, 5*time.Second)
	authority := reservation.NewMemoryAuthority(source, log)
	go authority.RunSweeper(ctx, cfg.SweepInterval)

	carts := service.NewCartService(repo, cartCache, authority, log, cfg.ReservationTTL)

	checkoutCred := &checkout.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDBName,
		MigrationsDirPath: cfg.MigrationsDirPath,
	}
	checkoutRepo, err := checkout.NewRepository(checkoutCred)
	if err != nil {
		log.Fatal("failed to connect to postgres", "error", err)
	}
	defer checkoutRepo.Close()
	if err := checkoutRepo.RunMigrations(checkoutCred); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}
	log.Info("connected to postgres", "host", cfg.PostgresHost)

	bridge := checkout.NewHTTPBridge(cfg.PlatformURL)
	checkoutSvc := checkout.NewService(checkoutRepo, carts, authority, bridge, cfg.StoreURL, log)

	outbox := checkout.NewOutboxPoller(checkoutRepo, cfg.OutboxTopic, log, cfg.KafkaBrokers...)
	go outbox.Run(ctx)

	stockPoller := poller.NewPoller(authority, cfg.PollInterval, log)
	go stockPoller.Run(ctx)
	go func() {
		for c := range stockPoller.Corrections() {
			log.Debug("stock correction",
				"product_id", c.ProductID, "variation_id", c.VariationID,
				"available", c.Available, "status", c.Status)
		}
	}()

	router := httpapi.NewRouter(
		httpapi.NewCartHandler(carts),
		httpapi.NewCheckoutHandler(carts, checkoutSvc),
		httpapi.NewStockHandler(authority),
		30*time.Second,
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("cartd listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	log.Info("cartd stopped")
}
