package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"linkshare/pkg/api"
	"linkshare/pkg/censor"
	"linkshare/pkg/config"
	"linkshare/pkg/session"
	"linkshare/pkg/storage"
	"linkshare/pkg/storage/memdb"
	"linkshare/pkg/storage/mongo"
	"linkshare/pkg/storage/postgres"
)

func main() {
	var (
		configPath string
		dev        bool
		logLevel   string
	)

	flag.StringVar(&configPath, "config", "", "Path to TOML config file.")
	flag.BoolVar(&dev, "dev", false, "Run the server in development mode with in-memory DB.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[server] failed to load config: %v", err)
	}

	// Override config with flags if set
	if dev {
		cfg.Storage = config.StorageMemory
		cfg.Redis.Addr = ""
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[server] %v", err)
	}

	db, closeDB, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("[server] failed to initialize storage instance: %v", err)
	}

	store, closeStore, err := openSessionStore(cfg.Redis)
	if err != nil {
		log.Fatalf("[server] failed to initialize session store: %v", err)
	}
	sessions := session.NewManager(store, cfg.Session.Secret, cfg.Session.TTL, cfg.Session.SecureCookie)

	checker, err := newCensor(cfg.Censor)
	if err != nil {
		log.Fatalf("[server] failed to load censor: %v", err)
	}

	var kafkaWriter *kafka.Writer
	opts := api.Options{
		ServiceName: cfg.ServiceName,
		Censor:      checker,
		Categories:  cfg.Categories,
	}
	if cfg.Kafka.Addr != "" {
		kafkaWriter = &kafka.Writer{
			Addr:      kafka.TCP(cfg.Kafka.Addr),
			Topic:     cfg.Kafka.Topic,
			BatchSize: cfg.Kafka.Batch,
		}
		err := createTopic(kafkaWriter.Addr.String(), kafkaWriter.Topic)
		if err != nil {
			log.Warnf("[server] failed to create Kafka topic: %v", err)
		}
		opts.KafkaWriter = kafkaWriter
	} else {
		log.Warnf("[server] kafka was not configured, logs will not be sent to Kafka")
	}

	api, err := api.New(db, sessions, opts)
	if err != nil {
		log.Fatalf("[server] failed to create API: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.Infof("[server] starting on port %v", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[server] HTTP server shut down gracefully")
	}

	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			log.Errorf("[server] failed to close Kafka writer: %v", err)
		}
	}
	closeStore()
	closeDB(shutdownCtx)
	log.Info("[server] disconnected from DB")
}

// openStorage connects the backend selected by cfg.Storage.
func openStorage(cfg *config.Config) (storage.Storage, func(context.Context), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Storage {
	case config.StorageMongo:
		conf := mongo.Config{URI: cfg.Mongo.URI, DBName: cfg.Mongo.DBName}
		if err := conf.Validate(); err != nil {
			return nil, nil, err
		}
		db, err := mongo.New(ctx, &conf)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
		}
		log.Infof("[server] connected to %s", conf)
		return db, db.Close, nil

	case config.StoragePostgres:
		conf := postgres.Config{URL: cfg.Postgres.URL}
		if !conf.IsValid() {
			return nil, nil, fmt.Errorf("invalid postgres config: %s", conf)
		}
		db, err := postgres.New(ctx, conf.ConString())
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		log.Infof("[server] connected to postgres: %s", conf)
		return db, func(context.Context) { db.Close() }, nil

	default:
		log.Info("[server] run server with in memory DB")
		return memdb.New(), func(context.Context) {}, nil
	}
}

// openSessionStore uses Redis when an address is configured and keeps
// sessions in process memory otherwise.
func openSessionStore(conf config.Redis) (session.Store, func(), error) {
	if conf.Addr == "" {
		log.Warn("[server] redis was not configured, sessions are kept in memory")
		return session.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}

	log.Infof("[server] sessions stored in redis at %s", conf.Addr)
	return session.NewRedisStore(client), func() {
		if err := client.Close(); err != nil {
			log.Errorf("[server] failed to close redis client: %v", err)
		}
	}, nil
}

func newCensor(conf config.Censor) (censor.Checker, error) {
	switch {
	case conf.WordsPath != "":
		c := censor.New()
		if err := c.LoadFromJSON(conf.WordsPath); err != nil {
			return nil, fmt.Errorf("failed to load censor config file %s: %w", conf.WordsPath, err)
		}
		return c, nil
	case conf.ServiceURL != "":
		return censor.NewRemote(conf.ServiceURL), nil
	default:
		log.Warn("[server] censor was not configured, content is not moderated")
		return nil, nil
	}
}

func createTopic(broker, topic string) error {
	conn, err := kafka.DialContext(context.Background(), "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
