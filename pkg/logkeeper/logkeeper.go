// Package logkeeper consumes request log entries from Kafka and indexes them
// into Elasticsearch.
package logkeeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"linkshare/pkg/logger"
)

var ErrNoWorkers = errors.New("number of workers must be positive")

type Config struct {
	LogLevel     string   `toml:"logLevel"`
	KafkaBrokers []string `toml:"kafkaBrokers"`
	KafkaTopic   string   `toml:"kafkaTopic"`
	KafkaGroupID string   `toml:"kafkaGroupID"`

	ElasticSearchIndex string   `toml:"elasticSearchIndex"`
	ElasticSearchNodes []string `toml:"elasticSearchNodes"`

	NumWorkers int `toml:"numWorkers"`
}

func (c *Config) Validate() error {
	if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
		return errors.New("kafka brokers and topic are required")
	}
	if c.ElasticSearchIndex == "" || len(c.ElasticSearchNodes) == 0 {
		return errors.New("elasticsearch index and nodes are required")
	}
	if c.NumWorkers <= 0 {
		return ErrNoWorkers
	}
	return nil
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Keeper struct {
	es    *elasticsearch.Client
	index string
}

func New(es *elasticsearch.Client, index string) *Keeper {
	return &Keeper{es: es, index: index}
}

// Run reads messages from r and hands them to numWorkers indexing workers
// until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context, r MessageReader, numWorkers int) error {
	if numWorkers <= 0 {
		return ErrNoWorkers
	}

	jobs := make(chan kafka.Message, numWorkers*5) // buffer is needed to increase throughput
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for workerID := 0; workerID < numWorkers; workerID++ {
		go func(id int) {
			defer wg.Done()
			k.worker(ctx, jobs, id)
		}(workerID)
	}

	log.Info("[logkeeper] accepting logs...")
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Errorf("[logkeeper] failed to read message from Kafka: %v", err)
			continue
		}
		log.Debugf("[logkeeper] received message: %s", string(msg.Value))

		select {
		case jobs <- msg:
		case <-ctx.Done():
		}
	}

	close(jobs)
	wg.Wait()
	return nil
}

func (k *Keeper) worker(ctx context.Context, jobs <-chan kafka.Message, workerID int) {
	for {
		select {
		case <-ctx.Done():
			log.Infof("[logkeeper][workerID:%d] context cancelled, exiting worker", workerID)
			return

		case msg, ok := <-jobs:
			if !ok {
				log.Infof("[logkeeper][workerID:%d] jobs channel closed, exiting worker", workerID)
				return
			}

			entry, err := k.Index(ctx, msg.Value)
			if err != nil {
				log.Errorf("[logkeeper][workerID:%d] %v", workerID, err)
				continue
			}
			log.Debugf("[logkeeper][workerID:%d][%s] log entry indexed", workerID, shorten(entry.RequestID))
		}
	}
}

// Index stores a single JSON encoded logger.Entry. Re-indexing the same
// entry overwrites the document.
func (k *Keeper) Index(ctx context.Context, raw []byte) (logger.Entry, error) {
	var entry logger.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return logger.Entry{}, fmt.Errorf("failed to unmarshal log entry: %w", err)
	}

	res, err := k.es.Index(
		k.index,
		strings.NewReader(string(raw)),
		k.es.Index.WithDocumentID(entry.DocumentID()),
		k.es.Index.WithContext(ctx),
	)
	if err != nil {
		return logger.Entry{}, fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return logger.Entry{}, fmt.Errorf("failed to index document: %s", res.Status())
	}

	return entry, nil
}

func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
