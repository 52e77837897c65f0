// Package kafka publishes decoded packet summaries to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/firestorm/internal/core/decoder"
	"firestige.xyz/firestorm/internal/log"
)

const Name = "kafka"

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// Config is the kafka sink's options block.
type Config struct {
	Brokers      []string      `mapstructure:"brokers"` // required
	Topic        string        `mapstructure:"topic"`   // required
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	Compression  string        `mapstructure:"compression"` // none|gzip|snappy|lz4
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// ParseConfig decodes and validates sink options.
func ParseConfig(options map[string]any) (Config, error) {
	cfg := Config{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
	}
	if options == nil {
		return cfg, fmt.Errorf("kafka sink requires options")
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(options); err != nil {
		return cfg, fmt.Errorf("invalid kafka options: %w", err)
	}

	if len(cfg.Brokers) == 0 {
		return cfg, fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return cfg, fmt.Errorf("topic is required")
	}
	if _, err := codec(cfg.Compression); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func codec(name string) (kafka.CompressionCodec, error) {
	switch name {
	case "none", "":
		return nil, nil
	case "gzip":
		return compress.Gzip.Codec(), nil
	case "snappy":
		return compress.Snappy.Codec(), nil
	case "lz4":
		return compress.Lz4.Codec(), nil
	default:
		return nil, fmt.Errorf("invalid compression type: %s", name)
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink writes one JSON message per summary, keyed by capture source.
type Sink struct {
	cfg    Config
	writer messageWriter
	log    log.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// New builds a sink from the pipeline's sink options.
func New(options map[string]any) (*Sink, error) {
	cfg, err := ParseConfig(options)
	if err != nil {
		return nil, err
	}
	cc, _ := codec(cfg.Compression)
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:          cfg.Brokers,
		Topic:            cfg.Topic,
		Balancer:         &kafka.Hash{},
		BatchSize:        cfg.BatchSize,
		BatchTimeout:     cfg.BatchTimeout,
		MaxAttempts:      cfg.MaxAttempts,
		CompressionCodec: cc,
	})
	return newSink(cfg, w), nil
}

func newSink(cfg Config, w messageWriter) *Sink {
	s := &Sink{cfg: cfg, writer: w, log: log.GetLogger().WithField("sink", Name)}
	s.log.WithFields(map[string]interface{}{
		"brokers":     strings.Join(cfg.Brokers, ","),
		"topic":       cfg.Topic,
		"compression": cfg.Compression,
	}).Info("kafka sink ready")
	return s
}

func (s *Sink) Name() string { return Name }

// Send publishes one summary.
func (s *Sink) Send(ctx context.Context, sum decoder.Summary) error {
	value, err := json.Marshal(sum)
	if err != nil {
		s.failed.Add(1)
		return fmt.Errorf("serialize summary failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(sum.Source),
		Value: value,
		Time:  sum.Timestamp,
	}
	if len(sum.Layers) > 0 {
		protos := make([]string, len(sum.Layers))
		for i, l := range sum.Layers {
			protos[i] = l.Protocol
		}
		msg.Headers = []kafka.Header{{Key: "layers", Value: []byte(strings.Join(protos, "/"))}}
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}
	s.sent.Add(1)
	return nil
}

// Close flushes pending messages.
func (s *Sink) Close() error {
	err := s.writer.Close()
	s.log.WithFields(map[string]interface{}{
		"sent":   s.sent.Load(),
		"failed": s.failed.Load(),
	}).Info("kafka sink closed")
	return err
}
