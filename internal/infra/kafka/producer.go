package kafka

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/infra/config"
)

// Producer owns a Sarama AsyncProducer. Delivery failures are logged and forwarded on Errors
// until Close.
type Producer struct {
	async    sarama.AsyncProducer
	logger   *zap.Logger
	prefix   string
	failures chan error
	stop     chan struct{}
	drained  chan struct{}
}

// saramaConfig favours latency over durability: auth events are notifications, not the source of truth.
func saramaConfig(cfg config.KafkaSettings) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_5_0_0
	sc.ClientID = strings.Trim(cfg.TopicPrefix+"-auth", "-")

	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Producer.Flush.Frequency = 100 * time.Millisecond
	sc.Producer.Flush.Messages = 100
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true

	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond
	return sc
}

// NewProducer connects an async producer to the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	async, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := newProducer(async, cfg, logger)
	p.logger.Info("Kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)
	return p, nil
}

func newProducer(async sarama.AsyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		async:    async,
		logger:   logger,
		prefix:   cfg.TopicPrefix,
		failures: make(chan error, 256),
		stop:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
	go p.drain()
	return p
}

func (p *Producer) drain() {
	defer close(p.drained)
	defer close(p.failures)

	for {
		select {
		case perr, ok := <-p.async.Errors():
			if !ok {
				return
			}
			p.report(perr)
		case <-p.stop:
			return
		}
	}
}

func (p *Producer) report(perr *sarama.ProducerError) {
	if perr == nil {
		return
	}
	p.logger.Error("Kafka delivery failed",
		zap.Error(perr.Err),
		zap.String("topic", perr.Msg.Topic),
	)
	select {
	case p.failures <- perr.Err:
	default:
		p.logger.Warn("Kafka failure channel full, dropping error")
	}
}

// Errors reports delivery failures. The channel is closed by Close.
func (p *Producer) Errors() <-chan error {
	return p.failures
}

func (p *Producer) input() chan<- *sarama.ProducerMessage {
	return p.async.Input()
}

// Close stops forwarding failures, then flushes buffered messages. Failures hit during the
// flush are logged rather than forwarded.
func (p *Producer) Close() error {
	p.logger.Info("Closing Kafka producer")
	close(p.stop)
	<-p.drained

	err := p.async.Close()
	var perrs sarama.ProducerErrors
	if errors.As(err, &perrs) {
		for _, perr := range perrs {
			p.logger.Warn("Kafka delivery failed during flush", zap.Error(perr.Err), zap.String("topic", perr.Msg.Topic))
		}
	}
	if err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// TopicName prefixes eventType with the configured topic prefix unless it already carries it.
func (p *Producer) TopicName(eventType string) string {
	if p.prefix == "" || strings.HasPrefix(eventType, p.prefix+".") {
		return eventType
	}
	return p.prefix + "." + eventType
}
