package notify

import (
	"fmt"

	"github.com/vncsmyrnk/livepoll/internal/config"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

// New returns the publisher selected by cfg, or nil when publishing is off.
func New(cfg config.Config) (ports.ResultPublisher, error) {
	var (
		pub ports.ResultPublisher
		err error
	)
	switch cfg.ResultsPublisher {
	case config.PublisherNone, "":
		return nil, nil
	case config.PublisherRedis:
		var p *RedisPublisher
		if p, err = NewRedisPublisher(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Channel); err == nil {
			pub = p
		}
	case config.PublisherAMQP:
		var p *AMQPPublisher
		if p, err = NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange); err == nil {
			pub = p
		}
	case config.PublisherKafka:
		var p *KafkaPublisher
		if p, err = NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic); err == nil {
			pub = p
		}
	default:
		return nil, fmt.Errorf("unsupported results publisher %q", cfg.ResultsPublisher)
	}
	if err != nil {
		return nil, err
	}
	return pub, nil
}
