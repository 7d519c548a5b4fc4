package rabbit

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logging "cogniview/pkg/logger/pkg"
)

type ConsumeFunc func(ctx context.Context, msg amqp.Delivery) error

type Rabbit interface {
	Consume(ctx context.Context, queue string, consumeFunction ConsumeFunc) error
	Publish(ctx context.Context, queue string, body []byte) error
}

type Config struct {
	Address     string
	Port        int32
	Username    string
	Password    string
	MaxConsumer int32
	ExpireTime  int32 // milliseconds, 0 keeps messages until consumed
}

type rabbit struct {
	connectionUrl string
	maxConsumer   int32
	expireTime    int32
}

// ReadConfig returns nil when no broker address is configured.
func ReadConfig() *Config {
	viper.BindEnv("rabbitmq.address", "RABBITMQ_ADDRESS")
	viper.BindEnv("rabbitmq.password", "RABBITMQ_PASSWORD")

	if viper.GetString("rabbitmq.address") == "" {
		return nil
	}
	return &Config{
		Address:     viper.GetString("rabbitmq.address"),
		Port:        viper.GetInt32("rabbitmq.port"),
		Username:    viper.GetString("rabbitmq.username"),
		Password:    viper.GetString("rabbitmq.password"),
		MaxConsumer: viper.GetInt32("rabbitmq.max_consumer"),
		ExpireTime:  viper.GetInt32("rabbitmq.expire_time"),
	}
}

func New(rb *Config) Rabbit {
	if rb == nil {
		return NewDummy()
	}

	maxConsumer := rb.MaxConsumer
	if maxConsumer <= 0 {
		maxConsumer = 1
	}
	connectionUrl := fmt.Sprintf("amqp://%s:%s@%s:%d/", rb.Username, rb.Password, rb.Address, rb.Port)
	return &rabbit{
		connectionUrl: connectionUrl,
		maxConsumer:   maxConsumer,
		expireTime:    rb.ExpireTime,
	}
}

func (r *rabbit) processMessage(ctx context.Context, msg amqp.Delivery, sem chan struct{}, consumeFunction ConsumeFunc) {
	defer func() { <-sem }()
	logger := logging.Logger(ctx).With(zap.String("queue", msg.RoutingKey), zap.String("messageId", msg.MessageId))
	logger.Debug("Received message", zap.ByteString("body", msg.Body))

	if err := consumeFunction(ctx, msg); err != nil {
		logger.Error("Failed to process message", zap.Error(err))
		msg.Nack(false, !msg.Redelivered)
	} else {
		msg.Ack(false)
	}
}

// Consume blocks until ctx is cancelled or the broker closes the channel.
func (r *rabbit) Consume(ctx context.Context, queue string, consumeFunction ConsumeFunc) error {
	conn, err := amqp.Dial(r.connectionUrl)
	if err != nil {
		return err
	}
	defer conn.Close()

	logging.Logger(ctx).Info("Connected to RabbitMQ", zap.String("queue", queue))

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(int(r.maxConsumer), 0, false); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, r.maxConsumer)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel closed for queue %s", queue)
			}
			sem <- struct{}{}
			go r.processMessage(ctx, msg, sem, consumeFunction)
		}
	}
}

func (r *rabbit) Publish(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.Dial(r.connectionUrl)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}
	if r.expireTime > 0 {
		publishing.Expiration = fmt.Sprintf("%d", r.expireTime)
	}
	if err := ch.PublishWithContext(ctx, "", q.Name, false, false, publishing); err != nil {
		return err
	}

	logging.Logger(ctx).Debug("Published message", zap.String("queue", queue), zap.Int("bytes", len(body)))
	return nil
}
