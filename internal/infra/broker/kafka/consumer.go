package kafka

import (
	"context"
	"log/slog"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer reads the external lifecycle topic for the bridge. The group
// starts from the oldest offset: a fresh deployment must replay the event
// history so every live plan already has its chat before members show up.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	log     *slog.Logger
}

func NewConsumer(brokers []string, groupID string, log *slog.Logger, handler MessageHandler) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRoundRobin(),
	}
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{group: g, handler: handler, log: log}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		err := c.group.Consume(ctx, topics, claimHandler{handler: c.handler, log: c.log})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type claimHandler struct {
	handler MessageHandler
	log     *slog.Logger
}

func (h claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handler.Handle(sess.Context(), msg); err != nil {
			// Left unmarked so a store hiccup is redelivered after the
			// next rebalance. Malformed payloads never reach this path,
			// the handler acknowledges those itself.
			h.log.Error("external event not applied",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
