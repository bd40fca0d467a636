package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"partsledger/internal/logger"
	"partsledger/internal/models"
	"partsledger/internal/services"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Restocker is the catalog operation driven by delivery notices.
type Restocker interface {
	Restock(ctx context.Context, itemID string, quantity int, notes, performedBy string) (*models.Item, error)
}

// RestockConsumer applies supplier delivery notices from Kafka to the catalog.
// Offsets are committed only after the restock is stored; malformed or
// rejected notices are logged and skipped.
type RestockConsumer struct {
	reader  messageReader
	catalog Restocker
	topic   string
	retry   time.Duration
	log     *zap.Logger
}

func NewRestockConsumer(brokers []string, topic, groupID string, dialer *kafka.Dialer, catalog Restocker) *RestockConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		Dialer:      dialer,
	})
	return newRestockConsumer(reader, topic, catalog)
}

func newRestockConsumer(reader messageReader, topic string, catalog Restocker) *RestockConsumer {
	return &RestockConsumer{
		reader:  reader,
		catalog: catalog,
		topic:   topic,
		retry:   time.Second,
		log:     logger.Named("restock"),
	}
}

// Run consumes until ctx is cancelled.
func (rc *RestockConsumer) Run(ctx context.Context) {
	rc.log.Info("📡 Restock consumer started", zap.String("topic", rc.topic))
	defer func() {
		if err := rc.reader.Close(); err != nil {
			rc.log.Warn("⚠️ failed to close Kafka reader", zap.Error(err))
		}
		rc.log.Info("🛑 Restock consumer stopped")
	}()

	for {
		msg, err := rc.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rc.log.Warn("⚠️ Kafka read failed", zap.Error(err))
			if !sleepCtx(ctx, rc.retry) {
				return
			}
			continue
		}

		if err := rc.handle(ctx, msg); err != nil {
			// Not committed: the message is redelivered after a restart or rebalance.
			rc.log.Error("❌ restock failed, will retry", zap.Int64("offset", msg.Offset), zap.Error(err))
			if !sleepCtx(ctx, rc.retry) {
				return
			}
			continue
		}
		if err := rc.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			rc.log.Warn("⚠️ failed to commit offset", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handle returns an error only for failures worth retrying.
func (rc *RestockConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var evt models.RestockEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		rc.log.Warn("⚠️ skipping malformed restock notice", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	performedBy := "supplier"
	if evt.Supplier != "" {
		performedBy = "supplier:" + evt.Supplier
	}
	item, err := rc.catalog.Restock(ctx, evt.ItemID, evt.Quantity, evt.Note, performedBy)
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNotFound):
		rc.log.Warn("⚠️ skipping rejected restock notice",
			zap.String("item_id", evt.ItemID), zap.Int("quantity", evt.Quantity), zap.Error(err))
		return nil
	case err != nil:
		return err
	}

	rc.log.Info("📦 Restocked from delivery notice",
		zap.String("item_id", item.ID), zap.Int("quantity", evt.Quantity), zap.Int("stock", item.StockQuantity))
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
