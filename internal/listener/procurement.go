// Package listener consumes procurement events from Kafka and turns delivered
// purchases into inventory items.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"household-inventory-api/internal/metrics"
	"household-inventory-api/internal/model"
	"household-inventory-api/internal/repository"
	"household-inventory-api/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Event types accepted from the procurement topic.
const (
	EventPurchaseRecorded = "PurchaseRecorded"
	EventOrderDelivered   = "OrderDelivered"
)

// Results reported to the procurement metric.
const (
	resultProcessed = "processed"
	resultPartial   = "partial"
	resultFailed    = "failed"
	resultInvalid   = "invalid"
	resultIgnored   = "ignored"
	resultDuplicate = "duplicate"
)

const (
	seenCapacity = 1024
	maxAttempts  = 3
)

// MessageReader is the subset of *kafka.Reader the listener needs. Offsets are
// committed explicitly once a message has been handled.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ItemCreator adds an inventory item for a member.
type ItemCreator interface {
	Create(ctx context.Context, memberID string, in service.CreateItemInput) (*model.InventoryItem, error)
}

// ReaderConfig configures the Kafka consumer.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewKafkaReader builds a consumer-group reader for the procurement topic.
func NewKafkaReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
}

// ProcurementEvent is a normalized purchase coming from an external ordering system.
type ProcurementEvent struct {
	EventID   string             `json:"event_id"`
	EventType string             `json:"event_type"`
	Payload   ProcurementPayload `json:"payload"`
	Timestamp time.Time          `json:"timestamp"`
}

// ProcurementPayload is the purchase carried by an event.
type ProcurementPayload struct {
	OrderID  string         `json:"order_id"`
	MemberID string         `json:"member_id"`
	Items    []ProcuredItem `json:"items"`
}

// ProcuredItem is one delivered line.
type ProcuredItem struct {
	FoodID            string                `json:"food_id"`
	Quantity          float64               `json:"quantity"`
	Unit              string                `json:"unit"`
	ExpiryDate        *time.Time            `json:"expiry_date"`
	StorageLocation   model.StorageLocation `json:"storage_location"`
	Price             decimal.NullDecimal   `json:"price"`
	MinStockThreshold *float64              `json:"min_stock_threshold"`
}

// ProcurementListener creates inventory items from procurement events.
type ProcurementListener struct {
	reader  MessageReader
	items   ItemCreator
	foods   repository.FoodCatalog
	metrics *metrics.Metrics
	logger  *zap.Logger

	retryDelay time.Duration

	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
}

// NewProcurementListener creates a listener. foods supplies default units for lines without one.
func NewProcurementListener(
	reader MessageReader,
	items ItemCreator,
	foods repository.FoodCatalog,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ProcurementListener {
	return &ProcurementListener{
		reader:  reader,
		items:   items,
		foods:   foods,
		metrics: m,
		logger:  logger,
		seen:    make(map[string]struct{}, seenCapacity),

		retryDelay: time.Second,
	}
}

// Start reads messages until ctx is cancelled.
func (l *ProcurementListener) Start(ctx context.Context) {
	l.logger.Info("starting procurement listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stopping procurement listener")
			return
		default:
			msg, err := l.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("failed to fetch kafka message", zap.Error(err))
				if !sleep(ctx, time.Second) {
					return
				}
				continue
			}
			if !l.handle(ctx, msg) {
				return
			}
		}
	}
}

// handle processes msg, retrying a fully failed event up to maxAttempts, then
// commits its offset. It returns false when ctx ends first; the offset is then
// left uncommitted so the message is redelivered.
func (l *ProcurementListener) handle(ctx context.Context, msg kafka.Message) bool {
	var result string
	for attempt := 1; ; attempt++ {
		result = l.ProcessMessage(ctx, msg.Value)
		if result != resultFailed || attempt >= maxAttempts {
			break
		}
		if !sleep(ctx, l.retryDelay*time.Duration(attempt)) {
			return false
		}
	}
	l.metrics.ProcurementEvent(result)

	if err := l.reader.CommitMessages(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return false
		}
		l.logger.Error("failed to commit kafka offset",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// Close releases the underlying reader.
func (l *ProcurementListener) Close() error {
	return l.reader.Close()
}

// ProcessMessage handles one raw event and returns its outcome label.
func (l *ProcurementListener) ProcessMessage(ctx context.Context, value []byte) string {
	var event ProcurementEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("failed to unmarshal procurement event", zap.Error(err))
		return resultInvalid
	}

	if event.EventType != EventPurchaseRecorded && event.EventType != EventOrderDelivered {
		return resultIgnored
	}
	if err := validate(event); err != nil {
		l.logger.Warn("rejected procurement event",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return resultInvalid
	}
	if !l.markSeen(event.EventID) {
		l.logger.Debug("duplicate procurement event", zap.String("event_id", event.EventID))
		return resultDuplicate
	}

	l.logger.Info("processing procurement event",
		zap.String("event_id", event.EventID),
		zap.String("order_id", event.Payload.OrderID),
		zap.String("member_id", event.Payload.MemberID),
		zap.Int("items", len(event.Payload.Items)),
	)

	var report model.BatchReport
	for _, line := range event.Payload.Items {
		if err := l.createItem(ctx, event.Payload.MemberID, line); err != nil {
			l.logger.Error("failed to create item for procurement line",
				zap.String("event_id", event.EventID),
				zap.String("food_id", line.FoodID),
				zap.Error(err),
			)
			report.Fail(line.FoodID, err)
			continue
		}
		report.Success()
	}

	switch {
	case report.Failed == 0:
		return resultProcessed
	case report.Succeeded == 0:
		l.forget(event.EventID)
		return resultFailed
	default:
		return resultPartial
	}
}

func (l *ProcurementListener) createItem(ctx context.Context, memberID string, line ProcuredItem) error {
	unit := line.Unit
	if unit == "" && l.foods != nil {
		food, err := l.foods.GetFood(ctx, line.FoodID)
		if err != nil {
			return err
		}
		unit = food.DefaultUnit
	}
	_, err := l.items.Create(ctx, memberID, service.CreateItemInput{
		FoodID:            line.FoodID,
		Quantity:          line.Quantity,
		Unit:              unit,
		ExpiryDate:        line.ExpiryDate,
		MinStockThreshold: line.MinStockThreshold,
		StorageLocation:   line.StorageLocation,
		PurchasePrice:     line.Price,
		PurchaseSource:    model.SourceOrderSync,
	})
	return err
}

func validate(event ProcurementEvent) error {
	switch {
	case event.EventID == "":
		return errors.New("event_id is required")
	case event.Payload.MemberID == "":
		return errors.New("payload.member_id is required")
	case len(event.Payload.Items) == 0:
		return errors.New("payload.items is empty")
	}
	return nil
}

// markSeen records an event ID and reports whether it was new. The oldest IDs are
// evicted once the window is full.
func (l *ProcurementListener) markSeen(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[id]; ok {
		return false
	}
	if len(l.ring) == seenCapacity {
		delete(l.seen, l.ring[0])
		l.ring = l.ring[1:]
	}
	l.seen[id] = struct{}{}
	l.ring = append(l.ring, id)
	return true
}

// forget lets a fully failed event be processed again on the next attempt.
func (l *ProcurementListener) forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.seen, id)
	for i, v := range l.ring {
		if v == id {
			l.ring = append(l.ring[:i], l.ring[i+1:]...)
			break
		}
	}
}
