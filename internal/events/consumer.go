// Package events keeps the index current between full syncs by consuming
// content change events and applying them as single-document updates.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/contentdex/contentdex/internal/domain"
	"github.com/contentdex/contentdex/internal/domain/content"
	"github.com/contentdex/contentdex/internal/indexer"
	"github.com/contentdex/contentdex/internal/mapper"
)

// Change event kinds.
const (
	EventPublish = "publish"
	EventUpdate  = "update"
	EventDelete  = "delete"
)

// ChangeEvent is one content mutation published by the CMS.
type ChangeEvent struct {
	Event string `json:"event"`
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Site  int    `json:"site"`
}

// Config holds consumer connection settings.
type Config struct {
	Brokers     []string
	GroupID     string
	Topics      []string
	IndexPrefix string
}

// Consumer applies change events to the index. One reader per topic; offsets
// commit only after the document update lands, so a crash replays rather than
// drops events.
type Consumer struct {
	cfg     Config
	fetcher ContentFetcher
	writer  DocumentWriter
	mapper  *mapper.Mapper
	log     *zap.Logger
}

// NewConsumer creates a consumer.
func NewConsumer(cfg Config, fetcher ContentFetcher, writer DocumentWriter, m *mapper.Mapper, log *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, fetcher: fetcher, writer: writer, mapper: m, log: log}
}

// Run consumes until the context is cancelled. It blocks.
func (c *Consumer) Run(ctx context.Context) error {
	errCh := make(chan error, len(c.cfg.Topics))
	for _, topic := range c.cfg.Topics {
		go func(topic string) {
			errCh <- c.consumeTopic(ctx, topic)
		}(topic)
	}

	var first error
	for range c.cfg.Topics {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && first == nil {
			first = err
		}
	}
	return first
}

func (c *Consumer) consumeTopic(ctx context.Context, topic string) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: c.cfg.Brokers,
		GroupID: c.cfg.GroupID,
		Topic:   topic,
	})
	defer reader.Close()

	c.log.Info("consuming change events", zap.String("topic", topic))

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if err := c.handle(ctx, msg.Value); err != nil {
			// Malformed or unprocessable events are logged and committed;
			// replaying them would fail identically forever.
			c.log.Error("applying change event",
				zap.String("topic", topic),
				zap.Int64("kafka_offset", msg.Offset),
				zap.Error(err),
			)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offset: %w", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	typ := content.Type(ev.Type)
	if !typ.IsValid() {
		return fmt.Errorf("unknown content type %q", ev.Type)
	}
	if ev.Site < 1 {
		ev.Site = 1
	}

	index := indexer.IndexName(c.cfg.IndexPrefix, ev.Type, ev.Site)
	docID := strconv.FormatInt(ev.ID, 10)

	switch ev.Event {
	case EventDelete:
		return c.writer.DeleteDocument(ctx, index, docID)

	case EventPublish, EventUpdate:
		obj, err := c.fetcher.Fetch(ctx, ev.Site, typ, ev.ID)
		if err != nil {
			if errors.Is(err, domain.ErrObjectNotFound) {
				// Deleted between the event and now; drop the stale document.
				return c.writer.DeleteDocument(ctx, index, docID)
			}
			return err
		}
		doc, err := c.mapper.Map(obj)
		if err != nil {
			if errors.Is(err, domain.ErrObjectGone) {
				return c.writer.DeleteDocument(ctx, index, docID)
			}
			return err
		}
		return c.writer.IndexDocument(ctx, index, docID, doc)
	}
	return fmt.Errorf("unknown event %q", ev.Event)
}
