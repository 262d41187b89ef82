// Package catalog resolves item references against the product catalog
// stored in Qdrant.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/dshills/shopagent/assistant"
)

// DefaultCollection is the items collection the ingestion pipeline writes.
const DefaultCollection = "Amazon-items-collection-01-hybrid-search"

// Payload keys read from an item point.
const (
	KeyItemID      = "parent_asin"
	KeyImage       = "image"
	KeyPrice       = "price"
	KeyDescription = "description"
)

// Config holds Qdrant connection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// scroller is the subset of *qdrant.Client used for lookups.
type scroller interface {
	Scroll(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
}

// QdrantLookup implements assistant.ItemLookup with a keyword filter on the
// item id payload field.
type QdrantLookup struct {
	client     scroller
	closer     func() error
	collection string
}

var _ assistant.ItemLookup = (*QdrantLookup)(nil)

// NewQdrantLookup dials Qdrant over gRPC.
func NewQdrantLookup(cfg Config) (*QdrantLookup, error) {
	if cfg.Host == "" {
		return nil, errors.New("qdrant host is required")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	l := newLookup(client, cfg.Collection)
	l.closer = client.Close
	return l, nil
}

func newLookup(client scroller, collection string) *QdrantLookup {
	if collection == "" {
		collection = DefaultCollection
	}
	return &QdrantLookup{client: client, collection: collection}
}

// Collection returns the collection queried by the lookup.
func (l *QdrantLookup) Collection() string {
	return l.collection
}

// LookupItem returns the first point whose item id matches id.
func (l *QdrantLookup) LookupItem(ctx context.Context, id string) (assistant.Item, error) {
	if id == "" {
		return assistant.Item{}, assistant.ErrItemNotFound
	}
	points, err := l.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: l.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeyword(KeyItemID, id)},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return assistant.Item{}, fmt.Errorf("scrolling %s for %s: %w", l.collection, id, err)
	}
	if len(points) == 0 || points[0] == nil {
		return assistant.Item{}, assistant.ErrItemNotFound
	}
	return itemFromPayload(points[0].GetPayload()), nil
}

// Close releases the gRPC connection.
func (l *QdrantLookup) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}

func itemFromPayload(payload map[string]*qdrant.Value) assistant.Item {
	item := assistant.Item{
		ImageURL:    payload[KeyImage].GetStringValue(),
		Description: payload[KeyDescription].GetStringValue(),
	}
	switch v := payload[KeyPrice].GetKind().(type) {
	case *qdrant.Value_DoubleValue:
		price := v.DoubleValue
		item.Price = &price
	case *qdrant.Value_IntegerValue:
		price := float64(v.IntegerValue)
		item.Price = &price
	}
	return item
}
