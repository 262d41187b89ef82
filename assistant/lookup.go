package assistant

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrItemNotFound is returned by an ItemLookup for unknown ids.
var ErrItemNotFound = errors.New("item not found")

// Item is the display data of a catalog item.
type Item struct {
	ImageURL    string
	Price       *float64
	Description string
}

// ItemLookup resolves referenced item ids after a run.
type ItemLookup interface {
	LookupItem(ctx context.Context, id string) (Item, error)
}

// UsedContext is one item shown next to the final answer.
type UsedContext struct {
	ImageURL    string   `json:"image_url"`
	Price       *float64 `json:"price"`
	Description string   `json:"description"`
}

// usedContext resolves references in order. Items without an image, unknown
// ids and lookup failures are skipped.
func usedContext(ctx context.Context, lookup ItemLookup, refs []Reference, logger *zap.Logger) []UsedContext {
	used := make([]UsedContext, 0, len(refs))
	if lookup == nil {
		return used
	}
	for _, ref := range refs {
		item, err := lookup.LookupItem(ctx, ref.ID)
		if err != nil {
			if !errors.Is(err, ErrItemNotFound) {
				logger.Warn("item lookup failed", zap.String("item_id", ref.ID), zap.Error(err))
			}
			continue
		}
		if item.ImageURL == "" {
			continue
		}
		desc := ref.Description
		if desc == "" {
			desc = item.Description
		}
		used = append(used, UsedContext{ImageURL: item.ImageURL, Price: item.Price, Description: desc})
	}
	return used
}

// StaticLookup is an in-memory ItemLookup keyed by item id.
type StaticLookup map[string]Item

// LookupItem implements ItemLookup.
func (l StaticLookup) LookupItem(_ context.Context, id string) (Item, error) {
	item, ok := l[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}
