package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/shopagent/assistant"
)

type fakeScroller struct {
	points map[string]map[string]any
	err    error
	reqs   []*qdrant.ScrollPoints
}

func (f *fakeScroller) Scroll(_ context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	id := req.GetFilter().GetMust()[0].GetField().GetMatch().GetKeyword()
	payload, ok := f.points[id]
	if !ok {
		return nil, nil
	}
	return []*qdrant.RetrievedPoint{{Payload: qdrant.NewValueMap(payload)}}, nil
}

func TestLookupItem_ReadsPayload(t *testing.T) {
	fake := &fakeScroller{points: map[string]map[string]any{
		"B0JACKET": {
			KeyItemID:      "B0JACKET",
			KeyImage:       "https://img.example/jacket.jpg",
			KeyPrice:       89.5,
			KeyDescription: "Waterproof shell",
		},
	}}
	l := newLookup(fake, "")

	item, err := l.LookupItem(context.Background(), "B0JACKET")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/jacket.jpg", item.ImageURL)
	assert.Equal(t, "Waterproof shell", item.Description)
	require.NotNil(t, item.Price)
	assert.InDelta(t, 89.5, *item.Price, 1e-9)

	require.Len(t, fake.reqs, 1)
	req := fake.reqs[0]
	assert.Equal(t, DefaultCollection, req.GetCollectionName())
	assert.Equal(t, uint32(1), req.GetLimit())
	assert.Equal(t, KeyItemID, req.GetFilter().GetMust()[0].GetField().GetKey())
	assert.True(t, req.GetWithPayload().GetEnable())
}

func TestLookupItem_IntegerAndMissingPrice(t *testing.T) {
	fake := &fakeScroller{points: map[string]map[string]any{
		"int":  {KeyImage: "a.jpg", KeyPrice: int64(20)},
		"none": {KeyImage: "b.jpg"},
	}}
	l := newLookup(fake, "items")

	item, err := l.LookupItem(context.Background(), "int")
	require.NoError(t, err)
	require.NotNil(t, item.Price)
	assert.InDelta(t, 20.0, *item.Price, 1e-9)

	item, err = l.LookupItem(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, item.Price)
	assert.Equal(t, "items", fake.reqs[len(fake.reqs)-1].GetCollectionName())
}

func TestLookupItem_NotFound(t *testing.T) {
	l := newLookup(&fakeScroller{}, "")

	_, err := l.LookupItem(context.Background(), "missing")
	assert.ErrorIs(t, err, assistant.ErrItemNotFound)

	_, err = l.LookupItem(context.Background(), "")
	assert.ErrorIs(t, err, assistant.ErrItemNotFound)
}

func TestLookupItem_ScrollError(t *testing.T) {
	boom := errors.New("unavailable")
	l := newLookup(&fakeScroller{err: boom}, "")

	_, err := l.LookupItem(context.Background(), "B0JACKET")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, assistant.ErrItemNotFound)
}

func TestNewQdrantLookup_RequiresHost(t *testing.T) {
	_, err := NewQdrantLookup(Config{})
	assert.Error(t, err)
}

func TestClose_WithoutConnection(t *testing.T) {
	assert.NoError(t, newLookup(&fakeScroller{}, "").Close())
}
