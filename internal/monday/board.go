package monday

import (
	"context"

	"github.com/JonMunkholm/boardsync/internal/core"
)

// Board adapts a Client to core.RemoteStore, reading natural keys from a
// single column.
type Board struct {
	client    *Client
	keyColumn string
}

var _ core.RemoteStore = (*Board)(nil)

// NewBoard returns a store keyed on keyColumn ("text" when empty).
func NewBoard(client *Client, keyColumn string) *Board {
	if keyColumn == "" {
		keyColumn = core.ColumnText
	}
	return &Board{client: client, keyColumn: keyColumn}
}

func (b *Board) Records(ctx context.Context, collection core.CollectionID) ([]core.RemoteRecord, error) {
	items, err := b.client.Items(ctx, int64(collection), b.keyColumn)
	if err != nil {
		return nil, err
	}
	records := make([]core.RemoteRecord, len(items))
	for i, it := range items {
		records[i] = core.RemoteRecord{ID: it.ID, NaturalKey: it.Key}
	}
	return records, nil
}

func (b *Board) Create(ctx context.Context, collection core.CollectionID, name string, values core.FieldValues) (int64, error) {
	return b.client.CreateItem(ctx, int64(collection), name, values)
}

func (b *Board) Update(ctx context.Context, collection core.CollectionID, itemID int64, values core.FieldValues) error {
	return b.client.ChangeColumnValues(ctx, int64(collection), itemID, values)
}
