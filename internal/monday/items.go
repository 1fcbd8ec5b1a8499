package monday

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// PageSize is the number of items requested per page.
const PageSize = 500

// Item is a board item reduced to its id and one column's text.
type Item struct {
	ID  int64
	Key string
}

const itemsQuery = `query ($board: [ID!], $columns: [String!], $limit: Int!) {
  boards(ids: $board) {
    items_page(limit: $limit) {
      cursor
      items { id column_values(ids: $columns) { id value } }
    }
  }
}`

const nextItemsQuery = `query ($cursor: String!, $columns: [String!], $limit: Int!) {
  next_items_page(cursor: $cursor, limit: $limit) {
    cursor
    items { id column_values(ids: $columns) { id value } }
  }
}`

const createItemMutation = `mutation ($board: ID!, $name: String!, $values: JSON) {
  create_item(board_id: $board, item_name: $name, column_values: $values, create_labels_if_missing: true) { id }
}`

const changeValuesMutation = `mutation ($board: ID!, $item: ID!, $values: JSON!) {
  change_multiple_column_values(board_id: $board, item_id: $item, column_values: $values, create_labels_if_missing: true) { id }
}`

type itemsPage struct {
	Cursor *string `json:"cursor"`
	Items  []struct {
		ID           string `json:"id"`
		ColumnValues []struct {
			ID    string  `json:"id"`
			Value *string `json:"value"`
		} `json:"column_values"`
	} `json:"items"`
}

// Items returns every item of the board with the value of keyColumn. Boards
// up to PageSize items are read in a single request.
func (c *Client) Items(ctx context.Context, boardID int64, keyColumn string) ([]Item, error) {
	var first struct {
		Boards []struct {
			ItemsPage itemsPage `json:"items_page"`
		} `json:"boards"`
	}
	vars := map[string]any{
		"board":   []string{strconv.FormatInt(boardID, 10)},
		"columns": []string{keyColumn},
		"limit":   PageSize,
	}
	if err := c.Do(ctx, "items", itemsQuery, vars, &first); err != nil {
		return nil, err
	}
	if len(first.Boards) == 0 {
		return nil, &APIError{Op: "items", Message: fmt.Sprintf("board not found: %d", boardID)}
	}

	page := first.Boards[0].ItemsPage
	var items []Item
	for {
		decoded, err := page.decode(keyColumn)
		if err != nil {
			return nil, err
		}
		items = append(items, decoded...)

		if page.Cursor == nil || *page.Cursor == "" {
			return items, nil
		}

		var next struct {
			NextItemsPage itemsPage `json:"next_items_page"`
		}
		vars := map[string]any{"cursor": *page.Cursor, "columns": []string{keyColumn}, "limit": PageSize}
		if err := c.Do(ctx, "items", nextItemsQuery, vars, &next); err != nil {
			return nil, err
		}
		page = next.NextItemsPage
	}
}

func (p itemsPage) decode(keyColumn string) ([]Item, error) {
	items := make([]Item, 0, len(p.Items))
	for _, it := range p.Items {
		id, err := strconv.ParseInt(it.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("monday: items: bad item id %q: %w", it.ID, err)
		}
		item := Item{ID: id}
		for _, cv := range it.ColumnValues {
			if cv.ID == keyColumn {
				item.Key = columnText(cv.Value)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// columnText decodes a column value, which the API returns JSON-encoded
// (a text column holding K1 arrives as "\"K1\""). Null means empty.
func columnText(raw *string) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(*raw), &s); err == nil {
		return s
	}
	return *raw
}

// CreateItem creates an item with the given column values and returns its id.
func (c *Client) CreateItem(ctx context.Context, boardID int64, name string, values map[string]any) (int64, error) {
	encoded, err := json.Marshal(values)
	if err != nil {
		return 0, fmt.Errorf("monday: create_item: encode values: %w", err)
	}

	var out struct {
		CreateItem struct {
			ID string `json:"id"`
		} `json:"create_item"`
	}
	vars := map[string]any{
		"board":  strconv.FormatInt(boardID, 10),
		"name":   name,
		"values": string(encoded),
	}
	if err := c.Do(ctx, "create_item", createItemMutation, vars, &out); err != nil {
		return 0, err
	}

	id, err := strconv.ParseInt(out.CreateItem.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("monday: create_item: bad item id %q: %w", out.CreateItem.ID, err)
	}
	return id, nil
}

// ChangeColumnValues overwrites column values (including "name") on an item.
func (c *Client) ChangeColumnValues(ctx context.Context, boardID, itemID int64, values map[string]any) error {
	encoded, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("monday: change_multiple_column_values: encode values: %w", err)
	}

	vars := map[string]any{
		"board":  strconv.FormatInt(boardID, 10),
		"item":   strconv.FormatInt(itemID, 10),
		"values": string(encoded),
	}
	return c.Do(ctx, "change_multiple_column_values", changeValuesMutation, vars, nil)
}
