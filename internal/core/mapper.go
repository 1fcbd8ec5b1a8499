package core

// Remote column ids the mapper writes.
const (
	ColumnName    = "name"
	ColumnText    = "text"
	ColumnNumbers = "numbers"
	ColumnStatus  = "status"
	ColumnDate    = "date"
)

// MapRow converts a row into the store's column-value payload.
//
// Position 1 feeds the text column, 2 the numbers column (raw, no coercion),
// 3 the status label and 4 the date. Positions the row does not have are
// left out of the payload rather than sent empty. The display name is not
// part of the payload; callers add it for updates.
func MapRow(row Row) FieldValues {
	values := make(FieldValues, 4)
	if v, ok := row.Field(ColKey); ok {
		values[ColumnText] = v
	}
	if v, ok := row.Field(ColNumber); ok {
		values[ColumnNumbers] = v
	}
	if v, ok := row.Field(ColStatus); ok {
		values[ColumnStatus] = map[string]string{"label": v}
	}
	if v, ok := row.Field(ColDate); ok {
		values[ColumnDate] = map[string]string{"date": v}
	}
	return values
}

// mapUpdate is MapRow plus the display name, which updates carry as a column.
func mapUpdate(row Row) FieldValues {
	values := MapRow(row)
	values[ColumnName] = row.Name()
	return values
}
