package questdb

import (
	"math/big"
	"time"
)

type ColumnType int

const (
	ColumnTypeBool ColumnType = iota
	ColumnTypeInt
	ColumnTypeLong
	ColumnTypeFloat
	ColumnTypeString
	ColumnTypeTimestamp
)

func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeBool:
		return "bool"
	case ColumnTypeInt:
		return "int"
	case ColumnTypeLong:
		return "long"
	case ColumnTypeFloat:
		return "float"
	case ColumnTypeString:
		return "string"
	case ColumnTypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

type Column struct {
	Name  string
	Type  ColumnType
	Value any
}

func newColumn(name string, typ ColumnType, value any) *Column {
	return &Column{
		Name:  name,
		Type:  typ,
		Value: value,
	}
}

func NewBoolColumn(name string, value bool) *Column {
	return newColumn(name, ColumnTypeBool, value)
}

func NewIntColumn(name string, value int64) *Column {
	return newColumn(name, ColumnTypeInt, value)
}

func NewLongColumn(name string, value *big.Int) *Column {
	return newColumn(name, ColumnTypeLong, value)
}

func NewFloatColumn(name string, value float64) *Column {
	return newColumn(name, ColumnTypeFloat, value)
}

func NewStringColumn(name string, value string) *Column {
	return newColumn(name, ColumnTypeString, value)
}

func NewTimestampColumn(name string, value time.Time) *Column {
	return newColumn(name, ColumnTypeTimestamp, value)
}

type Symbol struct {
	Name  string
	Value string
}

func NewSymbol(name string, value string) *Symbol {
	return &Symbol{
		Name:  name,
		Value: value,
	}
}

// Row is a single line written to a QuestDB table.
// A zero Timestamp lets the server assign the ingestion time.
type Row struct {
	Table     string
	Timestamp time.Time
	Symbols   []*Symbol
	Columns   []*Column
}

func NewRow(table string, timestamp time.Time) *Row {
	return &Row{
		Table:     table,
		Timestamp: timestamp,
	}
}

func (r *Row) AddSymbol(symbol *Symbol) {
	if symbol != nil {
		r.Symbols = append(r.Symbols, symbol)
	}
}

func (r *Row) AddColumn(column *Column) {
	if column != nil {
		r.Columns = append(r.Columns, column)
	}
}

func (r *Row) AddColumns(columns ...*Column) {
	for _, col := range columns {
		r.AddColumn(col)
	}
}

// RowMapper turns an event into the rows describing it.
type RowMapper[T any] interface {
	MapRows(ev T) ([]*Row, error)
}

// RowMapperFunc adapts a function to the [RowMapper] interface.
type RowMapperFunc[T any] func(ev T) ([]*Row, error)

func (f RowMapperFunc[T]) MapRows(ev T) ([]*Row, error) {
	return f(ev)
}
