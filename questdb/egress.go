// Package questdb writes pumped events to QuestDB over the InfluxDB line protocol.
package questdb

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"
	"github.com/squadracorsepolito/acmenet/internal"
	"github.com/squadracorsepolito/acmenet/pump"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNotInitialized = errors.New("questdb: egress not initialized")
	ErrInvalidColumn  = errors.New("questdb: invalid column")
	ErrEmptyTable     = errors.New("questdb: empty table name")
)

// Egress is a [pump.Handler] that maps every event to rows
// and sends them to QuestDB, flushing once per batch.
type Egress[T any] struct {
	tel *internal.Telemetry
	cfg *Config

	mapper RowMapper[T]

	mux    sync.Mutex
	sender qdb.LineSender

	// Telemetry metrics
	insertedRows  metric.Int64Counter
	skippedEvents metric.Int64Counter
}

var _ pump.Handler[any] = (*Egress[any])(nil)

// NewEgress returns an egress using mapper. A nil cfg selects [NewDefaultConfig].
// It panics if mapper is nil.
func NewEgress[T any](name string, mapper RowMapper[T], cfg *Config) *Egress[T] {
	if mapper == nil {
		panic("mapper is nil")
	}

	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	e := &Egress[T]{
		tel: internal.NewTelemetry("questdb", name),
		cfg: cfg,

		mapper: mapper,
	}

	e.insertedRows = e.tel.NewCounter("inserted_rows")
	e.skippedEvents = e.tel.NewCounter("skipped_events")

	return e
}

// Init opens the HTTP line sender.
func (e *Egress[T]) Init(ctx context.Context) error {
	sender, err := qdb.NewLineSender(ctx,
		qdb.WithHttp(),
		qdb.WithAddress(e.cfg.Address),
		qdb.WithAutoFlushRows(e.cfg.AutoFlushRows),
		qdb.WithRetryTimeout(e.cfg.RetryTimeout),
	)
	if err != nil {
		return fmt.Errorf("questdb: open sender: %w", err)
	}

	e.mux.Lock()
	e.sender = sender
	e.mux.Unlock()

	e.tel.LogInfo("sender opened", "address", e.cfg.Address)

	return nil
}

func (e *Egress[T]) Handle(ctx context.Context, ev T) error {
	return e.HandleBatch(ctx, []T{ev})
}

// HandleBatch writes the rows of every event and flushes them.
// Events whose mapping or row validation fails are skipped as a whole
// and reported in the returned error; the other events are still delivered.
func (e *Egress[T]) HandleBatch(ctx context.Context, evs []T) error {
	ctx, span := e.tel.NewTrace(ctx, "deliver QuestDB rows")
	defer span.End()

	e.mux.Lock()
	defer e.mux.Unlock()

	if e.sender == nil {
		return ErrNotInitialized
	}

	var evErrs []error
	insRows := int64(0)

	for _, ev := range evs {
		rows, err := e.mapper.MapRows(ev)
		if err == nil {
			err = checkRows(rows)
		}
		if err != nil {
			e.skippedEvents.Add(ctx, 1)
			evErrs = append(evErrs, err)
			continue
		}

		for _, row := range rows {
			if err := writeRow(ctx, e.sender, row); err != nil {
				evErrs = append(evErrs, err)
				continue
			}
			insRows++
		}
	}

	if err := e.sender.Flush(ctx); err != nil {
		return fmt.Errorf("questdb: flush: %w", err)
	}

	span.SetAttributes(attribute.Int64("inserted_rows", insRows))
	e.insertedRows.Add(ctx, insRows)

	return errors.Join(evErrs...)
}

func checkRows(rows []*Row) error {
	for _, row := range rows {
		if err := checkRow(row); err != nil {
			return err
		}
	}
	return nil
}

func checkRow(row *Row) error {
	if row.Table == "" {
		return ErrEmptyTable
	}

	for _, col := range row.Columns {
		ok := false
		switch col.Type {
		case ColumnTypeBool:
			_, ok = col.Value.(bool)
		case ColumnTypeInt:
			_, ok = col.Value.(int64)
		case ColumnTypeLong:
			var v *big.Int
			v, ok = col.Value.(*big.Int)
			ok = ok && v != nil
		case ColumnTypeFloat:
			_, ok = col.Value.(float64)
		case ColumnTypeString:
			_, ok = col.Value.(string)
		case ColumnTypeTimestamp:
			_, ok = col.Value.(time.Time)
		}

		if !ok {
			return fmt.Errorf("%w: %s of type %s holds %T", ErrInvalidColumn, col.Name, col.Type, col.Value)
		}
	}

	return nil
}

// writeRow expects a row already validated by checkRow.
func writeRow(ctx context.Context, sender qdb.LineSender, row *Row) error {
	query := sender.Table(row.Table)

	for _, symbol := range row.Symbols {
		query.Symbol(symbol.Name, symbol.Value)
	}

	for _, col := range row.Columns {
		switch col.Type {
		case ColumnTypeBool:
			query.BoolColumn(col.Name, col.Value.(bool))
		case ColumnTypeInt:
			query.Int64Column(col.Name, col.Value.(int64))
		case ColumnTypeLong:
			query.Long256Column(col.Name, col.Value.(*big.Int))
		case ColumnTypeFloat:
			query.Float64Column(col.Name, col.Value.(float64))
		case ColumnTypeString:
			query.StringColumn(col.Name, col.Value.(string))
		case ColumnTypeTimestamp:
			query.TimestampColumn(col.Name, col.Value.(time.Time))
		}
	}

	if row.Timestamp.IsZero() {
		return query.AtNow(ctx)
	}
	return query.At(ctx, row.Timestamp)
}

// Close flushes what is pending and closes the sender.
func (e *Egress[T]) Close(ctx context.Context) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	if e.sender == nil {
		return nil
	}

	err := e.sender.Close(ctx)
	e.sender = nil

	return err
}
