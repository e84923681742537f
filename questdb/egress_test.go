package questdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reading struct {
	source string
	value  int64
	ok     bool
	broken bool
}

func readingMapper() RowMapper[reading] {
	return RowMapperFunc[reading](func(ev reading) ([]*Row, error) {
		if ev.source == "" {
			return nil, errors.New("reading without source")
		}

		row := NewRow("readings", time.Unix(1, 0))
		row.AddSymbol(NewSymbol("source", ev.source))
		row.AddColumns(
			NewIntColumn("value", ev.value),
			NewBoolColumn("ok", ev.ok),
		)

		rows := []*Row{row}
		if ev.broken {
			extra := NewRow("readings", time.Unix(2, 0))
			extra.AddSymbol(NewSymbol("source", ev.source))
			extra.AddColumn(&Column{Name: "value", Type: ColumnTypeInt, Value: "not an int"})
			rows = append(rows, extra)
		}

		return rows, nil
	})
}

func Test_CheckRow(t *testing.T) {
	assert := assert.New(t)

	row := NewRow("t", time.Time{})
	row.AddColumns(
		NewBoolColumn("b", true),
		NewIntColumn("i", 1),
		NewLongColumn("l", big.NewInt(2)),
		NewFloatColumn("f", 3.5),
		NewStringColumn("s", "x"),
		NewTimestampColumn("ts", time.Now()),
		nil,
	)
	assert.Len(row.Columns, 6)
	assert.NoError(checkRow(row))

	row.AddColumn(&Column{Name: "bad", Type: ColumnTypeInt, Value: "not an int"})
	assert.ErrorIs(checkRow(row), ErrInvalidColumn)

	assert.ErrorIs(checkRow(NewRow("t", time.Time{}).withColumn(NewLongColumn("l", nil))), ErrInvalidColumn)
	assert.ErrorIs(checkRow(NewRow("", time.Time{})), ErrEmptyTable)
}

func (r *Row) withColumn(col *Column) *Row {
	r.AddColumn(col)
	return r
}

func Test_Egress_NotInitialized(t *testing.T) {
	assert := assert.New(t)

	e := NewEgress("uninitialized", readingMapper(), nil)

	assert.ErrorIs(e.Handle(context.Background(), reading{source: "a"}), ErrNotInitialized)
	assert.NoError(e.Close(context.Background()))
}

func Test_NewEgress_NilMapper(t *testing.T) {
	assert.Panics(t, func() { NewEgress[reading]("nil", nil, nil) })
}

type ilpServer struct {
	*httptest.Server

	mux    sync.Mutex
	bodies []string
}

func newILPServer(t *testing.T) *ilpServer {
	s := &ilpServer{}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/write" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.mux.Lock()
		s.bodies = append(s.bodies, string(body))
		s.mux.Unlock()

		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(s.Close)

	return s
}

func (s *ilpServer) payload() string {
	s.mux.Lock()
	defer s.mux.Unlock()

	return strings.Join(s.bodies, "")
}

func Test_Egress_HandleBatch(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := newILPServer(t)

	cfg := NewDefaultConfig()
	cfg.Address = srv.Listener.Addr().String()

	e := NewEgress("readings", readingMapper(), cfg)
	require.NoError(e.Init(ctx))
	defer e.Close(ctx)

	err := e.HandleBatch(ctx, []reading{
		{source: "alpha", value: 42, ok: true},
		{source: ""},
		{source: "beta", value: 7},
	})
	assert.EqualError(err, "reading without source")

	payload := srv.payload()
	assert.Contains(payload, "readings,source=alpha")
	assert.Contains(payload, "value=42i")
	assert.Contains(payload, "readings,source=beta")
	assert.Equal(2, strings.Count(payload, "readings,"), fmt.Sprintf("payload: %q", payload))
}

func Test_Egress_HandleBatch_InvalidRowSkipsEvent(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := newILPServer(t)

	cfg := NewDefaultConfig()
	cfg.Address = srv.Listener.Addr().String()

	e := NewEgress("readings", readingMapper(), cfg)
	require.NoError(e.Init(ctx))
	defer e.Close(ctx)

	err := e.HandleBatch(ctx, []reading{
		{source: "alpha", value: 1},
		{source: "gamma", value: 2, broken: true},
		{source: "beta", value: 3},
	})
	assert.ErrorIs(err, ErrInvalidColumn)

	// the valid row of the broken event is not written either
	payload := srv.payload()
	assert.Contains(payload, "readings,source=alpha")
	assert.Contains(payload, "readings,source=beta")
	assert.NotContains(payload, "source=gamma")
	assert.Equal(2, strings.Count(payload, "readings,"), fmt.Sprintf("payload: %q", payload))
}
