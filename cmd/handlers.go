package main

import (
	"context"

	"github.com/squadracorsepolito/acmenet/ingress"
	"github.com/squadracorsepolito/acmenet/internal"
	"github.com/squadracorsepolito/acmenet/pump"
	"github.com/squadracorsepolito/acmenet/questdb"
)

func newRecordMapper(table string) questdb.RowMapper[*ingress.Message] {
	return questdb.RowMapperFunc[*ingress.Message](func(msg *ingress.Message) ([]*questdb.Row, error) {
		row := questdb.NewRow(table, msg.ReceiveTime)

		row.AddSymbol(questdb.NewSymbol("acceptor", msg.Acceptor))
		row.AddColumns(
			questdb.NewStringColumn("remote", msg.Remote),
			questdb.NewIntColumn("size", int64(len(msg.Payload))),
			questdb.NewStringColumn("payload", string(msg.Payload)),
		)

		return []*questdb.Row{row}, nil
	})
}

func newLogHandler() pump.Handler[*ingress.Message] {
	l := internal.NewLogger("handler", "log")

	return pump.HandlerFuncs[*ingress.Message]{
		OnBatch: func(_ context.Context, msgs []*ingress.Message) error {
			for _, msg := range msgs {
				l.Debug("record", "acceptor", msg.Acceptor, "remote", msg.Remote, "payload", string(msg.Payload))
			}
			return nil
		},
	}
}
