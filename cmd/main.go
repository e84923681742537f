package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/squadracorsepolito/acmenet"
	"github.com/squadracorsepolito/acmenet/acceptor"
	"github.com/squadracorsepolito/acmenet/connector"
	"github.com/squadracorsepolito/acmenet/examples/telemetry"
	"github.com/squadracorsepolito/acmenet/ingress"
	"github.com/squadracorsepolito/acmenet/internal"
	"github.com/squadracorsepolito/acmenet/monitor"
	"github.com/squadracorsepolito/acmenet/multiplex"
	"github.com/squadracorsepolito/acmenet/pump"
	"github.com/squadracorsepolito/acmenet/questdb"
	"github.com/squadracorsepolito/acmenet/ring"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	l := internal.NewLogger("main", "acmenet")

	if err := run(*configPath, l); err != nil {
		l.Error("server failed", err)
		os.Exit(1)
	}
}

func run(configPath string, l *internal.Logger) error {
	cfg := acmenet.NewDefaultConfig()
	if configPath != "" {
		loaded, err := acmenet.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	internal.SetLogLevel(level)

	ctx, cancelCtx := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancelCtx()

	if cfg.Telemetry.Enabled {
		providers, err := telemetry.Init(ctx, telemetry.NewDefaultConfig(cfg.Telemetry.ServiceName))
		if err != nil {
			return err
		}
		defer func() {
			if err := providers.Shutdown(context.Background()); err != nil {
				l.Error("failed to shut down telemetry", err)
			}
		}()
	}

	// Event channel shared by every connection
	buf := ring.New[*ingress.Message](&ring.Config{
		Capacity:  cfg.Channel.Capacity,
		Unbounded: cfg.Channel.Unbounded,
		GrowBy:    cfg.Channel.GrowBy,
	})
	records := connector.NewEventChannel("records", buf)

	handler, closeHandler, err := newRecordHandler(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeHandler()

	pipeline := acmenet.NewPipeline("acmenet")

	// Acceptors first, so that they stop before the streams they feed
	streams := make([]*ingress.Stream, 0, len(cfg.Listeners))
	ingressCfg := &ingress.Config{
		MaxRecordSize: cfg.Ingress.MaxRecordSize,
		IdleTimeout:   cfg.Ingress.IdleTimeout,
	}
	for _, lnCfg := range cfg.Listeners {
		streams = append(streams, ingress.NewStream(lnCfg.Name, connector.NewBlockingSink[*ingress.Message](records, records), ingressCfg))
	}

	acceptorStages, err := newAcceptorStages(ctx, cfg, streams)
	if err != nil {
		return err
	}
	for _, stage := range acceptorStages {
		pipeline.AddStage(stage)
	}

	for _, stream := range streams {
		pipeline.AddStage(stream)
	}

	runnerCfg := pump.NewDefaultRunnerConfig()
	runnerCfg.IdleBackoff = cfg.Pump.IdleBackoff
	runnerCfg.LogStats = cfg.Pump.LogStats

	for idx := range cfg.Pump.Runners {
		name := fmt.Sprintf("records-%d", idx)
		source := connector.NewBlockingSource[*ingress.Message](records, records)
		p := pump.NewPump(name, source, handler, &pump.Config{BatchSize: cfg.Pump.BatchSize})

		pipeline.AddStage(pump.NewRunner(name, runnerCfg, p))
	}

	if err := pipeline.Init(ctx); err != nil {
		return err
	}

	pipeline.Run(ctx)
	l.Info("server started", "mode", string(cfg.Mode), "listeners", len(cfg.Listeners))

	<-ctx.Done()

	l.Info("shutting down")
	pipeline.Stop()

	return nil
}

func newRecordHandler(ctx context.Context, cfg *acmenet.Config) (pump.Handler[*ingress.Message], func(), error) {
	if !cfg.QuestDB.Enabled {
		return newLogHandler(), func() {}, nil
	}

	qdbCfg := questdb.NewDefaultConfig()
	qdbCfg.Address = cfg.QuestDB.Address

	egress := questdb.NewEgress("records", newRecordMapper(cfg.QuestDB.Table), qdbCfg)
	if err := egress.Init(ctx); err != nil {
		return nil, nil, err
	}

	closeEgress := func() {
		if err := egress.Close(context.Background()); err != nil {
			internal.NewLogger("questdb", "records").Error("failed to close egress", err)
		}
	}

	return egress, closeEgress, nil
}

func newAcceptorStages(ctx context.Context, cfg *acmenet.Config, streams []*ingress.Stream) ([]acmenet.Stage, error) {
	mon := monitor.NewLog("monitor", string(cfg.Mode))

	switch cfg.Mode {
	case acmenet.ModeBlocking:
		acceptorCfg := acceptor.NewDefaultConfig()
		acceptorCfg.Monitor = mon

		stages := make([]acmenet.Stage, 0, len(cfg.Listeners))
		for idx, lnCfg := range cfg.Listeners {
			a, err := acceptor.Listen(ctx, lnCfg.Name, lnCfg.Address, streams[idx], acceptorCfg)
			if err != nil {
				for _, stage := range stages {
					stage.Stop()
				}
				return nil, err
			}
			stages = append(stages, a)
		}

		return stages, nil

	case acmenet.ModeMultiplexed:
		managerCfg := multiplex.NewDefaultConfig()
		managerCfg.MaxEvents = cfg.Multiplex.MaxEvents
		managerCfg.PollTimeout = cfg.Multiplex.PollTimeout
		managerCfg.CloseListenersOnShutdown = true
		managerCfg.Monitor = mon

		manager, err := multiplex.NewManager("listeners", managerCfg)
		if err != nil {
			return nil, err
		}

		lc := net.ListenConfig{}
		for idx, lnCfg := range cfg.Listeners {
			ln, err := lc.Listen(ctx, "tcp", lnCfg.Address)
			if err == nil {
				err = manager.Connect(lnCfg.Name, ln, streams[idx])
				if err != nil {
					ln.Close()
				}
			}

			if err != nil {
				manager.Stop()
				return nil, err
			}
		}

		return []acmenet.Stage{manager}, nil
	}

	return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
}
