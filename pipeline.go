package acmenet

import (
	"context"
	"sync"

	"github.com/squadracorsepolito/acmenet/internal"
)

// Stage is a long running component of a [Pipeline].
type Stage interface {
	Init(ctx context.Context) error
	Run(ctx context.Context) error
	Stop()
}

// Pipeline initializes, runs and stops a set of stages.
// Stages are stopped in the order they were added,
// so producers should be added before their consumers.
type Pipeline struct {
	tel *internal.Telemetry

	mux       sync.Mutex
	stages    []Stage
	isRunning bool

	wg *sync.WaitGroup
}

func NewPipeline(name string) *Pipeline {
	return &Pipeline{
		tel: internal.NewTelemetry("pipeline", name),

		stages: []Stage{},

		wg:        &sync.WaitGroup{},
		isRunning: false,
	}
}

// AddStage appends stage. It is ignored once the pipeline is running.
func (p *Pipeline) AddStage(stage Stage) {
	p.mux.Lock()
	defer p.mux.Unlock()

	if p.isRunning {
		return
	}

	p.stages = append(p.stages, stage)
}

func (p *Pipeline) Init(ctx context.Context) error {
	for _, stage := range p.stages {
		if err := stage.Init(ctx); err != nil {
			return err
		}
	}

	p.tel.LogInfo("initialized", "stages", len(p.stages))

	return nil
}

// Run starts every stage on its own goroutine and returns.
func (p *Pipeline) Run(ctx context.Context) {
	p.mux.Lock()
	p.isRunning = true
	stages := p.stages
	p.mux.Unlock()

	p.wg.Add(len(stages))

	for idx, stage := range stages {
		go func() {
			defer p.wg.Done()

			if err := stage.Run(ctx); err != nil {
				p.tel.LogError("stage failed", err, "stage", idx)
			}
		}()
	}
}

// Stop stops every stage and waits for their Run to return.
func (p *Pipeline) Stop() {
	p.mux.Lock()
	stages := p.stages
	p.mux.Unlock()

	for _, stage := range stages {
		stage.Stop()
	}

	p.wg.Wait()

	p.tel.LogInfo("stopped")
}
