package audit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/metrics"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
)

const defaultBuffer = 256

// Recorder writes decision records off the trade path. Enqueue never blocks:
// the buffered channel absorbs bursts and a full buffer spills the insert to
// its own goroutine.
type Recorder struct {
	Repo   repository.Repository
	Logger *zap.Logger

	ch     chan *models.DecisionRecord
	spills sync.WaitGroup
	once   sync.Once
}

func NewRecorder(repo repository.Repository, logger *zap.Logger) *Recorder {
	return &Recorder{
		Repo:   repo,
		Logger: logger,
		ch:     make(chan *models.DecisionRecord, defaultBuffer),
	}
}

func (r *Recorder) init() {
	r.once.Do(func() {
		if r.ch == nil {
			r.ch = make(chan *models.DecisionRecord, defaultBuffer)
		}
	})
}

// Enqueue hands a record to the background writer.
func (r *Recorder) Enqueue(rec *models.DecisionRecord) {
	if r == nil || rec == nil {
		return
	}
	r.init()
	select {
	case r.ch <- rec:
		metrics.AuditQueueDepth.Set(float64(len(r.ch)))
	default:
		metrics.AuditSpills.Inc()
		if r.Logger != nil {
			r.Logger.Warn("audit: buffer full, spilling insert",
				zap.String("instrument", rec.Instrument),
				zap.String("kind", rec.Kind))
		}
		r.spills.Add(1)
		go func() {
			defer r.spills.Done()
			r.write(context.Background(), rec)
		}()
	}
}

// Run drains the buffer until the context is canceled, then flushes what
// remains. Intended as a single background goroutine.
func (r *Recorder) Run(ctx context.Context) {
	if r == nil {
		return
	}
	r.init()
	for {
		select {
		case rec := <-r.ch:
			r.write(ctx, rec)
			metrics.AuditQueueDepth.Set(float64(len(r.ch)))
		case <-ctx.Done():
			r.flush()
			return
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case rec := <-r.ch:
			// The run context is gone; finish writes on a fresh one.
			r.write(context.Background(), rec)
		default:
			r.spills.Wait()
			metrics.AuditQueueDepth.Set(0)
			if r.Logger != nil {
				r.Logger.Info("audit: recorder drained")
			}
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec *models.DecisionRecord) {
	if r.Repo == nil || rec == nil {
		return
	}
	if err := r.Repo.InsertDecisionRecord(ctx, rec); err != nil && r.Logger != nil {
		r.Logger.Error("audit: insert failed",
			zap.Error(err),
			zap.String("instrument", rec.Instrument),
			zap.String("timeframe", rec.Timeframe),
			zap.String("kind", rec.Kind),
			zap.String("outcome", rec.Outcome))
	}
}
