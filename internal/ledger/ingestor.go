package ledger

import (
	"context"
	"time"

	"github.com/nulzo/llm-relay/internal/store"
	"github.com/nulzo/llm-relay/internal/store/model"
	"go.uber.org/zap"
)

// Ingestor handles the asynchronous persistence of usage records. Recording
// never blocks the dispatch path: when the buffer is full the record is
// dropped and a warning logged.
type Ingestor interface {
	Record(rec *model.UsageRecord)
	Start(ctx context.Context)
	Stop()
}

type ingestor struct {
	logger    *zap.Logger
	repo      store.Repository
	recChan   chan *model.UsageRecord
	batchSize int
	flushTime time.Duration
}

func NewIngestor(logger *zap.Logger, repo store.Repository) Ingestor {
	return &ingestor{
		logger:    logger,
		repo:      repo,
		recChan:   make(chan *model.UsageRecord, 10000),
		batchSize: 50,
		flushTime: 5 * time.Second,
	}
}

func (i *ingestor) Record(rec *model.UsageRecord) {
	select {
	case i.recChan <- rec:
	default:
		i.logger.Warn("Usage buffer full, dropping record",
			zap.String("provider", rec.ProviderName),
			zap.String("record_id", rec.ID),
		)
	}
}

func (i *ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

// Stop closes the intake channel; the worker flushes what remains before
// exiting.
func (i *ingestor) Stop() {
	close(i.recChan)
}

func (i *ingestor) worker(ctx context.Context) {
	batch := make([]model.UsageRecord, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := i.repo.Usage().InsertBatch(context.Background(), batch); err != nil {
			i.logger.Error("Failed to persist usage batch",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-i.recChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, *rec)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
