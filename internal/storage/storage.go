package storage

import "liquidityLedger/internal/model"

// LogSink receives batches of raw logs from the fetcher.
type LogSink interface {
	PutLogBatch(logs []model.LogRecord) error
}
