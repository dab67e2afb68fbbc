package storage

import "optionscope/internal/model"

// ReportSink receives derived position views for offline inspection.
type ReportSink interface {
	PutPositionBatch(views []model.PositionView) error
}
