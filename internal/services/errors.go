package services

import "errors"

var (
	ErrStoreNotFound      = errors.New("store not found")
	ErrStoreExists        = errors.New("store already exists")
	ErrReportNotFound     = errors.New("report not found")
	ErrReportExists       = errors.New("report already opened for this store and date")
	ErrReportLocked       = errors.New("report already submitted")
	ErrReportNotOpen      = errors.New("no open report for this store and date")
	ErrReportNotSubmitted = errors.New("report has not been submitted yet")
	ErrVersionConflict    = errors.New("report was changed by someone else")
	ErrActorRequired      = errors.New("an acting user is required")
	ErrDayBusy            = errors.New("another update of this day is in progress")
)
