package amqp

import (
	"encoding/json"
	"time"

	"cashrecon/internal/core"
)

// ReportSubmittedMessage announces that a daily report was submitted or
// overridden. It carries identity and the figures as computed at write time;
// consumers fetch the full report from storage.
type ReportSubmittedMessage struct {
	ReportID       string      `json:"reportId"`
	StoreID        string      `json:"storeId"`
	Date           core.Date   `json:"date"`
	Version        int         `json:"version"`
	FormulaVersion int         `json:"formulaVersion"`
	Status         core.Status `json:"status"`
	Actor          string      `json:"actor,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// NewReportSubmittedMessage builds the event for r as written by actor.
func NewReportSubmittedMessage(r core.DailyReport, actor string) *ReportSubmittedMessage {
	return &ReportSubmittedMessage{
		ReportID:       r.ID,
		StoreID:        r.StoreID,
		Date:           r.Date,
		Version:        r.Version,
		FormulaVersion: r.FormulaVersion,
		Status:         r.Status,
		Actor:          actor,
		Timestamp:      time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportSubmittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportSubmittedMessageFromJSON creates a message from JSON bytes
func ReportSubmittedMessageFromJSON(data []byte) (*ReportSubmittedMessage, error) {
	var msg ReportSubmittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
