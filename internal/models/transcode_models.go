package models

import "time"

type TranscodeStatus string

const (
	TranscodeRemuxing   TranscodeStatus = "remuxing"
	TranscodeTranscoded TranscodeStatus = "transcoded"
	TranscodeCompleted  TranscodeStatus = "completed"
	TranscodeFailed     TranscodeStatus = "failed"
)

// Done reports whether output is ready to be served.
func (s TranscodeStatus) Done() bool {
	return s == TranscodeCompleted || s == TranscodeTranscoded
}

// TranscodeSession is the pollable state of one remux or transcode job.
type TranscodeSession struct {
	ID          string          `json:"id"`
	Status      TranscodeStatus `json:"status"`
	Progress    float64         `json:"progress"`
	Mode        string          `json:"mode"`
	OutputURL   string          `json:"outputUrl,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	FailedAt    *time.Time      `json:"failedAt,omitempty"`
}
