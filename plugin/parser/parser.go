// Package parser is the client for the external LLM-backed structured
// parser. The service is treated as a black box that is unreliable by
// design: its temporal fields are never trusted without going through the
// normalizer and validator downstream.
package parser

import (
	"context"
	"time"
)

// Candidate is the task schema as produced by the external parser.
// Dates are YYYY-MM-DD strings and times are 24-hour HH:MM strings;
// validation of both happens downstream, never here.
type Candidate struct {
	Task            string `json:"task"`
	Assignee        string `json:"assignee"`
	Assigner        string `json:"assigner"`
	DueDate         string `json:"due_date"`
	DueTime         string `json:"due_time"`
	ReminderDate    string `json:"reminder_date"`
	ReminderTime    string `json:"reminder_time"`
	RepeatInterval  string `json:"repeat_interval"`
	Site            string `json:"site"`
	TimezoneContext string `json:"timezone_context"`
	// Confidence is the parser's self-reported certainty in [0,1].
	// Optional; zero means the parser reported nothing.
	Confidence float64 `json:"confidence"`
}

// Request carries one parse or re-parse request.
//
// For a re-parse after a correction, PriorDraft and CorrectionText are
// both set. The three inputs stay separate fields end to end: appending
// correction text onto the original message measurably confuses the
// parser, so it is never done.
type Request struct {
	RawText          string
	ReferenceInstant time.Time
	ReferenceZone    string
	PriorDraft       *Candidate
	CorrectionText   string
}

// Client parses free text into a structured task candidate.
type Client interface {
	Parse(ctx context.Context, req *Request) (*Candidate, error)
}
