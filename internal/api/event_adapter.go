package api

import (
	"ldaengine/ports"
)

// SessionProgress relays a run's progress to the SSE clients of one session.
type SessionProgress struct {
	hub       *SSEHub
	sessionID string
}

// NewSessionProgress returns a sink for sessionID. An empty session id
// yields a sink that discards everything.
func NewSessionProgress(hub *SSEHub, sessionID string) ports.ProgressSink {
	if hub == nil || sessionID == "" {
		return ports.NopProgress{}
	}
	return &SessionProgress{hub: hub, sessionID: sessionID}
}

func (p *SessionProgress) Step(stepID, status string) {
	p.hub.Broadcast(ProgressEvent{
		SessionID: p.sessionID,
		EventType: EventStep,
		StepID:    stepID,
		Status:    status,
	})
}

func (p *SessionProgress) Batch(current, total int, phase, tableLabel string) {
	p.hub.Broadcast(ProgressEvent{
		SessionID: p.sessionID,
		EventType: EventBatch,
		Current:   current,
		Total:     total,
		Phase:     phase,
		Table:     tableLabel,
	})
}

// RunFinished tells the session a run ended.
func (p *SessionProgress) RunFinished(runID, status, message string) {
	p.hub.Broadcast(ProgressEvent{
		SessionID: p.sessionID,
		EventType: EventRun,
		RunID:     runID,
		Status:    status,
		Message:   message,
	})
}

var _ ports.ProgressSink = (*SessionProgress)(nil)
