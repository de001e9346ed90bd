package driven

import "time"

// Message types sent to a Broadcaster.
const (
	MessageAuditStage  = "audit_stage"
	MessageAuditReport = "audit_report"
)

// Pipeline stages reported through AuditEvent.
const (
	StageStaticAnalysis = "static_analysis"
	StageFlatten        = "flatten"
	StagePrompt         = "prompt"
	StageGenerate       = "generate"
	StageValidate       = "validate"
	StageCompleted      = "completed"
	StageDegraded       = "degraded"
)

// Broadcaster receives pipeline progress. The service mode plugs the
// WebSocket hub in here.
type Broadcaster interface {
	Broadcast(msgType string, data interface{})
}

// AuditEvent describes one pipeline stage of one file.
type AuditEvent struct {
	Stage    string        `json:"stage"`
	File     string        `json:"file"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}
