// Package hitl implements the human-in-the-loop coordinator: a registry
// of pending approval requests, a webhook dispatcher with bounded
// retries, and a response demultiplexer tolerant of out-of-order
// delivery.
package hitl

import (
	"time"

	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
)

// ApprovalTTL is how long an ApprovalRequest remains eligible for
// resolution after creation.
const ApprovalTTL = 30 * time.Minute

// ApprovalRequest is a process-unique handle for a pending human decision.
type ApprovalRequest struct {
	ID        string
	ToolCall  guardpolicy.ToolCall
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ResponseDecision is the approver's verdict.
type ResponseDecision string

const (
	DecisionApprove ResponseDecision = "APPROVE"
	DecisionDeny    ResponseDecision = "DENY"
)

// ApprovalResponse is the inbound decision for one ApprovalRequest.
type ApprovalResponse struct {
	RequestID   string
	Decision    ResponseDecision
	Reason      string
	ApprovedBy  string
}

// HITLResult is what waitForApproval (and an early response) delivers to
// the blocked caller.
type HITLResult struct {
	Approved       bool
	Reason         string
	ApprovedBy     string
	ResponseTimeMs int64
}
