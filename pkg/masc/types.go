// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package masc contains the shared domain types of the coordination kernel.
// Every entity owned by the Room Store is defined here; all timestamps are
// seconds since epoch as float64, all identifiers are strings.
package masc

import "encoding/json"

// AgentStatus is the lifecycle state of an agent within a room.
type AgentStatus string

const (
	AgentActive AgentStatus = "active"
	AgentIdle   AgentStatus = "idle"
	AgentBusy   AgentStatus = "busy"
	AgentZombie AgentStatus = "zombie"
	AgentLeft   AgentStatus = "left"
)

// Agent is one LLM session participating in a room.
type Agent struct {
	// ID is the stable identity; DisplayName is the human-facing label.
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`

	// Capabilities is the set of skills the agent advertises, used by
	// capability-filtered task claims and agent selection.
	Capabilities []string `json:"capabilities,omitempty"`

	Status          AgentStatus `json:"status"`
	JoinedAt        float64     `json:"joined_at"`
	LastHeartbeat   float64     `json:"last_heartbeat"`
	CurrentTaskID   string      `json:"current_task_id,omitempty"`
	CurrentWorktree string      `json:"current_worktree,omitempty"`
	Role            string      `json:"role,omitempty"`
}

// HasCapabilities reports whether the agent's capability set is a superset
// of required.
func (a *Agent) HasCapabilities(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(a.Capabilities))
	for _, c := range a.Capabilities {
		have[c] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskClaimed    TaskStatus = "claimed"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskCancelled
}

// Task is a unit of work with a single owner and a monotone state machine.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    int        `json:"priority"` // 1..5, 1 highest
	Status      TaskStatus `json:"status"`
	ClaimedBy   string     `json:"claimed_by,omitempty"`
	ClaimedAt   float64    `json:"claimed_at,omitempty"`
	CompletedAt float64    `json:"completed_at,omitempty"`
	CreatedAt   float64    `json:"created_at"`

	// Source marks externally-fed tasks; Payload is opaque to the kernel.
	Source  string          `json:"source,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// RequiredCapabilities restricts claim_next matching when non-empty.
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
}

// ValidTaskTransition reports whether a task may move from one status to
// another. Cancellation is allowed from any non-terminal state; everything
// else advances monotonically. Same-status "transitions" are rejected here;
// idempotent re-claims are resolved by the store before this check.
func ValidTaskTransition(from, to TaskStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == TaskCancelled {
		return true
	}
	switch from {
	case TaskPending:
		return to == TaskClaimed
	case TaskClaimed:
		return to == TaskInProgress || to == TaskDone || to == TaskPending
	case TaskInProgress:
		return to == TaskDone || to == TaskPending
	}
	return false
}

// MessageKind classifies room messages.
type MessageKind string

const (
	MessageBroadcast    MessageKind = "broadcast"
	MessageSystem       MessageKind = "system"
	MessageTaskUpdate   MessageKind = "task_update"
	MessageAgentEvent   MessageKind = "agent_event"
	MessageHandoffEvent MessageKind = "handoff_event"
)

// MessagePriority orders delivery hints; it never affects seq ordering.
type MessagePriority string

const (
	PriorityLow    MessagePriority = "low"
	PriorityNormal MessagePriority = "normal"
	PriorityHigh   MessagePriority = "high"
)

// Message is one entry in the room's append-only message log. Seq is
// strictly increasing per room and assigned at commit time.
type Message struct {
	Seq       int64           `json:"seq"`
	Timestamp float64         `json:"timestamp"`
	Sender    string          `json:"sender"`
	Kind      MessageKind     `json:"kind"`
	Body      json.RawMessage `json:"body"`
	Priority  MessagePriority `json:"priority,omitempty"`
}

// Lock is an advisory file lock. At most one holder per path at any instant.
type Lock struct {
	FilePath   string  `json:"file_path"`
	Holder     string  `json:"holder"`
	TaskID     string  `json:"task_id,omitempty"` // task the holder was on at acquisition
	AcquiredAt float64 `json:"acquired_at"`
	ExpiresAt  float64 `json:"expires_at,omitempty"` // 0 = indefinite
}

// VoteStatus is the lifecycle state of a vote.
type VoteStatus string

const (
	VoteOpen   VoteStatus = "open"
	VoteClosed VoteStatus = "closed"
)

// Vote is a ballot over a fixed option list; one ballot per agent,
// overwritten on re-cast, frozen at close.
type Vote struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Options   []string          `json:"options"`
	CreatedBy string            `json:"created_by"`
	OpenedAt  float64           `json:"opened_at"`
	ClosesAt  float64           `json:"closes_at,omitempty"`
	Status    VoteStatus        `json:"status"`
	Ballots   map[string]string `json:"ballots"` // agent id -> option
}

// Tally returns per-option counts and the current leader. Ties resolve to
// the option listed first.
func (v *Vote) Tally() (counts map[string]int, leader string) {
	counts = make(map[string]int, len(v.Options))
	for _, opt := range v.Options {
		counts[opt] = 0
	}
	for _, opt := range v.Ballots {
		counts[opt]++
	}
	best := -1
	for _, opt := range v.Options {
		if counts[opt] > best {
			best = counts[opt]
			leader = opt
		}
	}
	return counts, leader
}

// PortalStatus is the lifecycle state of a portal.
type PortalStatus string

const (
	PortalOpen   PortalStatus = "open"
	PortalClosed PortalStatus = "closed"
)

// Portal is a private bidirectional channel between two agents. Each side
// owns a bounded inbox; overflow drops the oldest entry.
type Portal struct {
	ID       string       `json:"id"`
	AgentA   string       `json:"agent_a"`
	AgentB   string       `json:"agent_b"`
	OpenedAt float64      `json:"opened_at"`
	Status   PortalStatus `json:"status"`

	// InboxA holds payloads awaiting AgentA; InboxB likewise for AgentB.
	InboxA []json.RawMessage `json:"inbox_a,omitempty"`
	InboxB []json.RawMessage `json:"inbox_b,omitempty"`
}

// Peer returns the other side of the portal, or "" if agent is not a member.
func (p *Portal) Peer(agent string) string {
	switch agent {
	case p.AgentA:
		return p.AgentB
	case p.AgentB:
		return p.AgentA
	}
	return ""
}

// HandoffReason records why an agent yielded its work.
type HandoffReason string

const (
	ReasonContextLimit HandoffReason = "context_limit"
	ReasonTimeout      HandoffReason = "timeout"
	ReasonExplicit     HandoffReason = "explicit"
	ReasonFatalError   HandoffReason = "fatal_error"
	ReasonTaskComplete HandoffReason = "task_complete"
)

// HandoffStatus is the lifecycle state of a handoff capsule.
type HandoffStatus string

const (
	HandoffPending  HandoffStatus = "pending"
	HandoffClaimed  HandoffStatus = "claimed"
	HandoffConsumed HandoffStatus = "consumed"
	HandoffExpired  HandoffStatus = "expired"
)

// Handoff is the capsule ("DNA") one agent leaves for its successor: the
// full working context needed to resume a task after cellular division.
type Handoff struct {
	ID        string        `json:"id"`
	FromAgent string        `json:"from_agent"`
	ToAgent   string        `json:"to_agent,omitempty"`
	TaskID    string        `json:"task_id,omitempty"`
	Reason    HandoffReason `json:"reason"`

	// ContextPct is the reporter's context-window usage at handoff time.
	ContextPct float64 `json:"context_pct,omitempty"`

	Goal             string   `json:"goal"`
	ProgressSummary  string   `json:"progress_summary,omitempty"`
	CompletedSteps   []string `json:"completed_steps,omitempty"`
	PendingSteps     []string `json:"pending_steps,omitempty"`
	KeyDecisions     []string `json:"key_decisions,omitempty"`
	Assumptions      []string `json:"assumptions,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	UnresolvedErrors []string `json:"unresolved_errors,omitempty"`
	ModifiedFiles    []string `json:"modified_files,omitempty"`

	CreatedAt float64       `json:"created_at"`
	Status    HandoffStatus `json:"status"`
}

// ValidHandoffTransition reports whether a capsule may move between states:
// pending→claimed (once), claimed→consumed, and any non-terminal→expired.
// Claimed capsules may also return to pending when a claim times out.
func ValidHandoffTransition(from, to HandoffStatus) bool {
	switch from {
	case HandoffPending:
		return to == HandoffClaimed || to == HandoffExpired
	case HandoffClaimed:
		return to == HandoffConsumed || to == HandoffExpired || to == HandoffPending
	}
	return false
}

// CheckpointStatus is the lifecycle state of a workflow checkpoint.
type CheckpointStatus string

const (
	CheckpointPending     CheckpointStatus = "pending"
	CheckpointInProgress  CheckpointStatus = "in_progress"
	CheckpointInterrupted CheckpointStatus = "interrupted"
	CheckpointCompleted   CheckpointStatus = "completed"
	CheckpointRejected    CheckpointStatus = "rejected"
	CheckpointBranched    CheckpointStatus = "branched"
	CheckpointReverted    CheckpointStatus = "reverted"
)

// Terminal reports whether the checkpoint admits no further transitions.
func (s CheckpointStatus) Terminal() bool {
	switch s {
	case CheckpointCompleted, CheckpointRejected, CheckpointBranched, CheckpointReverted:
		return true
	}
	return false
}

// Checkpoint is a durable workflow step supporting human-in-the-loop
// interrupt, approve, reject, branch and revert.
type Checkpoint struct {
	ID               string           `json:"id"`
	TaskID           string           `json:"task_id"`
	Step             int              `json:"step"`
	StateJSON        string           `json:"state_json,omitempty"`
	Status           CheckpointStatus `json:"status"`
	InterruptMessage string           `json:"interrupt_message,omitempty"`
	InterruptedAt    float64          `json:"interrupted_at,omitempty"`
	RejectReason     string           `json:"reject_reason,omitempty"`
	ParentID         string           `json:"parent_checkpoint_id,omitempty"`
	BranchName       string           `json:"branch_name,omitempty"`
	CreatedAt        float64          `json:"created_at"`
	ResolvedAt       float64          `json:"resolved_at,omitempty"`
}

// ValidCheckpointTransition encodes the checkpoint state machine:
// pending → in_progress → (completed | interrupted); from interrupted:
// completed (approve), rejected (reject or timeout), branched (fork);
// reverted from any non-terminal state.
func ValidCheckpointTransition(from, to CheckpointStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == CheckpointReverted {
		return true
	}
	switch from {
	case CheckpointPending:
		return to == CheckpointInProgress
	case CheckpointInProgress:
		return to == CheckpointCompleted || to == CheckpointInterrupted
	case CheckpointInterrupted:
		return to == CheckpointCompleted || to == CheckpointRejected || to == CheckpointBranched
	}
	return false
}

// CacheEntry is a room-scoped key/value pair with optional TTL.
type CacheEntry struct {
	Key       string   `json:"key"`
	Value     string   `json:"value"`
	CreatedAt float64  `json:"created_at"`
	ExpiresAt float64  `json:"expires_at,omitempty"` // 0 = never
	Tags      []string `json:"tags,omitempty"`
}

// Expired reports whether the entry is past its TTL at the given time.
func (e *CacheEntry) Expired(now float64) bool {
	return e.ExpiresAt > 0 && now >= e.ExpiresAt
}

// TelemetryKind classifies telemetry events.
type TelemetryKind string

const (
	TelemetryAgentJoined      TelemetryKind = "agent_joined"
	TelemetryAgentLeft        TelemetryKind = "agent_left"
	TelemetryTaskStarted      TelemetryKind = "task_started"
	TelemetryTaskCompleted    TelemetryKind = "task_completed"
	TelemetryHandoffTriggered TelemetryKind = "handoff_triggered"
	TelemetryError            TelemetryKind = "error"
	TelemetryToolCalled       TelemetryKind = "tool_called"
)

// TelemetryEvent is one line in the room's append-only telemetry log.
type TelemetryEvent struct {
	Timestamp float64                `json:"timestamp"`
	Kind      TelemetryKind          `json:"kind"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Synapse is a directed edge in the collaboration graph with a Hebbian
// weight in [0,1].
type Synapse struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Weight    float64 `json:"weight"`
	Successes int64   `json:"successes"`
	Failures  int64   `json:"failures"`
	UpdatedAt float64 `json:"updated_at"`
}

// Credit is the per-agent usage ledger backing the cost surface. Token
// counts are estimates.
type Credit struct {
	AgentID   string  `json:"agent_id"`
	TokensIn  int64   `json:"tokens_in"`
	TokensOut int64   `json:"tokens_out"`
	Calls     int64   `json:"calls"`
	UpdatedAt float64 `json:"updated_at"`
}

// Room is the coordination container's own record: pause state, active
// mode, and the supervisor tempo.
type Room struct {
	Cluster     string  `json:"cluster"`
	RoomID      string  `json:"room_id"`
	CreatedAt   float64 `json:"created_at"`
	Paused      bool    `json:"paused"`
	PauseReason string  `json:"pause_reason,omitempty"`
	Mode        string  `json:"mode"`
	Tempo       float64 `json:"tempo"` // seconds between supervisor passes
}
