package moderation

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubjectKind identifies what a moderation decision applies to.
type SubjectKind string

const (
	SubjectCategory SubjectKind = "category"
	SubjectTag      SubjectKind = "tag"
	SubjectContent  SubjectKind = "content"
)

// IsValid reports whether the kind is a known subject.
func (k SubjectKind) IsValid() bool {
	switch k {
	case SubjectCategory, SubjectTag, SubjectContent:
		return true
	default:
		return false
	}
}

// IsProposal reports whether the kind is moderated via a ModerationRequest
// row instead of in place.
func (k SubjectKind) IsProposal() bool {
	return k == SubjectCategory || k == SubjectTag
}

// WorkflowState is a status value a moderated subject moves through.
type WorkflowState string

// Request states. Approved and rejected are terminal.
const (
	RequestPending  WorkflowState = "pending"
	RequestApproved WorkflowState = "approved"
	RequestRejected WorkflowState = "rejected"
)

// Content states. Published and rejected are terminal.
const (
	ContentDraft           WorkflowState = "draft"
	ContentPendingApproval WorkflowState = "pending_approval"
	ContentPublished       WorkflowState = "published"
	ContentRejected        WorkflowState = "rejected"
)

// ModerationRequest is a proposal to add a canonical category or tag. The
// entity itself is only materialized when the request is approved.
type ModerationRequest struct {
	bun.BaseModel `bun:"table:moderation_requests,alias:req"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Kind          SubjectKind    `bun:"kind,notnull" json:"kind,omitempty"`
	Name          string         `bun:"name,notnull" json:"name,omitempty"`
	Description   string         `bun:"description" json:"description,omitempty"`
	State         WorkflowState  `bun:"state,notnull" json:"state,omitempty"`
	RequestedBy   uuid.UUID      `bun:"requested_by,notnull,type:uuid" json:"requested_by,omitempty"`
	ReviewedBy    *uuid.UUID     `bun:"reviewed_by,nullzero,type:uuid" json:"reviewed_by,omitempty"`
	ReviewNote    string         `bun:"review_note" json:"review_note,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	ReviewedAt    *time.Time     `bun:"reviewed_at,nullzero" json:"reviewed_at,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureState backfills the zero value so new proposals start pending.
func (r *ModerationRequest) EnsureState() {
	if r.State == "" {
		r.State = RequestPending
	}
}

// SubjectID implements WorkflowSubject.
func (r *ModerationRequest) SubjectID() uuid.UUID { return r.ID }

// SubjectKind implements WorkflowSubject.
func (r *ModerationRequest) SubjectKind() SubjectKind { return r.Kind }

// CurrentState implements WorkflowSubject.
func (r *ModerationRequest) CurrentState() WorkflowState {
	r.EnsureState()
	return r.State
}

// SetState implements WorkflowSubject.
func (r *ModerationRequest) SetState(state WorkflowState) { r.State = state }

// Category is a canonical, approved category.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	ApprovedBy    *uuid.UUID `bun:"approved_by,nullzero,type:uuid" json:"approved_by,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Tag is a canonical, approved tag.
type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:tag"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	ApprovedBy    *uuid.UUID `bun:"approved_by,nullzero,type:uuid" json:"approved_by,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Content is a creator-owned piece moderated in place.
type Content struct {
	bun.BaseModel `bun:"table:contents,alias:cnt"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OwnerID       uuid.UUID      `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	CategoryID    *uuid.UUID     `bun:"category_id,nullzero,type:uuid" json:"category_id,omitempty"`
	Title         string         `bun:"title,notnull" json:"title,omitempty"`
	Body          string         `bun:"body" json:"body,omitempty"`
	State         WorkflowState  `bun:"state,notnull" json:"state,omitempty"`
	ReviewedBy    *uuid.UUID     `bun:"reviewed_by,nullzero,type:uuid" json:"reviewed_by,omitempty"`
	ReviewNote    string         `bun:"review_note" json:"review_note,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	PublishedAt   *time.Time     `bun:"published_at,nullzero" json:"published_at,omitempty"`
	ReviewedAt    *time.Time     `bun:"reviewed_at,nullzero" json:"reviewed_at,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureState backfills the zero value so new content starts as a draft.
func (c *Content) EnsureState() {
	if c.State == "" {
		c.State = ContentDraft
	}
}

// SubjectID implements WorkflowSubject.
func (c *Content) SubjectID() uuid.UUID { return c.ID }

// SubjectKind implements WorkflowSubject.
func (c *Content) SubjectKind() SubjectKind { return SubjectContent }

// CurrentState implements WorkflowSubject.
func (c *Content) CurrentState() WorkflowState {
	c.EnsureState()
	return c.State
}

// SetState implements WorkflowSubject.
func (c *Content) SetState(state WorkflowState) { c.State = state }

// IsPublished reports whether the content is visible to consumers.
func (c *Content) IsPublished() bool {
	return c.State == ContentPublished
}
