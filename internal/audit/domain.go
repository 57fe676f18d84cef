package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable record of a mutating action. Entries are append
// only and carry no back references; ordering is by timestamp.
type Entry struct {
	ID       uuid.UUID
	OrgID    int64
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Changes  map[string]any
	At       time.Time
}

// TimelineFilter narrows timeline retrieval.
type TimelineFilter struct {
	OrgID    int64
	Entity   string
	EntityID string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// PagingInfo describes the returned window.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}
