// Package query plans and executes structured searches, the SQL-like
// search dialect, and plain document enumeration against the index tables
// and the documents table.
package query

import (
	"time"

	"github.com/jchristn/lattice/core"
)

// SearchCondition is one comparison operator of a structured search
// filter.
type SearchCondition string

const (
	ConditionEquals               SearchCondition = "Equals"
	ConditionNotEquals            SearchCondition = "NotEquals"
	ConditionGreaterThan          SearchCondition = "GreaterThan"
	ConditionGreaterThanOrEqualTo SearchCondition = "GreaterThanOrEqualTo"
	ConditionLessThan             SearchCondition = "LessThan"
	ConditionLessThanOrEqualTo    SearchCondition = "LessThanOrEqualTo"
	ConditionIsNull               SearchCondition = "IsNull"
	ConditionIsNotNull            SearchCondition = "IsNotNull"
	ConditionContains             SearchCondition = "Contains"
	ConditionStartsWith           SearchCondition = "StartsWith"
	ConditionEndsWith             SearchCondition = "EndsWith"
	ConditionLike                 SearchCondition = "Like"
)

// SearchFilter is one predicate over a dotted leaf path. Value is unused
// for IsNull and IsNotNull.
type SearchFilter struct {
	Field     string          `json:"field"`
	Condition SearchCondition `json:"condition"`
	Value     string          `json:"value,omitempty"`
}

// OrderField selects the documents column driving result order.
type OrderField string

const (
	OrderByCreatedUTC    OrderField = "CreatedUtc"
	OrderByLastUpdateUTC OrderField = "LastUpdateUtc"
	OrderByName          OrderField = "Name"
)

// Ordering selects the result order. The zero value means the default,
// createdUtc descending.
type Ordering struct {
	Field      OrderField `json:"field,omitempty"`
	Descending bool       `json:"descending,omitempty"`
}

// SearchQuery is one structured search over a collection. Filters, labels,
// and tag pairs all intersect (AND semantics).
type SearchQuery struct {
	CollectionID   string            `json:"collectionId"`
	Filters        []SearchFilter    `json:"filters,omitempty"`
	Labels         []string          `json:"labels,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	MaxResults     int               `json:"maxResults,omitempty"`
	Skip           int               `json:"skip,omitempty"`
	Ordering       *Ordering         `json:"ordering,omitempty"`
	IncludeContent bool              `json:"includeContent,omitempty"`
}

// Timestamp brackets an operation's execution window.
type Timestamp struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SearchResult is the paged outcome of a structured or SQL-like search.
type SearchResult struct {
	Success          bool            `json:"success"`
	Timestamp        Timestamp       `json:"timestamp"`
	MaxResults       int             `json:"maxResults"`
	EndOfResults     bool            `json:"endOfResults"`
	TotalRecords     int             `json:"totalRecords"`
	RecordsRemaining int             `json:"recordsRemaining"`
	Documents        []core.Document `json:"documents"`
}

// EnumerationQuery is a plain paged scan over documents, global when
// CollectionID is empty.
type EnumerationQuery struct {
	CollectionID string    `json:"collectionId,omitempty"`
	Skip         int       `json:"skip,omitempty"`
	MaxResults   int       `json:"maxResults,omitempty"`
	Ordering     *Ordering `json:"ordering,omitempty"`
}

// EnumerationResult mirrors the search envelope for plain enumeration.
type EnumerationResult struct {
	Success          bool            `json:"success"`
	Timestamp        Timestamp       `json:"timestamp"`
	MaxResults       int             `json:"maxResults"`
	EndOfResults     bool            `json:"endOfResults"`
	TotalRecords     int             `json:"totalRecords"`
	RecordsRemaining int             `json:"recordsRemaining"`
	Objects          []core.Document `json:"objects"`
}

// DefaultMaxResults applies when a query does not set MaxResults.
const DefaultMaxResults = 100
