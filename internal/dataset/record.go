package dataset

// Document types asserted for a question. The value is carried as an
// unvalidated tag; nothing downstream infers behavior from it beyond filtering.
const (
	DocTypeTargeted   = "targeted_rule"
	DocTypeCollection = "collection_rule"
)

// QuestionRecord is the unit of work and persistence. Text fields are pointers
// so that fields the oracle omitted are written as JSON null.
type QuestionRecord struct {
	ID             int     `json:"id"`
	DBID           string  `json:"db_id"`
	Question       *string `json:"question"`
	NL2SQLQuestion *string `json:"nl2sql_question"`
	SQLAnswer      *string `json:"sql_answer"`
	DocType        *string `json:"doc_type"`
	DocDesc        *string `json:"doc_desc"`
}

func (r QuestionRecord) RecordID() int { return r.ID }

// Executable reports whether the record carries both a database id and query text.
func (r QuestionRecord) Executable() bool {
	return r.DBID != "" && r.SQLAnswer != nil && *r.SQLAnswer != ""
}

// BridgedRecord is a question whose query returned at least one row.
type BridgedRecord struct {
	QuestionRecord
	Instance BridgeInstance `json:"db_instance"`
}

// Viable is false for records loaded from disk with an empty instance.
func (r BridgedRecord) Viable() bool {
	return len(r.Instance) > 0
}

// DocumentRecord is the final output unit.
type DocumentRecord struct {
	QuestionRecord
	TargetObject BridgeInstance `json:"target_object"`
	Doc          *string        `json:"doc"`
	Answer       *string        `json:"answer"`
}

// Identified is implemented by every persisted record type.
type Identified interface {
	RecordID() int
}

// NextID returns one more than the largest id in items, or zero when empty.
func NextID[T Identified](items []T) int {
	next := 0
	for _, item := range items {
		if id := item.RecordID(); id+1 > next {
			next = id + 1
		}
	}
	return next
}

// IDSet indexes the ids present in items.
func IDSet[T Identified](items []T) map[int]struct{} {
	ids := make(map[int]struct{}, len(items))
	for _, item := range items {
		ids[item.RecordID()] = struct{}{}
	}
	return ids
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
