package declarative

// ResourceKind identifies a type of manifest object.
type ResourceKind int

// Resource kinds, in the order changes are reported.
const (
	KindModel ResourceKind = iota
	KindRelationship
	KindMetric
)

// String returns a human-readable kebab-case name for the resource kind.
func (k ResourceKind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindRelationship:
		return "relationship"
	case KindMetric:
		return "metric"
	default:
		return "unknown"
	}
}

// Operation is the kind of change a plan action makes.
type Operation int

// Plan operations.
const (
	OpCreate Operation = iota
	OpUpdate
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}
