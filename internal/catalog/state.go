package catalog

// State is the pipeline state of one corpus generation.
type State int

// A corpus only moves forward through these states.
const (
	StateEmpty State = iota
	StateIngesting
	StateNormalized
	StateQueryable
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateIngesting:
		return "ingesting"
	case StateNormalized:
		return "normalized"
	case StateQueryable:
		return "queryable"
	default:
		return "unknown"
	}
}
