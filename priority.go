package prioinv

import (
	"fmt"
	"strconv"
)

// Priority represents a fixed real-time scheduling priority. Higher values are
// more urgent. The zero value is the unknown priority, which no real-time
// scheduling class accepts.
type Priority struct {
	priority
}

// NewPriority creates a new [Priority] from a raw numeric value.
func NewPriority(v int) Priority {
	return Priority{priority(v)}
}

// ParsePriority creates a new [Priority] from the given value. Named levels
// and their numeric spelling are both accepted.
func ParsePriority(p any) Priority {
	switch v := p.(type) {
	case Priority:
		return v
	case string:
		return Priority{stringToPriority(v)}
	case fmt.Stringer:
		return Priority{stringToPriority(v.String())}
	case int:
		return Priority{priority(v)}
	case int64:
		return Priority{priority(int(v))}
	case int32:
		return Priority{priority(int(v))}
	default:
		return Priority{priorityUnknown}
	}
}

// Int returns the numeric value handed to the operating system.
func (p Priority) Int() int {
	return int(p.priority)
}

// Higher reports whether p is strictly more urgent than q.
func (p Priority) Higher(q Priority) bool {
	return p.priority > q.priority
}

// Max returns the more urgent of p and q.
func (p Priority) Max(q Priority) Priority {
	if q.priority > p.priority {
		return q
	}
	return p
}

// MarshalJSON encodes named priorities by name and any other as a bare
// number.
func (p Priority) MarshalJSON() ([]byte, error) {
	if !p.priority.IsNamed() {
		return strconv.AppendInt(nil, int64(p.Int()), 10), nil
	}
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	*p = ParsePriority(s)
	return nil
}

// Priorities is a more typical enum like structure from other languages, ported
// to Go. It may be used to reference a [Priority] value by name. The named
// levels are the ones the benchmark assigns to its roles.
var Priorities = priorityContainer{
	Unknown: Priority{priorityUnknown},
	Low:     Priority{priorityLow},
	Medium:  Priority{priorityMedium},
	High:    Priority{priorityHigh},
}

// All returns all named priorities.
func (c priorityContainer) All() []Priority {
	return []Priority{c.Unknown, c.Low, c.Medium, c.High}
}

type priority int

const (
	priorityUnknown priority = 0
	priorityLow     priority = 10
	priorityMedium  priority = 20
	priorityHigh    priority = 30
)

var (
	strPriorityMap = map[priority]string{
		priorityUnknown: "unknown",
		priorityLow:     "low",
		priorityMedium:  "medium",
		priorityHigh:    "high",
	}

	typePriorityMap = map[string]priority{
		"unknown": priorityUnknown,
		"low":     priorityLow,
		"medium":  priorityMedium,
		"high":    priorityHigh,
	}
)

func (p priority) String() string {
	if s, ok := strPriorityMap[p]; ok {
		return s
	}
	return strconv.Itoa(int(p))
}

// IsNamed reports whether the priority is one of the named levels.
func (p priority) IsNamed() bool {
	_, ok := strPriorityMap[p]
	return ok
}

func stringToPriority(s string) priority {
	if v, ok := typePriorityMap[s]; ok {
		return v
	}
	if n, err := strconv.Atoi(s); err == nil {
		return priority(n)
	}
	return priorityUnknown
}

type priorityContainer struct {
	Unknown Priority
	Low     Priority
	Medium  Priority
	High    Priority
}
