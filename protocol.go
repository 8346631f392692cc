package prioinv

import "fmt"

// ProtocolMode selects how a [Resource] lock treats the priority of its holder.
type ProtocolMode int

const (
	// NoProtection is bare mutual exclusion. The holder keeps its own priority
	// whatever is waiting.
	NoProtection ProtocolMode = iota
	// PriorityInheritance raises the holder to the highest waiting priority
	// while anything waits.
	PriorityInheritance
	// PriorityCeiling raises the holder to the resource ceiling for as long as
	// it holds the lock.
	PriorityCeiling
)

// Modes returns every protocol in trial order, baseline first.
func Modes() []ProtocolMode {
	return []ProtocolMode{NoProtection, PriorityInheritance, PriorityCeiling}
}

var (
	strModeMap = map[ProtocolMode]string{
		NoProtection:        "no-protection",
		PriorityInheritance: "priority-inheritance",
		PriorityCeiling:     "priority-ceiling",
	}

	typeModeMap = map[string]ProtocolMode{
		"no-protection":        NoProtection,
		"priority-inheritance": PriorityInheritance,
		"priority-ceiling":     PriorityCeiling,
	}
)

func (m ProtocolMode) String() string {
	if s, ok := strModeMap[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// IsValid reports whether m names a known protocol.
func (m ProtocolMode) IsValid() bool {
	_, ok := strModeMap[m]
	return ok
}

// ParseProtocolMode returns the protocol with the given name.
func ParseProtocolMode(s string) (ProtocolMode, error) {
	if m, ok := typeModeMap[s]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unknown protocol mode %q", s)
}

func (m ProtocolMode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *ProtocolMode) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := ParseProtocolMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
