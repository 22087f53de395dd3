package domain

const (
	// CapabilityColor allows a sender to keep color markup in its messages.
	CapabilityColor = "elytrachat.color"
	// CapabilityOversight grants visibility on filtered messages.
	CapabilityOversight = "staff.filter"
	// FormatCapabilityPrefix prefixes the capability selecting a named format.
	FormatCapabilityPrefix = "format."
	// FilterAlertPrefix marks filtered messages sent to oversight holders.
	FilterAlertPrefix = "&c(filter) "
)

type CapabilitySet map[string]struct{}

func NewCapabilitySet(names ...string) CapabilitySet {
	set := make(CapabilitySet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (s CapabilitySet) Has(name string) bool {
	_, ok := s[name]
	return ok
}
