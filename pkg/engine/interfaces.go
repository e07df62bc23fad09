package engine

// Engine is the external phone-number engine consumed by the boundary.
// Implementations hold process-wide metadata that is loaded once and is
// read-only afterwards, so every method must be safe for concurrent use.
type Engine interface {
	// Name identifies the engine in logs and metrics.
	Name() string

	// Parse interprets text as a phone number under region's metadata.
	// A number written with a leading "+" may ignore region.
	Parse(text, region string) (*ParsedNumber, error)

	// Render formats a parsed number.
	Render(number *ParsedNumber, format NumberFormat) string

	// Classify returns the number's category, TypeUnknown when none matches.
	Classify(number *ParsedNumber) NumberType

	// IsValidNumber reports whether the number matches a known pattern
	// for its region.
	IsValidNumber(number *ParsedNumber) bool

	// RegionByCallingCode returns the main region for a calling code.
	// Unassigned codes return an error of class ErrorClassUnknownRegion.
	RegionByCallingCode(code uint16) (string, error)

	// RegionForNumber returns the region label a parsed number belongs to.
	RegionForNumber(number *ParsedNumber) string
}
