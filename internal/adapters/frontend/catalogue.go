package frontend

// QuickTarget is a well-known star offered as a one-keystroke example
type QuickTarget struct {
	ID   string
	Note string
}

// QuickTargets is the built-in example catalogue
var QuickTargets = []QuickTarget{
	{ID: "Kepler-10", Note: "first rocky planet confirmed by Kepler"},
	{ID: "Kepler-22", Note: "habitable zone super-Earth"},
	{ID: "Kepler-90", Note: "eight-planet system"},
	{ID: "Pi Mensae", Note: "TESS first discovery"},
	{ID: "KIC 8462852", Note: "Tabby's star, irregular dimming"},
}

// QuickTargetIDs returns the catalogue identifiers in order
func QuickTargetIDs() []string {
	ids := make([]string, len(QuickTargets))
	for i, q := range QuickTargets {
		ids[i] = q.ID
	}
	return ids
}
