package overlay

// DangerLevel classifies a location by its aggregate victim count
type DangerLevel string

const (
	DangerGreen  DangerLevel = "green"
	DangerYellow DangerLevel = "yellow"
	DangerOrange DangerLevel = "orange"
	DangerRed    DangerLevel = "red"
)

// DangerLevelFor bands a victim count
func DangerLevelFor(totalVictims int) DangerLevel {
	switch {
	case totalVictims >= 9:
		return DangerRed
	case totalVictims >= 6:
		return DangerOrange
	case totalVictims >= 3:
		return DangerYellow
	default:
		return DangerGreen
	}
}
