package protocol

// Wire team ids used by the external sim.
const (
	TeamHome = 2
	TeamAway = 3
)

// Participant slot ranges. The sim assigns ids 0-4 to the home side and
// 5-9 to the away side.
const (
	SlotsPerSide  = 5
	ExpectedCount = 10
	AwayFirstSlot = 5
)

func TeamName(team int) string {
	switch team {
	case TeamHome:
		return "home"
	case TeamAway:
		return "away"
	}
	return "unknown"
}

// TeamOf maps a participant id to its wire team id.
func TeamOf(participant int) int {
	if participant < AwayFirstSlot {
		return TeamHome
	}
	return TeamAway
}
