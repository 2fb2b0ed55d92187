package domain

import "strings"

// RiskLevel is the four-step psychological risk classification attached to
// assistant messages. Levels are totally ordered: GREEN < YELLOW < ORANGE < RED.
type RiskLevel string

const (
	RiskGreen  RiskLevel = "GREEN"
	RiskYellow RiskLevel = "YELLOW"
	RiskOrange RiskLevel = "ORANGE"
	RiskRed    RiskLevel = "RED"
)

var riskRank = map[RiskLevel]int{
	RiskGreen:  0,
	RiskYellow: 1,
	RiskOrange: 2,
	RiskRed:    3,
}

// Rank returns the position of the level in the GREEN..RED order.
func (r RiskLevel) Rank() int {
	return riskRank[r]
}

// AtLeast reports whether r is as severe as other or more.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank()
}

// Alerting reports whether the level crosses the escalation threshold.
func (r RiskLevel) Alerting() bool {
	return r.AtLeast(RiskOrange)
}

// ParseRiskLevel maps the model's riskLevel field onto a known level.
// Anything absent or unrecognized degrades to GREEN, never to an error.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case RiskYellow:
		return RiskYellow
	case RiskOrange:
		return RiskOrange
	case RiskRed:
		return RiskRed
	default:
		return RiskGreen
	}
}
