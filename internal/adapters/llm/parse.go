package llm

import (
	"encoding/json"
	"strings"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
)

// structuredReply is the JSON shape the model is asked to return. Older
// prompt revisions called the insight field "reason" or "new_insights", so
// all three spellings are accepted.
type structuredReply struct {
	Reply       string `json:"reply"`
	RiskLevel   string `json:"riskLevel"`
	Insight     string `json:"insight"`
	Reason      string `json:"reason"`
	NewInsights string `json:"new_insights"`
}

// parseClassification turns raw model output into a Classification. A
// response that is not the expected JSON shape is never an error: the raw
// text becomes the reply with GREEN risk and no insight.
func parseClassification(raw string) domain.Classification {
	cleaned := stripFences(raw)

	var sr structuredReply
	if err := json.Unmarshal([]byte(cleaned), &sr); err != nil || strings.TrimSpace(sr.Reply) == "" {
		return domain.Classification{
			Reply:    strings.TrimSpace(raw),
			Risk:     domain.RiskGreen,
			Degraded: true,
		}
	}

	insight := sr.Insight
	if insight == "" {
		insight = sr.NewInsights
	}
	if insight == "" {
		insight = sr.Reason
	}

	return domain.Classification{
		Reply:   sr.Reply,
		Risk:    domain.ParseRiskLevel(sr.RiskLevel),
		Insight: strings.TrimSpace(insight),
	}
}

// stripFences removes the ```json fences some models wrap JSON mode output in.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
