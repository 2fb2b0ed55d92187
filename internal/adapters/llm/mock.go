package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
	"github.com/smartstudent-vn/spss-agent/internal/persona"
)

// MockClassifier is a keyword-driven stand-in for local development. It gives
// the four risk levels predictable triggers without any network call.
type MockClassifier struct{}

func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

var mockTriggers = []struct {
	risk     domain.RiskLevel
	keywords []string
}{
	{domain.RiskRed, []string{"tự tử", "tự hại", "không muốn sống", "kết thúc tất cả"}},
	{domain.RiskOrange, []string{"bắt nạt", "cô lập", "ghét bản thân", "trầm cảm"}},
	{domain.RiskYellow, []string{"mệt", "stress", "áp lực", "lo lắng", "chán"}},
}

func (m *MockClassifier) Classify(
	ctx context.Context,
	req domain.ClassifyRequest,
) (domain.Classification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Classification{}, err
	}

	prof, err := persona.Lookup(req.Persona)
	if err != nil {
		return domain.Classification{}, err
	}

	lower := strings.ToLower(req.Text)
	risk := domain.RiskGreen
	for _, t := range mockTriggers {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				risk = t.risk
				break
			}
		}
		if risk != domain.RiskGreen {
			break
		}
	}

	var reply string
	switch risk {
	case domain.RiskRed:
		reply = "Bạn ơi, hãy bình tĩnh và gọi ngay 1800 1567 nhé. Bạn không hề cô đơn."
	case domain.RiskOrange:
		reply = fmt.Sprintf("%s nghe thấy bạn đang rất khó khăn. Bạn thử chia sẻ với thầy cô hoặc bố mẹ nhé?", prof.Name)
	case domain.RiskYellow:
		reply = fmt.Sprintf("%s hiểu là bạn đang mệt. Kể cho mình nghe thêm một chút nhé?", prof.Name)
	default:
		reply = fmt.Sprintf("%s đang nghe bạn đây. Hôm nay của bạn thế nào?", prof.Name)
	}

	var insight string
	if risk.AtLeast(domain.RiskYellow) {
		insight = fmt.Sprintf("học sinh có dấu hiệu %s khi nói %q", strings.ToLower(string(risk)), req.Text)
	}

	return domain.Classification{
		Reply:   reply,
		Risk:    risk,
		Insight: insight,
	}, nil
}
