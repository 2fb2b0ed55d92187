package triage_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	memstore "github.com/smartstudent-vn/spss-agent/internal/adapters/storage/memory"
	"github.com/smartstudent-vn/spss-agent/internal/app/triage"
	"github.com/smartstudent-vn/spss-agent/internal/domain"
)

// classifierFunc adapts a function to the Classifier port for test scripting.
type classifierFunc func(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, error)

func (f classifierFunc) Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, error) {
	return f(ctx, req)
}

type fixture struct {
	engine   *triage.Engine
	sessions *memstore.SessionStore
	memories *memstore.MemoryStore
	alerts   *memstore.AlertLog
	user     *domain.User
}

func newFixture(t *testing.T, cl domain.Classifier, cfg triage.Config) *fixture {
	t.Helper()
	sessions := memstore.NewSessionStore()
	memories := memstore.NewMemoryStore()
	alerts := memstore.NewAlertLog(30)
	return &fixture{
		engine:   triage.NewEngine(cl, sessions, memories, alerts, cfg),
		sessions: sessions,
		memories: memories,
		alerts:   alerts,
		user: &domain.User{
			ID:        "u1",
			Username:  "minhanh",
			Role:      domain.UserRoleStudent,
			School:    "THPT A",
			ClassName: "10A1",
		},
	}
}

func reply(text string, risk domain.RiskLevel, insight string) classifierFunc {
	return func(_ context.Context, _ domain.ClassifyRequest) (domain.Classification, error) {
		return domain.Classification{Reply: text, Risk: risk, Insight: insight}, nil
	}
}

func TestSubmitYellowTurnAppendsBothMessagesWithoutAlert(t *testing.T) {
	f := newFixture(t, reply("Nghe có vẻ bạn đang mệt.", domain.RiskYellow, ""), triage.Config{})

	msg, err := f.engine.Submit(context.Background(), f.user, domain.PersonaFriend, "tôi rất mệt")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAssistant, msg.Role)
	require.Equal(t, domain.RiskYellow, msg.RiskLevel)

	msgs, err := f.sessions.History(context.Background(), f.user.ID, domain.PersonaFriend, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, domain.RoleUser, msgs[0].Role)
	require.Equal(t, "tôi rất mệt", msgs[0].Content)
	require.Equal(t, domain.RoleAssistant, msgs[1].Role)

	alerts, err := f.alerts.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, alerts)
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	f := newFixture(t, reply("ok", domain.RiskGreen, ""), triage.Config{})

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaFriend, text)
		require.ErrorIs(t, err, triage.ErrEmptyMessage)
	}

	msgs, err := f.sessions.History(context.Background(), f.user.ID, domain.PersonaFriend, 0)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestSubmitRejectsUnknownPersona(t *testing.T) {
	f := newFixture(t, reply("ok", domain.RiskGreen, ""), triage.Config{})

	_, err := f.engine.Submit(context.Background(), f.user, domain.Persona("GHOST"), "chào")
	require.Error(t, err)
}

func TestSubmitOrderMatchesCallOrder(t *testing.T) {
	n := 0
	cl := classifierFunc(func(_ context.Context, req domain.ClassifyRequest) (domain.Classification, error) {
		n++
		return domain.Classification{Reply: fmt.Sprintf("reply %d", n), Risk: domain.RiskGreen}, nil
	})
	f := newFixture(t, cl, triage.Config{})

	for i := 1; i <= 5; i++ {
		_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaListener, fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
	}

	msgs, err := f.sessions.History(context.Background(), f.user.ID, domain.PersonaListener, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i := 1; i <= 5; i++ {
		require.Equal(t, fmt.Sprintf("turn %d", i), msgs[(i-1)*2].Content)
		require.Equal(t, fmt.Sprintf("reply %d", i), msgs[(i-1)*2+1].Content)
	}
}

func TestContextWindowIsBounded(t *testing.T) {
	var lastHistory []*domain.Message
	cl := classifierFunc(func(_ context.Context, req domain.ClassifyRequest) (domain.Classification, error) {
		lastHistory = req.History
		return domain.Classification{Reply: "ok", Risk: domain.RiskGreen}, nil
	})
	f := newFixture(t, cl, triage.Config{ContextWindow: 4})

	for i := 0; i < 6; i++ {
		_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaExpert, fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
	}

	// 5 prior turns = 10 prior messages, the window keeps the last 4 and
	// never contains the message being submitted.
	require.Len(t, lastHistory, 4)
	require.Equal(t, "turn 3", lastHistory[0].Content)
	require.Equal(t, "turn 4", lastHistory[2].Content)
	for _, m := range lastHistory {
		require.NotEqual(t, "turn 5", m.Content)
	}
}

func TestInsightAppendedAndCappedKeepingSuffix(t *testing.T) {
	i := 0
	cl := classifierFunc(func(_ context.Context, _ domain.ClassifyRequest) (domain.Classification, error) {
		i++
		return domain.Classification{
			Reply:   "ok",
			Risk:    domain.RiskGreen,
			Insight: fmt.Sprintf("insight-%02d %s", i, strings.Repeat("x", 40)),
		}, nil
	})
	f := newFixture(t, cl, triage.Config{MemoryCap: 100})

	for n := 0; n < 10; n++ {
		_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaTeacher, "tin nhắn")
		require.NoError(t, err)
	}

	digest, err := f.memories.Get(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.LessOrEqual(t, len([]rune(digest.Insights)), 100)
	// The most recent insight survives truncation in full.
	require.True(t, strings.HasSuffix(digest.Insights, fmt.Sprintf("insight-10 %s", strings.Repeat("x", 40))))
	require.False(t, digest.LastUpdated.IsZero())
}

func TestOverlappingPersonaTurnsKeepBothInsights(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	cl := classifierFunc(func(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, error) {
		if req.Persona == domain.PersonaFriend {
			entered <- struct{}{}
			select {
			case <-release:
			case <-ctx.Done():
				return domain.Classification{}, ctx.Err()
			}
			return domain.Classification{Reply: "ok", Risk: domain.RiskGreen, Insight: "ngại tâm sự với gia đình"}, nil
		}
		return domain.Classification{Reply: "ok", Risk: domain.RiskGreen, Insight: "áp lực thi chuyển cấp"}, nil
	})
	f := newFixture(t, cl, triage.Config{})

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaFriend, "bạn ơi")
		done <- err
	}()
	<-entered

	// A full EXPERT turn lands its insight while FRIEND's classification is
	// still in flight. FRIEND's write must append to it, not overwrite it
	// from its pre-call snapshot.
	_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaExpert, "em lo kỳ thi quá")
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	digest, err := f.memories.Get(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Contains(t, digest.Insights, "áp lực thi chuyển cấp")
	require.Contains(t, digest.Insights, "ngại tâm sự với gia đình")
}

func TestEmptyInsightLeavesMemoryUntouched(t *testing.T) {
	f := newFixture(t, reply("ok", domain.RiskGreen, "   "), triage.Config{})

	_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaTeacher, "chào cô")
	require.NoError(t, err)

	digest, err := f.memories.Get(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Empty(t, digest.Insights)
}

func TestRedTurnEmitsAlertAndExposesLockState(t *testing.T) {
	f := newFixture(t, reply("Gọi ngay 1800 1567 nhé.", domain.RiskRed, "ý định tự hại"), triage.Config{})

	text := "tôi không muốn sống nữa"
	msg, err := f.engine.Submit(context.Background(), f.user, domain.PersonaExpert, text)
	require.NoError(t, err)
	require.Equal(t, domain.RiskRed, msg.RiskLevel)

	alerts, err := f.alerts.List(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, text, alerts[0].LastMessage)
	require.Equal(t, "minhanh", alerts[0].StudentName)
	require.Equal(t, "THPT A", alerts[0].School)
	require.Equal(t, "10A1", alerts[0].ClassName)
	require.Equal(t, domain.PersonaExpert, alerts[0].PersonaUsed)
	require.Equal(t, domain.RiskRed, alerts[0].RiskLevel)

	risk, err := f.engine.CurrentRisk(context.Background(), f.user.ID, domain.PersonaExpert)
	require.NoError(t, err)
	require.Equal(t, domain.RiskRed, risk)

	// The RED turn locks this thread only; other personas stay open.
	require.True(t, f.engine.Locked(f.user.ID, domain.PersonaExpert))
	require.False(t, f.engine.Locked(f.user.ID, domain.PersonaFriend))
}

func TestUnlockReleasesRedLock(t *testing.T) {
	f := newFixture(t, reply("Gọi ngay 1800 1567 nhé.", domain.RiskRed, ""), triage.Config{})

	_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaExpert, "tôi không muốn sống nữa")
	require.NoError(t, err)
	require.True(t, f.engine.Locked(f.user.ID, domain.PersonaExpert))

	f.engine.Unlock(f.user.ID, domain.PersonaExpert)
	require.False(t, f.engine.Locked(f.user.ID, domain.PersonaExpert))

	// The thread accepts turns again even though its last classification
	// is still RED.
	_, err = f.engine.Submit(context.Background(), f.user, domain.PersonaExpert, "em đỡ hơn rồi")
	require.NoError(t, err)
}

func TestOrangeEmitsExactlyOneAlert(t *testing.T) {
	f := newFixture(t, reply("Bạn chia sẻ với thầy cô nhé.", domain.RiskOrange, ""), triage.Config{})

	_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaFriend, "em bị bắt nạt ở lớp")
	require.NoError(t, err)

	alerts, err := f.alerts.List(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestTransportFailureAppendsFallbackOnly(t *testing.T) {
	cl := classifierFunc(func(_ context.Context, _ domain.ClassifyRequest) (domain.Classification, error) {
		return domain.Classification{}, errors.New("upstream unavailable")
	})
	f := newFixture(t, cl, triage.Config{})

	msg, err := f.engine.Submit(context.Background(), f.user, domain.PersonaFriend, "bạn ơi")
	require.NoError(t, err)
	require.Equal(t, triage.FallbackReply, msg.Content)
	require.Equal(t, domain.RiskGreen, msg.RiskLevel)

	msgs, err := f.sessions.History(context.Background(), f.user.ID, domain.PersonaFriend, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	digest, err := f.memories.Get(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Empty(t, digest.Insights)

	alerts, err := f.alerts.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, alerts)
}

func TestSubmitWhilePendingIsRejected(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	cl := classifierFunc(func(ctx context.Context, _ domain.ClassifyRequest) (domain.Classification, error) {
		entered <- struct{}{}
		select {
		case <-release:
			return domain.Classification{Reply: "ok", Risk: domain.RiskGreen}, nil
		case <-ctx.Done():
			return domain.Classification{}, ctx.Err()
		}
	})
	f := newFixture(t, cl, triage.Config{})

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaFriend, "tin thứ nhất")
		done <- err
	}()

	<-entered
	_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaFriend, "tin thứ hai")
	require.ErrorIs(t, err, triage.ErrPending)

	close(release)
	require.NoError(t, <-done)
}

func TestPersonasArePendingIndependently(t *testing.T) {
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	cl := classifierFunc(func(ctx context.Context, _ domain.ClassifyRequest) (domain.Classification, error) {
		entered <- struct{}{}
		select {
		case <-release:
			return domain.Classification{Reply: "ok", Risk: domain.RiskGreen}, nil
		case <-ctx.Done():
			return domain.Classification{}, ctx.Err()
		}
	})
	f := newFixture(t, cl, triage.Config{})

	done := make(chan error, 2)
	go func() {
		_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaFriend, "gửi cho bạn thân")
		done <- err
	}()
	<-entered

	// The FRIEND thread is pending; EXPERT is not and proceeds in parallel.
	go func() {
		_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaExpert, "gửi cho chuyên gia")
		done <- err
	}()
	<-entered

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
}

func TestCancelPendingAbortsWithoutSideEffects(t *testing.T) {
	entered := make(chan struct{}, 1)
	cl := classifierFunc(func(ctx context.Context, _ domain.ClassifyRequest) (domain.Classification, error) {
		entered <- struct{}{}
		<-ctx.Done()
		return domain.Classification{}, ctx.Err()
	})
	f := newFixture(t, cl, triage.Config{})

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaFriend, "đang gửi dở")
		done <- err
	}()

	<-entered
	require.True(t, f.engine.CancelPending(f.user.ID, domain.PersonaFriend))
	require.ErrorIs(t, <-done, triage.ErrCancelled)

	// Only the optimistically appended user message remains; no assistant
	// turn, no fallback, no memory write, no alert.
	msgs, err := f.sessions.History(context.Background(), f.user.ID, domain.PersonaFriend, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, domain.RoleUser, msgs[0].Role)

	digest, err := f.memories.Get(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Empty(t, digest.Insights)

	alerts, err := f.alerts.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, alerts)

	// The slot is free again once Submit has returned.
	require.False(t, f.engine.CancelPending(f.user.ID, domain.PersonaFriend))
}

func TestCurrentRiskDefaultsToGreen(t *testing.T) {
	f := newFixture(t, reply("ok", domain.RiskGreen, ""), triage.Config{})

	risk, err := f.engine.CurrentRisk(context.Background(), f.user.ID, domain.PersonaFriend)
	require.NoError(t, err)
	require.Equal(t, domain.RiskGreen, risk)
}

func TestResetMemoryDropsDigest(t *testing.T) {
	f := newFixture(t, reply("ok", domain.RiskGreen, "một insight"), triage.Config{})

	_, err := f.engine.Submit(context.Background(), f.user, domain.PersonaTeacher, "chào cô")
	require.NoError(t, err)

	require.NoError(t, f.engine.ResetMemory(context.Background(), f.user.ID))

	digest, err := f.memories.Get(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Empty(t, digest.Insights)
}
