package detectors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempestmod/tempest/automod"
	"github.com/tempestmod/tempest/automod/config"
	"github.com/tempestmod/tempest/automod/event"
	"github.com/tempestmod/tempest/automod/punish"
	"github.com/tempestmod/tempest/automod/score"
)

func messageEvent(at time.Time, actor, text string) *event.Event {
	return &event.Event{
		Kind:        event.KindMessage,
		CommunityID: "c1",
		ActorID:     actor,
		Timestamp:   at,
		Message: &event.MessagePayload{
			ChannelID: "general",
			Text:      text,
		},
	}
}

func TestSpamRateRule(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// six distinct messages inside a 5-per-5s window: the sixth, and only
	// the sixth, is a violation
	for i := 0; i < 6; i++ {
		evt := messageEvent(base.Add(time.Duration(i)*300*time.Millisecond), "u1", fmt.Sprintf("msg %d", i))
		assert.NoError(eng.ProcessEvent(ctx, evt))
	}

	require.Len(t, sched.Scheduled, 1)
	p := sched.Scheduled[0]
	assert.Equal(punish.KindMute, p.Kind)
	assert.Equal("c1", p.CommunityID)
	assert.Equal("u1", p.ActorID)
	require.NotNil(t, p.ExpiresAt)

	// a different actor in the same community has an independent window
	evt := messageEvent(base.Add(2*time.Second), "u2", "hi there")
	assert.NoError(eng.ProcessEvent(ctx, evt))
	assert.Len(sched.Scheduled, 1)
}

func TestSpamRateRuleBelowThreshold(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// five messages is exactly the limit, not over it
	for i := 0; i < 5; i++ {
		evt := messageEvent(base.Add(time.Duration(i)*time.Second), "u1", fmt.Sprintf("msg %d", i))
		assert.NoError(eng.ProcessEvent(ctx, evt))
	}
	assert.Empty(sched.Scheduled)

	// a sixth message outside the window does not fire either
	evt := messageEvent(base.Add(time.Minute), "u1", "late message")
	assert.NoError(eng.ProcessEvent(ctx, evt))
	assert.Empty(sched.Scheduled)
}

func TestDuplicateMessageRule(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// matching ignores case and incidental whitespace; spaced out so the
	// spam window never accumulates
	texts := []string{"Hello World", "hello   world", "HELLO WORLD"}
	for i, text := range texts {
		evt := messageEvent(base.Add(time.Duration(i)*10*time.Second), "u1", text)
		assert.NoError(eng.ProcessEvent(ctx, evt))
	}

	require.Len(t, sched.Scheduled, 1)
	assert.Equal(punish.KindMute, sched.Scheduled[0].Kind)
}

func TestDuplicateMessageRuleDistinctContent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, text := range []string{"one fish", "two fish", "red fish"} {
		evt := messageEvent(base.Add(time.Duration(i)*10*time.Second), "u1", text)
		assert.NoError(eng.ProcessEvent(ctx, evt))
	}
	assert.Empty(sched.Scheduled)
}

func TestFingerprintNormalization(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Fingerprint("Hello World"), Fingerprint("hello   world"))
	assert.Equal(Fingerprint("Hello World"), Fingerprint("  HELLO\tWORLD  "))
	assert.NotEqual(Fingerprint("hello world"), Fingerprint("hello worlds"))
}

func TestMassMentionRule(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	evt := messageEvent(base, "u1", "hey everyone look")
	evt.Message.MentionCount = 4
	assert.NoError(eng.ProcessEvent(ctx, evt))
	assert.Empty(sched.Scheduled)

	evt = messageEvent(base.Add(10*time.Second), "u1", "hey everyone look again")
	evt.Message.MentionCount = 5
	assert.NoError(eng.ProcessEvent(ctx, evt))
	assert.Len(sched.Scheduled, 1)
}

func TestCapsRatioRule(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// short shouting is exempt
	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base, "u1", "OK!!")))
	assert.Empty(sched.Scheduled)

	// long mixed-case is fine
	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base.Add(10*time.Second), "u1", "This is a normal sentence.")))
	assert.Empty(sched.Scheduled)

	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base.Add(20*time.Second), "u1", "STOP SHOUTING AT EVERYONE")))
	assert.Len(sched.Scheduled, 1)
}

func TestCapsRatio(t *testing.T) {
	assert := assert.New(t)

	ratio, letters := CapsRatio("ABCdef")
	assert.InDelta(0.5, ratio, 0.001)
	assert.Equal(6, letters)

	// digits and punctuation are not letters
	ratio, letters = CapsRatio("A1!b2?")
	assert.InDelta(0.5, ratio, 0.001)
	assert.Equal(2, letters)

	ratio, letters = CapsRatio("12345")
	assert.Equal(0.0, ratio)
	assert.Equal(0, letters)
}

func TestInviteLinkRule(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// whitelisted destination
	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base, "u1", "come hang out at discord.gg/friendly")))
	assert.Empty(sched.Scheduled)

	// invite back into this community itself
	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base.Add(10*time.Second), "u1", "rejoin via discord.gg/c1")))
	assert.Empty(sched.Scheduled)

	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base.Add(20*time.Second), "u1", "better server: https://discord.gg/evilcode")))
	assert.Len(sched.Scheduled, 1)
}

func TestWordFilterRule(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base, "u1", "a perfectly fine message")))
	assert.Empty(sched.Scheduled)

	// matching is case-insensitive
	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base.Add(10*time.Second), "u1", "this is ForBidden content")))
	assert.Len(sched.Scheduled, 1)
}

func TestJoinAgeRule(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	join := func(actor string, createdAt time.Time) *event.Event {
		return &event.Event{
			Kind:        event.KindJoin,
			CommunityID: "c1",
			ActorID:     actor,
			Timestamp:   base,
			Join:        &event.JoinPayload{AccountCreatedAt: createdAt},
		}
	}

	// established account
	assert.NoError(eng.ProcessEvent(ctx, join("u1", base.Add(-30*24*time.Hour))))
	assert.Empty(sched.Scheduled)

	// account creation time unknown: skip, don't flag
	assert.NoError(eng.ProcessEvent(ctx, join("u2", time.Time{})))
	assert.Empty(sched.Scheduled)

	// two-hour-old account
	assert.NoError(eng.ProcessEvent(ctx, join("u3", base.Add(-2*time.Hour))))
	assert.Len(sched.Scheduled, 1)
	assert.Equal("u3", sched.Scheduled[0].ActorID)
}

func TestImmuneActorSkipsDetectors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// role-admin resolves to the community's immunity level
	for i := 0; i < 10; i++ {
		evt := messageEvent(base.Add(time.Duration(i)*100*time.Millisecond), "admin1", "SPAM SPAM SPAM FORBIDDEN discord.gg/evilcode")
		evt.ActorRoles = []string{"role-admin"}
		assert.NoError(eng.ProcessEvent(ctx, evt))
	}
	assert.Empty(sched.Scheduled)
}

func TestContentScoreRule(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	community := automod.TestCommunity("c1")
	community.Detectors.ContentScore = &config.ContentScoreConfig{Threshold: 0.9}
	eng.Config.(*config.MemStore).Communities["c1"] = community

	scores := score.NewMockClient()
	scores.TextScores["some mild disagreement"] = 0.4
	scores.TextScores["extremely abusive tirade"] = 0.95
	scores.MediaScores["https://cdn.example/shock.png"] = 0.93
	eng.Scores = scores

	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base, "u1", "some mild disagreement")))
	assert.Empty(sched.Scheduled)

	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base.Add(10*time.Second), "u1", "extremely abusive tirade")))
	assert.Len(sched.Scheduled, 1)

	// the worst attachment score counts too
	evt := messageEvent(base.Add(20*time.Second), "u2", "look at this")
	evt.Message.MediaURLs = []string{"https://cdn.example/shock.png"}
	assert.NoError(eng.ProcessEvent(ctx, evt))
	assert.Len(sched.Scheduled, 2)
}

func TestMisconfiguredDetectorIsSkipped(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := automod.EngineTestFixture(DefaultRules())
	sched := eng.Scheduler.(*automod.MockScheduler)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// a zero window is a config error; the spam detector must be skipped
	// while the others still run
	community := automod.TestCommunity("c1")
	community.Detectors.Spam.Window = 0
	eng.Config.(*config.MemStore).Communities["c1"] = community

	// wordfilter still fires even though spam is broken
	assert.NoError(eng.ProcessEvent(ctx, messageEvent(base, "u1", "this is ForBidden content")))
	assert.Len(sched.Scheduled, 1)
}
