package forward

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkuds/tgcopy/internal/bus"
	"github.com/hkuds/tgcopy/internal/platform"
	"github.com/hkuds/tgcopy/internal/platform/platformtest"
)

const (
	srcID int64 = -1001
	dstID int64 = -1002
)

type memJournal struct {
	ids      map[int]bool
	recorded []int
}

func newMemJournal(ids ...int) *memJournal {
	j := &memJournal{ids: make(map[int]bool)}
	for _, id := range ids {
		j.ids[id] = true
	}
	return j
}

func (j *memJournal) IsRecorded(id int) bool { return j.ids[id] }

func (j *memJournal) Record(id int) error {
	j.ids[id] = true
	j.recorded = append(j.recorded, id)
	return nil
}

type sleepLog struct {
	calls []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

// of returns the recorded sleeps of duration d.
func (s *sleepLog) of(d time.Duration) []time.Duration {
	var out []time.Duration
	for _, c := range s.calls {
		if c == d {
			out = append(out, c)
		}
	}
	return out
}

// textHistory returns n text messages "m1".."mn", newest first.
func textHistory(n int) []platform.Message {
	msgs := make([]platform.Message, 0, n)
	for id := n; id >= 1; id-- {
		msgs = append(msgs, platformtest.TextMessage(id, fmt.Sprintf("m%d", id)))
	}
	return msgs
}

type pipelineEnv struct {
	client *platformtest.Client
	rec    *bus.Recorder
	sleeps *sleepLog
	src    platform.Entity
	dst    platform.Entity
}

func newPipelineEnv(t *testing.T, history ...platform.Message) *pipelineEnv {
	t.Helper()
	client := platformtest.NewClient()
	client.AddChat(srcID, "Source", history...)
	client.AddChat(dstID, "Destination")

	src, err := client.GetEntity(context.Background(), srcID)
	require.NoError(t, err)
	dst, err := client.GetEntity(context.Background(), dstID)
	require.NoError(t, err)

	return &pipelineEnv{client: client, rec: &bus.Recorder{}, sleeps: &sleepLog{}, src: src, dst: dst}
}

func (e *pipelineEnv) pipeline(f FilterConfig, j Journal) *Pipeline {
	p := NewPipeline(PipelineOptions{
		Client:  e.client,
		Filter:  f,
		Journal: j,
		Report:  bus.NewReporter(e.rec, "run-test"),
	})
	p.sleep = e.sleeps.sleep
	return p
}

func (e *pipelineEnv) progress() []int {
	var out []int
	for _, ev := range e.rec.Filter(bus.KindProgress) {
		out = append(out, ev.Percent)
	}
	return out
}

func sentTexts(sent []platformtest.Sent) []string {
	var out []string
	for _, s := range sent {
		if s.Media == nil {
			out = append(out, s.Text)
		} else {
			out = append(out, fmt.Sprintf("media:%d", s.MessageID))
		}
	}
	return out
}

func TestPipelineMixedHistory(t *testing.T) {
	env := newPipelineEnv(t,
		platformtest.DocumentMessage(3, "video/mp4"),
		platformtest.PhotoMessage(2),
		platformtest.TextMessage(1, "hello"),
	)

	state, err := env.pipeline(FilterConfig{IncludeText: true, IncludeMedia: true}, nil).
		Run(context.Background(), env.src, env.dst)
	require.NoError(t, err)

	assert.Equal(t, 3, state.Matched)
	assert.Equal(t, 3, state.Processed)
	assert.Equal(t, "run-test", state.RunID)
	assert.Equal(t, []string{"hello", "media:2", "media:3"}, sentTexts(env.client.SentTo()))
	assert.Equal(t, []int{33, 66, 100}, env.progress())

	assert.Equal(t, []string{
		"Starting to copy messages...",
		"Found 3 messages to copy...",
		"Copied Text message (1/3)",
		"Copied Photo message (2/3)",
		"Copied Video message (3/3)",
		"Finished copying messages!",
	}, env.rec.Texts(bus.LevelInfo))
	assert.Empty(t, env.rec.Texts(bus.LevelError))
	assert.Equal(t, []time.Duration{DefaultPacing, DefaultPacing, DefaultPacing}, env.sleeps.calls)
}

func TestPipelineNothingSelected(t *testing.T) {
	env := newPipelineEnv(t, textHistory(3)...)

	state, err := env.pipeline(FilterConfig{}, nil).Run(context.Background(), env.src, env.dst)
	require.NoError(t, err)

	assert.Zero(t, state.Matched)
	assert.Zero(t, state.Processed)
	assert.Empty(t, env.client.SentTo())
	assert.Empty(t, env.progress())
	assert.Empty(t, env.sleeps.calls)
	assert.Equal(t, []string{
		"Starting to copy messages...",
		"Found 0 messages to copy...",
		"No messages to copy",
		"Finished copying messages!",
	}, env.rec.Texts(bus.LevelInfo))
}

func TestPipelineSendFailureDoesNotStopRun(t *testing.T) {
	env := newPipelineEnv(t, textHistory(5)...)
	env.client.SendTextErr = func(_ platform.Entity, text string) error {
		if text == "m2" {
			return errors.New("FLOOD_WAIT_3")
		}
		return nil
	}

	state, err := env.pipeline(FilterConfig{IncludeText: true}, nil).Run(context.Background(), env.src, env.dst)
	require.NoError(t, err)

	assert.Equal(t, 5, state.Matched)
	assert.Equal(t, 4, state.Processed)
	assert.Equal(t, 1, state.Failed)
	assert.Equal(t, []string{"m1", "m3", "m4", "m5"}, sentTexts(env.client.SentTo()))
	assert.Equal(t, []int{20, 40, 60, 80}, env.progress())

	errs := env.rec.Texts(bus.LevelError)
	require.Len(t, errs, 1)
	assert.True(t, strings.HasPrefix(errs[0], "Error copying message: "), errs[0])
	assert.Contains(t, errs[0], "FLOOD_WAIT_3")

	// Pacing applies to the failed message too.
	assert.Len(t, env.sleeps.calls, 5)
}

func TestPipelineProgressIsMonotonic(t *testing.T) {
	env := newPipelineEnv(t, textHistory(7)...)
	env.client.SendTextErr = func(_ platform.Entity, text string) error {
		if text == "m3" || text == "m6" {
			return errors.New("boom")
		}
		return nil
	}

	state, err := env.pipeline(FilterConfig{IncludeText: true}, nil).Run(context.Background(), env.src, env.dst)
	require.NoError(t, err)

	progress := env.progress()
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	assert.LessOrEqual(t, state.Processed, state.Matched)
}

func TestPipelineSendOrderIsReverseOfEnumeration(t *testing.T) {
	history := textHistory(6)
	env := newPipelineEnv(t, history...)

	_, err := env.pipeline(FilterConfig{IncludeText: true}, nil).Run(context.Background(), env.src, env.dst)
	require.NoError(t, err)

	sent := sentTexts(env.client.SentTo())
	require.Len(t, sent, len(history))
	for i, msg := range history {
		assert.Equal(t, msg.Text, sent[len(sent)-1-i])
	}
}

func TestPipelineTextAndMediaSentSeparately(t *testing.T) {
	captioned := platformtest.PhotoMessage(1)
	captioned.Text = "caption"
	env := newPipelineEnv(t, captioned)

	state, err := env.pipeline(FilterConfig{IncludeText: true}, nil).Run(context.Background(), env.src, env.dst)
	require.NoError(t, err)

	assert.Equal(t, 1, state.Processed)
	assert.Equal(t, []string{"caption", "media:1"}, sentTexts(env.client.SentTo()))
	assert.Contains(t, env.rec.Texts(bus.LevelInfo), "Copied Text message (1/1)")
}

func TestPipelineTextFailureSkipsMedia(t *testing.T) {
	captioned := platformtest.PhotoMessage(1)
	captioned.Text = "caption"
	env := newPipelineEnv(t, captioned)
	env.client.SendTextErr = func(platform.Entity, string) error { return errors.New("denied") }

	state, err := env.pipeline(FilterConfig{IncludeText: true}, nil).Run(context.Background(), env.src, env.dst)
	require.NoError(t, err)

	assert.Zero(t, state.Processed)
	assert.Empty(t, env.client.SentTo())
	assert.Len(t, env.rec.Texts(bus.LevelError), 1)
}

func TestPipelineCancelDuringEnumeration(t *testing.T) {
	env := newPipelineEnv(t, textHistory(5)...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.client.OnYield = func(index int, _ platform.Message) {
		if index == 1 {
			cancel()
		}
	}

	state, err := env.pipeline(FilterConfig{IncludeText: true}, nil).Run(ctx, env.src, env.dst)
	require.NoError(t, err)

	assert.Equal(t, 2, state.Matched)
	assert.Zero(t, state.Processed)
	assert.Empty(t, env.client.SentTo())
	assert.Contains(t, env.rec.Texts(bus.LevelInfo), "Finished copying messages!")
}

func TestPipelineCancelLetsInFlightSendFinish(t *testing.T) {
	env := newPipelineEnv(t, textHistory(4)...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.client.SendTextErr = func(_ platform.Entity, text string) error {
		if text == "m2" {
			cancel()
		}
		return nil
	}

	state, err := env.pipeline(FilterConfig{IncludeText: true}, nil).Run(ctx, env.src, env.dst)
	require.NoError(t, err)

	assert.Equal(t, 2, state.Processed)
	assert.Equal(t, []string{"m1", "m2"}, sentTexts(env.client.SentTo()))
	assert.Equal(t, []int{25, 50}, env.progress())
}

func TestPipelineEnumerationFailure(t *testing.T) {
	env := newPipelineEnv(t, textHistory(3)...)
	env.client.IterErr = errors.New("CHANNEL_PRIVATE")
	env.client.IterErrAfter = 1

	_, err := env.pipeline(FilterConfig{IncludeText: true}, nil).Run(context.Background(), env.src, env.dst)
	require.ErrorIs(t, err, ErrEnumerate)
	assert.Contains(t, err.Error(), "CHANNEL_PRIVATE")
	assert.Empty(t, env.client.SentTo())
}

func TestPipelineDisconnectDuringEnumeration(t *testing.T) {
	env := newPipelineEnv(t, textHistory(3)...)
	env.client.IterErr = errors.Wrap(platform.ErrDisconnected, "read history")

	_, err := env.pipeline(FilterConfig{IncludeText: true}, nil).Run(context.Background(), env.src, env.dst)
	require.ErrorIs(t, err, platform.ErrDisconnected)
	assert.NotErrorIs(t, err, ErrEnumerate)
}

func TestPipelineDisconnectDuringSend(t *testing.T) {
	env := newPipelineEnv(t, textHistory(3)...)
	env.client.SendTextErr = func(_ platform.Entity, text string) error {
		if text == "m2" {
			return errors.Wrap(platform.ErrDisconnected, "send")
		}
		return nil
	}

	state, err := env.pipeline(FilterConfig{IncludeText: true}, nil).Run(context.Background(), env.src, env.dst)
	require.ErrorIs(t, err, platform.ErrDisconnected)
	assert.Equal(t, 1, state.Processed)
	assert.Empty(t, env.rec.Texts(bus.LevelError))
	assert.NotContains(t, env.rec.Texts(bus.LevelInfo), "Finished copying messages!")
}

func TestPipelineJournal(t *testing.T) {
	env := newPipelineEnv(t, textHistory(4)...)
	env.client.SendTextErr = func(_ platform.Entity, text string) error {
		if text == "m3" {
			return errors.New("boom")
		}
		return nil
	}
	j := newMemJournal(1, 2)

	state, err := env.pipeline(FilterConfig{IncludeText: true}, j).Run(context.Background(), env.src, env.dst)
	require.NoError(t, err)

	assert.Equal(t, 2, state.Skipped)
	assert.Equal(t, 2, state.Matched)
	assert.Equal(t, []string{"m4"}, sentTexts(env.client.SentTo()))
	assert.Equal(t, []int{4}, j.recorded)
}

func TestRunStatePercent(t *testing.T) {
	assert.Zero(t, RunState{}.Percent())
	assert.Equal(t, 33, RunState{Processed: 1, Matched: 3}.Percent())
	assert.Equal(t, 100, RunState{Processed: 3, Matched: 3}.Percent())
}
