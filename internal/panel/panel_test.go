package panel

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatarchiver/internal/domain"
	"chatarchiver/internal/settings"
)

type recordingSender struct {
	mu       sync.Mutex
	requests []domain.Request
	fail     map[string]error
	preview  string
}

func (r *recordingSender) Send(ctx context.Context, req domain.Request) (domain.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if err := r.fail[req.Action]; err != nil {
		return domain.Response{Error: err.Error()}, err
	}
	return domain.Response{Success: true, Preview: r.preview}, nil
}

func (r *recordingSender) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, req := range r.requests {
		out = append(out, req.Action)
	}
	return out
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	panel  *Panel
	sender *recordingSender
	store  *settings.MemoryStore
	clock  *clock
	url    string
}

func newFixture(url string) *fixture {
	f := &fixture{
		sender: &recordingSender{fail: map[string]error{}, preview: "user: Hello..."},
		store:  settings.NewMemoryStore(),
		clock:  &clock{t: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)},
		url:    url,
	}
	f.panel = New(Config{
		Sender:    f.sender,
		Settings:  f.store,
		ActiveURL: func(context.Context) (string, error) { return f.url, nil },
		Now:       f.clock.now,
		Logger:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	return f
}

func TestOpen_Defaults(t *testing.T) {
	f := newFixture("https://example.com/")

	v := f.panel.Open(context.Background())

	assert.Equal(t, View{IntervalMinutes: 10, Format: domain.FormatMarkdown, Status: StatusReady}, v)
	assert.Empty(t, f.sender.actions(), "no preview outside the chat page")
}

func TestOpen_DetectsChat(t *testing.T) {
	f := newFixture("https://claude.ai/chat/1")
	ctx := context.Background()
	on, interval, format := true, 15, domain.FormatJSON
	require.NoError(t, f.store.Update(ctx, domain.SettingsPatch{AutoSave: &on, IntervalMinutes: &interval, Format: &format}))

	v := f.panel.Open(ctx)

	assert.True(t, v.AutoSave)
	assert.Equal(t, 15, v.IntervalMinutes)
	assert.Equal(t, domain.FormatJSON, v.Format)
	assert.Equal(t, "user: Hello...", v.Preview)
	assert.Equal(t, StatusChatDetected, v.Status)
}

func TestStatus_ExpiresToReady(t *testing.T) {
	f := newFixture("https://claude.ai/chat/1")

	assert.Equal(t, StatusSaved, f.panel.SaveNow(context.Background()))
	f.clock.advance(2 * time.Second)
	assert.Equal(t, StatusSaved, f.panel.Status())
	f.clock.advance(time.Second)
	assert.Equal(t, StatusReady, f.panel.Status())
}

func TestSaveNow(t *testing.T) {
	f := newFixture("https://claude.ai/chat/1")
	ctx := context.Background()
	f.panel.SetFormat(ctx, domain.FormatText)

	assert.Equal(t, StatusSaved, f.panel.SaveNow(ctx))
	require.Len(t, f.sender.requests, 1)
	assert.Equal(t, domain.Request{Action: domain.ActionSaveChat, Format: "text"}, f.sender.requests[0])

	f.sender.fail[domain.ActionSaveChat] = errors.New("no tab")
	assert.Equal(t, StatusSaveError, f.panel.SaveNow(ctx))
}

func TestSaveNow_WrongPage(t *testing.T) {
	f := newFixture("https://example.com/")

	assert.Equal(t, StatusWrongPage, f.panel.SaveNow(context.Background()))
	assert.Empty(t, f.sender.actions())
}

func TestSetAutoSave_PersistsAndReports(t *testing.T) {
	f := newFixture("https://claude.ai/chat/1")
	ctx := context.Background()
	f.panel.Open(ctx)

	assert.Equal(t, StatusAutoSaveEnabled, f.panel.SetAutoSave(ctx, true))
	s, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Settings{AutoSave: true, IntervalMinutes: 10, Format: domain.FormatMarkdown}, s)

	assert.Equal(t, StatusAutoSaveDisabled, f.panel.SetAutoSave(ctx, false))
	s, err = f.store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, s.AutoSave)
}

func TestSetAutoSave_WrongPageReverts(t *testing.T) {
	f := newFixture("https://example.com/")
	ctx := context.Background()

	assert.Equal(t, StatusAutoSaveWrongPage, f.panel.SetAutoSave(ctx, true))
	assert.False(t, f.panel.View().AutoSave)
	assert.Empty(t, f.sender.actions())
}

func TestSetAutoSave_FailureReverts(t *testing.T) {
	f := newFixture("https://claude.ai/chat/1")
	ctx := context.Background()
	f.sender.fail[domain.ActionToggleAutoSave] = errors.New("rejected")

	assert.Equal(t, StatusAutoSaveError, f.panel.SetAutoSave(ctx, true))
	assert.False(t, f.panel.View().AutoSave)

	s, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, s.AutoSave, "failed toggle must not persist")
}

func TestSetInterval_RestartsWhenEnabled(t *testing.T) {
	f := newFixture("https://claude.ai/chat/1")
	ctx := context.Background()

	f.panel.SetInterval(ctx, 5)
	assert.Empty(t, f.sender.actions(), "no restart while autosave is off")

	f.panel.SetAutoSave(ctx, true)
	assert.Equal(t, StatusAutoSaveEnabled, f.panel.SetInterval(ctx, 30))

	require.Len(t, f.sender.requests, 2)
	assert.Equal(t, domain.Request{Action: domain.ActionToggleAutoSave, Enabled: true, Interval: 30}, f.sender.requests[1])

	s, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, s.IntervalMinutes)
}

func TestSetFormat_Persists(t *testing.T) {
	f := newFixture("https://example.com/")
	ctx := context.Background()

	f.panel.SetFormat(ctx, domain.FormatJSON)

	s, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatJSON, s.Format)
	assert.Equal(t, domain.FormatJSON, f.panel.View().Format)
}
