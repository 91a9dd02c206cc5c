package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/config"
	"github.com/dmitrijs2005/leadkeeper/internal/core"
	"github.com/dmitrijs2005/leadkeeper/internal/export"
	"github.com/dmitrijs2005/leadkeeper/internal/form"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func (s *syncBuffer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b.Reset()
}

type fakeUploader struct {
	body []byte
	err  error
}

func (u *fakeUploader) Upload(_ context.Context, f export.Format, body []byte, _ time.Time) (string, string, error) {
	u.body = body
	if u.err != nil {
		return "", "", u.err
	}
	return "exports/2025/01/02/x." + string(f), "https://s3.example/x", nil
}

type fakeFeed struct {
	entries []models.Entry
	err     error
	online  bool
	gotSess *int64
}

func (f *fakeFeed) Close() error { return nil }

func (f *fakeFeed) Ping(context.Context) error {
	if f.online {
		return nil
	}
	return errors.New("unavailable")
}

func (f *fakeFeed) Follow(ctx context.Context, sessionID *int64, fn func(models.Entry)) error {
	f.gotSess = sessionID
	for _, e := range f.entries {
		fn(e)
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}

// newTestApp builds a console over a fresh local store. input feeds
// prompts and confirmations.
func newTestApp(t *testing.T, input string, mutate ...func(*config.Config)) (*App, *syncBuffer) {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.LocalStorePath = filepath.Join(t.TempDir(), "console.db")
	cfg.PollInterval = 20 * time.Millisecond
	cfg.PublicBaseURL = "https://leads.example/"
	cfg.TimeZone = "UTC"
	for _, m := range mutate {
		m(cfg)
	}

	cr, err := core.Build(ctx, cfg, logging.Nop(), nil)
	require.NoError(t, err)

	out := &syncBuffer{}
	a := newApp(cfg, logging.Nop(), cr, out, scan(input))
	require.NoError(t, a.view.Open(ctx))
	t.Cleanup(a.Close)
	return a, out
}

func assumeYes(c *config.Config) { c.AssumeYes = true }

func seed(t *testing.T, a *App, pin string, names ...string) *models.Session {
	t.Helper()
	ctx := context.Background()
	s, err := a.core.Sessions.Create(ctx, pin, "Booth "+pin, "", nil)
	require.NoError(t, err)
	for i, n := range names {
		res, err := a.core.Gateway.InsertEntry(ctx, models.NewEntry{
			Name:       n,
			Phone:      "0101234567" + string(rune('0'+i)),
			SessionPin: pin,
		})
		require.NoError(t, err)
		a.view.HandleEntry(res.Entry)
	}
	return s
}

func idArg(s *models.Session) string {
	return strconv.FormatInt(s.ID, 10)
}

func TestCreate_PrintsMobileLink(t *testing.T) {
	a, out := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.Create(ctx, "1234", "Spring Expo"))
	assert.Contains(t, out.String(), "Created session")
	assert.Contains(t, out.String(), "Mobile link: https://leads.example/mobile?pin=1234")

	require.NotNil(t, a.view.Selected())

	out.Reset()
	require.NoError(t, a.Sessions(ctx))
	assert.Contains(t, out.String(), "Spring Expo")
	assert.Contains(t, out.String(), "1234")
}

func TestCreate_DuplicatePin(t *testing.T) {
	a, out := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.Create(ctx, "1234", ""))
	require.Error(t, a.Create(ctx, "1234", "Again"))
	assert.Contains(t, out.String(), "PIN 1234 is already in use")
}

func TestSessions_Empty(t *testing.T) {
	a, out := newTestApp(t, "")
	require.NoError(t, a.Sessions(context.Background()))
	assert.Equal(t, "No sessions\n", out.String())
}

func TestSelect(t *testing.T) {
	a, out := newTestApp(t, "")
	ctx := context.Background()
	s1 := seed(t, a, "1111", "Kim Minji", "Lee Jun")
	seed(t, a, "2222", "Park Sora")

	require.NoError(t, a.Select(ctx, "all"))
	assert.Len(t, a.view.Rows(), 3)

	require.NoError(t, a.Select(ctx, idArg(s1)))
	assert.Len(t, a.view.Rows(), 2)
	assert.Equal(t, s1.ID, *a.view.Selected())
	assert.Equal(t, fmt.Sprintf("(local, session %d)", s1.ID), a.getStatus())

	require.Error(t, a.Select(ctx, "99"))
	require.Error(t, a.Select(ctx, "abc"))
	assert.Contains(t, out.String(), `invalid session id "abc"`)

	require.NoError(t, a.Select(ctx, "all"))
	assert.Nil(t, a.view.Selected())
	assert.Equal(t, "(local)", a.getStatus())
}

func TestToggle(t *testing.T) {
	a, out := newTestApp(t, "")
	ctx := context.Background()
	s := seed(t, a, "1234")

	require.NoError(t, a.Toggle(ctx, idArg(s)))
	assert.Contains(t, out.String(), fmt.Sprintf("Session %d is now inactive", s.ID))
	got, _ := a.core.Sessions.Lookup(s.ID)
	assert.False(t, got.IsActive)

	require.NoError(t, a.Toggle(ctx, idArg(s)))
	assert.Contains(t, out.String(), fmt.Sprintf("Session %d is now active", s.ID))

	require.Error(t, a.Toggle(ctx, "777"))
}

func TestListAndStats(t *testing.T) {
	a, out := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.List(ctx))
	assert.Contains(t, out.String(), "No entries")

	seed(t, a, "1234", "Kim Minji", "Lee Jun")
	out.Reset()
	require.NoError(t, a.List(ctx))
	assert.Contains(t, out.String(), "010-1234-5670")
	assert.Contains(t, out.String(), "Lee Jun")
	assert.Contains(t, out.String(), "2 entries")

	out.Reset()
	require.NoError(t, a.Stats(ctx))
	assert.Equal(t, "Total: 2  Today: 2  Last 7 days: 2  Last 30 days: 2\n", out.String())
}

func TestDelete_RefusedWithoutTerminal(t *testing.T) {
	stubTerminal(t, false)
	a, out := newTestApp(t, "")
	s := seed(t, a, "1234", "Kim Minji")

	err := a.Delete(context.Background(), idArg(s))
	require.ErrorIs(t, err, errNotInteractive)
	assert.Contains(t, out.String(), "-yes")
	assert.Len(t, a.view.Sessions(), 1)
	assert.Len(t, a.view.Rows(), 1)
}

func TestDelete_Cancelled(t *testing.T) {
	stubTerminal(t, true)
	a, out := newTestApp(t, "n\n")
	s := seed(t, a, "1234", "Kim Minji")

	require.NoError(t, a.Delete(context.Background(), idArg(s)))
	assert.Contains(t, out.String(), `Delete session "Booth 1234" (PIN 1234) and its 1 entries?`)
	assert.Contains(t, out.String(), "Cancelled")
	assert.Len(t, a.view.Sessions(), 1)
}

func TestDelete_Confirmed(t *testing.T) {
	stubTerminal(t, true)
	a, out := newTestApp(t, "y\n")
	s := seed(t, a, "1234", "Kim Minji", "Lee Jun")

	require.NoError(t, a.Delete(context.Background(), idArg(s)))
	assert.Contains(t, out.String(), fmt.Sprintf("Deleted session %d and 2 entries", s.ID))
	assert.Empty(t, a.view.Sessions())
	assert.Empty(t, a.view.Rows())
}

func TestDelete_UnknownSession(t *testing.T) {
	a, _ := newTestApp(t, "", assumeYes)
	require.Error(t, a.Delete(context.Background(), "555"))
}

func TestClear_AssumeYes(t *testing.T) {
	stubTerminal(t, false)
	a, out := newTestApp(t, "", assumeYes)
	seed(t, a, "1234", "Kim Minji", "Lee Jun")

	require.NoError(t, a.Clear(context.Background()))
	assert.Contains(t, out.String(), "Deleted 2 entries")
	assert.Empty(t, a.view.Rows())
	assert.Len(t, a.view.Sessions(), 1)
}

func TestClear_Refused(t *testing.T) {
	stubTerminal(t, false)
	a, _ := newTestApp(t, "")
	seed(t, a, "1234", "Kim Minji")

	require.Error(t, a.Clear(context.Background()))
	assert.Len(t, a.view.Rows(), 1)
}

func TestRefresh(t *testing.T) {
	a, out := newTestApp(t, "")
	ctx := context.Background()
	_, err := a.core.Gateway.InsertEntry(ctx, models.NewEntry{Name: "Kim Minji", Phone: "01012345678"})
	require.NoError(t, err)

	require.NoError(t, a.Refresh(ctx))
	assert.Contains(t, out.String(), "Reloaded 1 entries")
}

func TestExport_File(t *testing.T) {
	a, out := newTestApp(t, "")
	seed(t, a, "1234", "Kim Minji")
	path := filepath.Join(t.TempDir(), "leads.csv")

	require.NoError(t, a.Export(context.Background(), "csv", path))
	assert.Contains(t, out.String(), "Exported 1 entries to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\xEF\xBB\xBFNo,Name,Phone,Collected At\r\n"))
	assert.Contains(t, string(data), `"Kim Minji"`)
}

func TestExport_DefaultFilename(t *testing.T) {
	a, _ := newTestApp(t, "")
	t.Chdir(t.TempDir())

	orig := now
	now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	t.Cleanup(func() { now = orig })

	require.NoError(t, a.Export(context.Background(), "json", ""))
	_, err := os.Stat(filepath.Join("exports", "entries_20250304_050607.json"))
	require.NoError(t, err)
}

func TestExport_Errors(t *testing.T) {
	a, out := newTestApp(t, "")
	ctx := context.Background()

	require.Error(t, a.Export(ctx, "xml", ""))
	require.Error(t, a.Export(ctx, "csv", "s3"))
	assert.Contains(t, out.String(), "S3 export is not configured")
	require.Error(t, a.Export(ctx, "csv", t.TempDir()))
}

func TestExport_S3(t *testing.T) {
	a, out := newTestApp(t, "")
	seed(t, a, "1234", "Kim Minji")
	up := &fakeUploader{}
	a.uploader = up

	require.NoError(t, a.Export(context.Background(), "txt", "s3"))
	assert.Contains(t, out.String(), "Uploaded exports/2025/01/02/x.txt")
	assert.Contains(t, out.String(), "https://s3.example/x")
	assert.Contains(t, string(up.body), "Kim Minji")

	up.err = errors.New("denied")
	require.Error(t, a.Export(context.Background(), "txt", "s3"))
}

func TestSubmit_StoresAndRemembers(t *testing.T) {
	a, out := newTestApp(t, "Kim Minji\n010-1234-5678\n1234\nLee Jun\n01099998888\n\n")
	ctx := context.Background()
	seed(t, a, "1234")

	require.NoError(t, a.Submit(ctx))
	assert.Contains(t, out.String(), form.MsgStored)
	assert.NotContains(t, out.String(), form.MsgReturning)
	require.Len(t, a.view.Rows(), 1)
	assert.Equal(t, "010-1234-5678", a.view.Rows()[0].Phone)

	out.Reset()
	require.NoError(t, a.Submit(ctx))
	assert.Contains(t, out.String(), form.MsgReturning)
	assert.Len(t, a.view.Rows(), 2)
}

func TestSubmit_Invalid(t *testing.T) {
	a, out := newTestApp(t, "Kim Minji\n12345\n\n")

	require.Error(t, a.Submit(context.Background()))
	assert.Contains(t, out.String(), "Invalid phone: phone number format is invalid")
	assert.Equal(t, form.Idle, a.form.State())
}

func TestSubmit_UnknownPin(t *testing.T) {
	a, out := newTestApp(t, "Kim Minji\n01012345678\n9999\n")

	require.Error(t, a.Submit(context.Background()))
	assert.Contains(t, out.String(), form.MsgInvalidSession)
	assert.Equal(t, form.Idle, a.form.State())
}

func TestSubmit_InputEnds(t *testing.T) {
	a, _ := newTestApp(t, "Kim Minji\n")
	require.Error(t, a.Submit(context.Background()))
}

func TestWatch_PrintsNewEntries(t *testing.T) {
	a, out := newTestApp(t, "")
	ctx := context.Background()
	seed(t, a, "1234", "Kim Minji")

	require.NoError(t, a.Watch(ctx))
	assert.True(t, a.isWatching())
	assert.Contains(t, a.getStatus(), "watching")

	_, err := a.core.Gateway.InsertEntry(ctx, models.NewEntry{Name: "Lee Jun", Phone: "01099998888", SessionPin: "1234"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Lee Jun")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "010-9999-8888")
	assert.NotContains(t, out.String(), "Kim Minji")

	require.NoError(t, a.Watch(ctx))
	assert.False(t, a.isWatching())
	assert.Contains(t, out.String(), "Stopped watching")
}

func TestFollow(t *testing.T) {
	a, out := newTestApp(t, "\n")
	sid := int64(3)
	a.feed = &fakeFeed{entries: []models.Entry{{ID: 42, Name: "Kim Minji", Phone: "01012345678", SessionID: &sid}}}

	require.NoError(t, a.Follow(context.Background()))
	assert.Contains(t, out.String(), "live #42 Kim Minji 010-1234-5678 (session 3)")
}

func TestFollow_PassesSelection(t *testing.T) {
	a, _ := newTestApp(t, "\n")
	s := seed(t, a, "1234")
	require.NoError(t, a.Select(context.Background(), idArg(s)))
	f := &fakeFeed{}
	a.feed = f

	require.NoError(t, a.Follow(context.Background()))
	require.NotNil(t, f.gotSess)
	assert.Equal(t, s.ID, *f.gotSess)
}

func TestFollow_Errors(t *testing.T) {
	a, out := newTestApp(t, "\n")
	require.Error(t, a.Follow(context.Background()))
	assert.Contains(t, out.String(), "live feed is not configured")

	a.feed = &fakeFeed{err: errors.New("server unavailable")}
	require.Error(t, a.Follow(context.Background()))
	assert.Contains(t, out.String(), "server unavailable")
}

func TestStatus(t *testing.T) {
	a, out := newTestApp(t, "")
	a.feed = &fakeFeed{online: true}
	a.setFeedOnline(true)

	require.NoError(t, a.Status(context.Background()))
	s := out.String()
	assert.Contains(t, s, "Storage mode:  local")
	assert.Contains(t, s, "Remote store:  not configured")
	assert.Contains(t, s, "S3 export:     not configured")
	assert.Contains(t, s, "Live feed:     online (127.0.0.1:50051)")
	assert.Contains(t, s, "Selection:     all")
}

func TestStartOnlineStatusWatcher(t *testing.T) {
	a, _ := newTestApp(t, "")
	f := &fakeFeed{online: true}
	a.feed = f

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.StartOnlineStatusWatcher(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, a.feedOnline.Load, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestRoot_RunsREPLUntilExit(t *testing.T) {
	silencePrintln(t)
	a, out := newTestApp(t, "create 1234 Expo\nsessions\nexit\n")

	a.Root(context.Background())
	assert.Contains(t, out.String(), "Welcome to the leadkeeper console")
	assert.Contains(t, out.String(), "(PIN 1234)")
	assert.Contains(t, out.String(), "Expo")
}
