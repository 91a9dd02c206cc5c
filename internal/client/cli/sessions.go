package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dmitrijs2005/leadkeeper/internal/admin"
	"github.com/dmitrijs2005/leadkeeper/internal/common"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid session id %q", arg)
	}
	return id, nil
}

func (a *App) Status(ctx context.Context) error {
	fmt.Fprintf(a.out, "Storage mode:  %s\n", a.view.Mode())
	fmt.Fprintf(a.out, "Remote store:  %s\n", configured(a.config.RemoteConfigured()))
	fmt.Fprintf(a.out, "S3 export:     %s\n", configured(a.uploader != nil))

	feed := "disabled"
	if a.feed != nil {
		feed = "offline"
		if a.feedOnline.Load() {
			feed = "online"
		}
		feed = fmt.Sprintf("%s (%s)", feed, a.config.ServerAddr)
	}
	fmt.Fprintf(a.out, "Live feed:     %s\n", feed)

	selected := "all"
	if id := a.view.Selected(); id != nil {
		selected = strconv.FormatInt(*id, 10)
	}
	fmt.Fprintf(a.out, "Selection:     %s\n", selected)
	return nil
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func (a *App) Sessions(ctx context.Context) error {
	list := a.view.Sessions()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No sessions")
		return nil
	}

	loc := a.config.Location()
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPIN\tTITLE\tACTIVE\tTOTAL\tTODAY\tLAST ENTRY")
	for _, s := range list {
		last := "-"
		if s.LastEntryAt != nil {
			last = s.LastEntryAt.In(loc).Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%d\t%d\t%s\n", s.ID, s.Pin, s.Title, s.IsActive, s.TotalEntries, s.TodayEntries, last)
	}
	return tw.Flush()
}

func (a *App) Select(ctx context.Context, arg string) error {
	if arg == "all" {
		if err := a.view.SelectSession(ctx, nil); err != nil {
			return a.fail(err)
		}
		fmt.Fprintln(a.out, "Showing entries of all sessions")
		return nil
	}

	id, err := parseID(arg)
	if err != nil {
		return a.fail(err)
	}
	if _, ok := a.core.Sessions.Lookup(id); !ok {
		return a.fail(fmt.Errorf("session %d: %w", id, common.ErrNotFound))
	}
	if err := a.view.SelectSession(ctx, &id); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Showing entries of session %d\n", id)
	return nil
}

func (a *App) Create(ctx context.Context, pin, title string) error {
	if title == "" {
		title = "Session " + pin
	}
	s, err := a.view.CreateSession(ctx, pin, title, "", nil)
	if err != nil {
		if errors.Is(err, common.ErrDuplicatePin) {
			return a.fail(fmt.Errorf("PIN %s is already in use", pin))
		}
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Created session %d (PIN %s)\n", s.ID, s.Pin)
	fmt.Fprintf(a.out, "Mobile link: %s\n", admin.MobileURL(a.config.PublicBaseURL, s.Pin))
	return nil
}

func (a *App) Toggle(ctx context.Context, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return a.fail(err)
	}
	if err := a.view.ToggleSession(ctx, id); err != nil {
		return a.fail(err)
	}
	s, _ := a.core.Sessions.Lookup(id)
	state := "inactive"
	if s.IsActive {
		state = "active"
	}
	fmt.Fprintf(a.out, "Session %d is now %s\n", id, state)
	return nil
}

func (a *App) Delete(ctx context.Context, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return a.fail(err)
	}
	question, err := a.view.DeleteConfirmation(id)
	if err != nil {
		return a.fail(err)
	}
	ok, err := Confirm(a.scanner, question, a.out, a.config.AssumeYes)
	if err != nil {
		return a.fail(err)
	}
	if !ok {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	res, err := a.view.DeleteSession(ctx, id)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Deleted session %d and %d entries\n", id, res.Deleted)
	return nil
}
