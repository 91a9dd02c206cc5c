package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/validation"
)

func (a *App) isWatching() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.watching != nil
}

func (a *App) printEntry(prefix string, e models.Entry) {
	session := "-"
	if e.SessionID != nil {
		session = fmt.Sprint(*e.SessionID)
	}
	fmt.Fprintf(a.out, "%s #%d %s %s (session %s) %s\n", prefix, e.ID, e.Name,
		validation.FormatPhone(e.Phone), session, e.CreatedAt.In(a.config.Location()).Format(listTimeLayout))
}

// Watch toggles printing of entries delivered to this console.
func (a *App) Watch(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.watching != nil {
		a.watching.Close()
		a.watching = nil
		fmt.Fprintln(a.out, "Stopped watching")
		return nil
	}

	// the dashboard has seen these already
	seen := map[int64]struct{}{}
	for _, r := range a.view.Rows() {
		seen[r.ID] = struct{}{}
	}
	a.watching = a.core.Notifier.Subscribe(ctx, func(e models.Entry) {
		if _, ok := seen[e.ID]; ok {
			return
		}
		a.printEntry("new", e)
	})
	fmt.Fprintf(a.out, "Watching for new entries via %s\n", a.watching.Transport())
	return nil
}

// Follow streams entries of the current selection from the server until
// the user presses Enter.
func (a *App) Follow(ctx context.Context) error {
	if a.feed == nil {
		return a.fail(errors.New("live feed is not configured"))
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		err := a.feed.Follow(ctx, a.view.Selected(), func(e models.Entry) {
			a.printEntry("live", e)
		})
		if err != nil {
			_ = a.fail(err)
		}
		done <- err
	}()

	fmt.Fprintf(a.out, "Following %s, press Enter to stop\n", a.config.ServerAddr)
	a.scanner.Scan()
	cancel()
	return <-done
}
