package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	s := string(a.view.Mode())
	if id := a.view.Selected(); id != nil {
		s = fmt.Sprintf("%s, session %d", s, *id)
	}
	if a.isWatching() {
		s += ", watching"
	}
	return fmt.Sprintf("(%s)", s)
}

// Root loads the dashboard and runs the REPL until the user exits.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to the leadkeeper console (type 'help' for commands)")

	if err := a.view.Open(ctx); err != nil {
		_ = a.fail(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.StartOnlineStatusWatcher(ctx, a.config.ProbeInterval)
	go a.core.Gateway.Watch(ctx, a.config.ProbeInterval)

	runREPL(ctx, a, a.getStatus, a.scanner)
}
