package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/leadkeeper/internal/form"
)

// Submit collects one entry at the console, the way the kiosk form does.
func (a *App) Submit(ctx context.Context) error {
	if returning, err := a.form.ReturningVisitor(ctx); err != nil {
		a.logger.Warn(ctx, "failed to read last submission", "error", err)
	} else if returning {
		fmt.Fprintln(a.out, form.MsgReturning)
	}

	name, err := GetSimpleText(a.scanner, "Name", a.out)
	if err != nil {
		return a.fail(err)
	}
	phone, err := GetSimpleText(a.scanner, "Phone number", a.out)
	if err != nil {
		return a.fail(err)
	}
	pin, err := GetSimpleText(a.scanner, "Session PIN (empty for none)", a.out)
	if err != nil {
		return a.fail(err)
	}

	out, err := a.form.Submit(ctx, form.Input{Name: name, Phone: phone, Pin: pin, UserAgent: "leadkeeper-cli"})
	if err != nil {
		if out.Field != "" {
			fmt.Fprintf(a.out, "Invalid %s: %s\n", out.Field, out.Message)
		} else {
			fmt.Fprintln(a.out, out.Message)
		}
		a.form.Retry()
		return err
	}

	fmt.Fprintln(a.out, out.Message)
	if out.Degraded {
		fmt.Fprintln(a.out, "(saved on this device only; the shared database was unreachable)")
	}
	a.view.HandleEntry(*out.Entry)
	return nil
}
