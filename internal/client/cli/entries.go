package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/export"
	"github.com/dmitrijs2005/leadkeeper/internal/filex"
)

const (
	listTimeLayout = "2006-01-02 15:04:05"
	// exportDir receives exports written without an explicit path.
	exportDir = "exports"
)

// now is a test seam for export timestamps.
var now = time.Now

// uploader shares an export through object storage; *export.S3Sink
// implements it.
type uploader interface {
	Upload(ctx context.Context, f export.Format, body []byte, t time.Time) (key, url string, err error)
}

func (a *App) List(ctx context.Context) error {
	rows := a.view.Rows()
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "No entries")
		return nil
	}
	loc := a.config.Location()
	for _, r := range rows {
		fmt.Fprintf(a.out, "%4d. %-20s %-15s %s\n", r.No, r.Name, r.Phone, r.CollectedAt.In(loc).Format(listTimeLayout))
	}
	fmt.Fprintf(a.out, "%d entries\n", len(rows))
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	s := a.view.Stats()
	fmt.Fprintf(a.out, "Total: %d  Today: %d  Last 7 days: %d  Last 30 days: %d\n", s.Total, s.Today, s.Week, s.Month)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.view.ForceRefresh(ctx); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Reloaded %d entries\n", len(a.view.Rows()))
	return nil
}

func (a *App) Clear(ctx context.Context) error {
	ok, err := Confirm(a.scanner, a.view.ClearConfirmation(), a.out, a.config.AssumeYes)
	if err != nil {
		return a.fail(err)
	}
	if !ok {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	res, err := a.view.ClearAll(ctx)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Deleted %d entries\n", res.Deleted)
	return nil
}

// Export writes the visible entries to target: a file path, "s3", or a
// timestamped file under ./exports when empty.
func (a *App) Export(ctx context.Context, format, target string) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return a.fail(err)
	}
	t := now()

	if target == "s3" {
		return a.exportS3(ctx, f, t)
	}

	if target == "" {
		dir, err := filex.EnsureSubDir(exportDir)
		if err != nil {
			return a.fail(err)
		}
		target = filepath.Join(dir, export.Filename(f, t))
	}
	file, err := filex.Create(target)
	if err != nil {
		return a.fail(fmt.Errorf("failed to create export file: %w", err))
	}
	if err := a.view.Export(ctx, f, file); err != nil {
		_ = file.Close()
		return a.fail(err)
	}
	if err := file.Close(); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Exported %d entries to %s\n", len(a.view.Rows()), target)
	return nil
}

func (a *App) exportS3(ctx context.Context, f export.Format, t time.Time) error {
	if a.uploader == nil {
		return a.fail(errors.New("S3 export is not configured"))
	}
	var buf bytes.Buffer
	if err := a.view.Export(ctx, f, &buf); err != nil {
		return a.fail(err)
	}
	key, url, err := a.uploader.Upload(ctx, f, buf.Bytes(), t)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Uploaded %s\nDownload link (valid 15 minutes): %s\n", key, url)
	return nil
}
