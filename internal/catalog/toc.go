package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteTOC rewrites the car folder's TOC.md from the full session index.
func (i *Index) WriteTOC(ctx context.Context, tocPath, carName string) error {
	sessions, err := i.Sessions(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s sessions\n\n", carName)
	fmt.Fprintf(&b, "Updated %s.\n\n", time.Now().UTC().Format("2006-01-02 15:04 MST"))

	if len(sessions) == 0 {
		b.WriteString("No sessions ingested yet.\n")
	} else {
		tw := table.NewWriter()
		tw.AppendHeader(table.Row{"Session", "Date", "Track", "Files", "Assets", "Archived"})
		for _, s := range sessions {
			archived := ""
			if s.Archived {
				archived = "yes"
			}
			tw.AppendRow(table.Row{s.DisplayName, s.Date, s.Track, s.FileCount, s.AssetCount, archived})
		}
		b.WriteString(tw.RenderMarkdown())
		b.WriteString("\n")
	}

	tmp := tocPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write toc: %w", err)
	}
	if err := os.Rename(tmp, tocPath); err != nil {
		return fmt.Errorf("replace toc: %w", err)
	}
	return nil
}
