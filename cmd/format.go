package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Taichi-iskw/yt-library/internal/model"
)

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// truncateString truncates a string to maxLen runes
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// formatSeconds renders a chapter offset as [h:]mm:ss
func formatSeconds(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// writeVideoTable prints one row per video
func writeVideoTable(w io.Writer, videos []*model.Video) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPUBLISHED\tDOWNLOADED\tTITLE")
	for _, v := range videos {
		downloaded := "no"
		if v.Downloaded {
			downloaded = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, formatDate(v.PublishedAt), downloaded, truncateString(v.Title, 60))
	}
	return tw.Flush()
}

// writeChannelTable prints one row per channel
func writeChannelTable(w io.Writer, channels []*model.Channel) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBSCRIBERS\tNAME")
	for _, c := range channels {
		subs := "-"
		if c.SubscriberCount != nil {
			subs = fmt.Sprintf("%d", *c.SubscriberCount)
		}
		name := c.Name
		if c.Placeholder {
			name += " (not synced)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, subs, name)
	}
	return tw.Flush()
}

func writeTagTable(w io.Writer, tags []*model.TagCount) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VIDEOS\tTAG")
	for _, t := range tags {
		fmt.Fprintf(tw, "%d\t%s\n", t.VideoCount, t.Name)
	}
	return tw.Flush()
}

// writePlaylistEntries prints playlist members; unsynced members show their ID only
func writePlaylistEntries(w io.Writer, entries []*model.PlaylistEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tTITLE")
	for _, e := range entries {
		title := "(not synced)"
		if e.Video != nil {
			title = truncateString(e.Video.Title, 60)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Position+1, e.VideoID, title)
	}
	return tw.Flush()
}

// formatTranscript renders a transcript as plain text with chapter headings
func formatTranscript(t *model.Transcript) string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("Video: %s\n", t.VideoID))
	if t.Language != "" {
		out.WriteString(fmt.Sprintf("Language: %s\n", t.Language))
	}
	out.WriteString(fmt.Sprintf("Fetched: %s\n\n", t.FetchedAt.Format(time.RFC3339)))

	if len(t.Chapters) == 0 {
		out.WriteString(t.PlainText)
		out.WriteString("\n")
		return out.String()
	}

	for _, ch := range t.Chapters {
		out.WriteString(fmt.Sprintf("[%s] %s\n", formatSeconds(ch.StartSeconds), ch.Title))
		if ch.Text != nil {
			out.WriteString(*ch.Text)
			out.WriteString("\n")
		}
		out.WriteString("\n")
	}
	return out.String()
}
