package verify

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/soundbluemusic/dictgen/internal/errors"
)

// markdown renders reports with GitHub tables.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// maxListedIDs bounds how many missing ids one report line names.
const maxListedIDs = 10

// WriteText prints one line per partition followed by the summary block.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	for i := range r.Partitions {
		p := &r.Partitions[i]
		switch {
		case p.Failed():
			fmt.Fprintf(&b, "[FAIL] %s fetch failed: %s\n", p.File, p.Error)
		case len(p.Missing) > 0:
			fmt.Fprintf(&b, "[FAIL] %s missing %d entries: %s\n", p.File, len(p.Missing), listIDs(p.Missing))
		default:
			fmt.Fprintf(&b, "[OK] %s (%d entries)\n", p.File, p.Local)
		}
	}

	b.WriteString("\n--- Summary ---\n")
	fmt.Fprintf(&b, "Partitions checked: %d\n", len(r.Partitions))
	fmt.Fprintf(&b, "Local entries: %d\n", r.TotalLocal)
	fmt.Fprintf(&b, "Missing entries: %d (in %d partitions)\n", r.TotalMissing, r.DriftedPartitions)
	fmt.Fprintf(&b, "Failed fetches: %d\n", r.FailedPartitions)
	if r.HasDrift() {
		b.WriteString("Result: DRIFT DETECTED\n")
	} else {
		b.WriteString("Result: OK\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Deployment verification %s\n\n", r.ID)
	if r.RemoteBaseURL != "" {
		fmt.Fprintf(&b, "Remote: `%s`  \n", r.RemoteBaseURL)
	}
	fmt.Fprintf(&b, "Checked at: %s\n\n", r.CheckedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	status := "OK"
	if r.HasDrift() {
		status = "DRIFT DETECTED"
	}
	fmt.Fprintf(&b, "**Result: %s** (%d missing entries, %d failed fetches)\n\n", status, r.TotalMissing, r.FailedPartitions)

	b.WriteString("| Partition | Local | Remote | Missing | Status |\n")
	b.WriteString("|---|---:|---:|---:|---|\n")
	for i := range r.Partitions {
		p := &r.Partitions[i]
		st := "ok"
		if p.Failed() {
			st = "fetch failed: " + escapeCell(p.Error)
		} else if len(p.Missing) > 0 {
			st = "missing"
		}
		remote := fmt.Sprintf("%d", p.Remote)
		if p.Failed() {
			remote = "-"
		}
		fmt.Fprintf(&b, "| `%s` | %d | %s | %d | %s |\n", p.File, p.Local, remote, len(p.Missing), st)
	}

	for i := range r.Partitions {
		p := &r.Partitions[i]
		if len(p.Missing) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", p.File)
		for _, id := range p.Missing {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
	}
	return b.Bytes()
}

// HTML renders the Markdown report to an HTML fragment.
func (r *Report) HTML() ([]byte, error) {
	return RenderMarkdown(r.Markdown())
}

// RenderMarkdown converts Markdown to HTML using goldmark.
func RenderMarkdown(md []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(md, &buf); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("render report: %w", err))
	}
	return buf.Bytes(), nil
}

func listIDs(ids []string) string {
	if len(ids) <= maxListedIDs {
		return strings.Join(ids, ", ")
	}
	return strings.Join(ids[:maxListedIDs], ", ") + fmt.Sprintf(", ... (%d more)", len(ids)-maxListedIDs)
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
