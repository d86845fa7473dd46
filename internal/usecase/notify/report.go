package notify

import (
	"fmt"
	"strings"
	"time"

	"newswire-search/internal/infra/notifier"
	"newswire-search/internal/usecase/ingest"
)

// formatRunReport renders an ingestion run report as one notification
// message. Zero-valued counters are still listed so a quiet run is visibly a
// quiet run, not a broken report.
func formatRunReport(report *ingest.RunReport) notifier.Message {
	subject := fmt.Sprintf("Ingestion run completed: %d articles persisted", report.Persisted)

	var b strings.Builder
	fmt.Fprintf(&b, "run_id: %s\n", report.RunID)
	fmt.Fprintf(&b, "started: %s\n", report.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "duration: %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "sources: %d\n\n", report.Sources)

	fmt.Fprintf(&b, "discovered: %d\n", report.Discovered)
	fmt.Fprintf(&b, "parsed: %d (errors: %d)\n", report.Parsed, report.ParseErrors)
	fmt.Fprintf(&b, "enriched: %d\n", report.Enriched)
	fmt.Fprintf(&b, "persisted: %d\n", report.Persisted)
	fmt.Fprintf(&b, "duplicates: %d exact, %d near, %d unchanged files\n",
		report.Duplicates, report.NearDuplicates, report.FileDuplicates)
	fmt.Fprintf(&b, "embedded: %d, indexed: %d", report.Embedded, report.Upserted)

	return notifier.Message{Subject: subject, Body: b.String()}
}
