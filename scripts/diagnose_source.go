// Command diagnose_source dry-runs the intake parser over a wire drop
// directory. It reads every matching XML file, parses it the way the ingest
// pipeline would, and reports per-file results without touching the store.
// Useful when a wire push looks wrong and you need to know whether the
// files or the pipeline are at fault.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
	"unicode/utf8"

	"newswire-search/internal/dedup"
	"newswire-search/internal/parser"
)

// FileDiagnostic represents the diagnostic result for a single file.
type FileDiagnostic struct {
	File         string `json:"file"`
	Status       string `json:"status"` // "OK", "PARSE_ERROR", "READ_ERROR", "EMPTY_BODY"
	ExternalID   string `json:"external_id,omitempty"`
	Title        string `json:"title,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
	BodyRunes    int    `json:"body_runes"`
	Categories   int    `json:"categories"`
	ContentHash  string `json:"content_hash,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	SizeBytes    int64  `json:"size_bytes"`
}

func main() {
	var (
		dir        string
		pattern    string
		jsonReport string
	)
	flag.StringVar(&dir, "dir", "", "Wire drop directory to scan (required)")
	flag.StringVar(&pattern, "pattern", "*.xml", "Glob over file names")
	flag.StringVar(&jsonReport, "json", "source_diagnostic_report.json", "JSON report output path ('' to skip)")
	flag.Parse()

	if dir == "" {
		fmt.Fprintln(os.Stderr, "Usage: diagnose_source -dir /path/to/drop [-pattern '*.xml']")
		flag.PrintDefaults()
		os.Exit(1)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("Failed to read directory %s: %v", dir, err)
	}

	p := parser.New()
	hasher := dedup.NewHasher(dedup.StrengthMD5)

	diagnostics := make([]FileDiagnostic, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, _ := filepath.Match(pattern, entry.Name())
		if !matched {
			continue
		}
		diagnostics = append(diagnostics, diagnoseFile(p, hasher, filepath.Join(dir, entry.Name())))
	}

	log.Printf("Diagnosed %d files in %s", len(diagnostics), dir)

	generateReport(os.Stdout, diagnostics)
	if jsonReport != "" {
		generateJSONReport(jsonReport, diagnostics)
	}
}

func diagnoseFile(p *parser.Parser, hasher *dedup.Hasher, path string) FileDiagnostic {
	diag := FileDiagnostic{File: path}

	info, err := os.Stat(path)
	if err == nil {
		diag.SizeBytes = info.Size()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		diag.Status = "READ_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}

	article, _, err := p.Parse(raw)
	if err != nil {
		diag.Status = "PARSE_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}

	diag.ExternalID = article.ExternalID
	diag.Title = article.Title
	diag.BodyRunes = utf8.RuneCountInString(article.Body)
	diag.Categories = len(article.Categories)
	diag.ContentHash = hasher.ContentHash(article.Title, article.Body, article.Summary)
	if !article.PublishTime.IsZero() {
		diag.PublishedAt = article.PublishTime.Format(time.RFC3339)
	}

	if diag.BodyRunes == 0 {
		diag.Status = "EMPTY_BODY"
		return diag
	}
	diag.Status = "OK"
	return diag
}

func writef(w io.Writer, format string, args ...interface{}) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func generateReport(w io.Writer, diagnostics []FileDiagnostic) {
	statusCount := make(map[string]int)
	for _, d := range diagnostics {
		statusCount[d.Status]++
	}

	_ = writef(w, "===============================================\n")
	_ = writef(w, "WIRE SOURCE DIAGNOSTIC REPORT\n")
	_ = writef(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	_ = writef(w, "===============================================\n\n")

	if len(diagnostics) == 0 {
		_ = writef(w, "No matching files found.\n")
		return
	}

	okCount := statusCount["OK"]
	errorCount := len(diagnostics) - okCount
	_ = writef(w, "SUMMARY:\n")
	_ = writef(w, "  ✅ Parseable: %d (%.1f%%)\n", okCount, float64(okCount)/float64(len(diagnostics))*100)
	_ = writef(w, "  ❌ Problems: %d (%.1f%%)\n", errorCount, float64(errorCount)/float64(len(diagnostics))*100)
	_ = writef(w, "\nSTATUS BREAKDOWN:\n")
	for status, count := range statusCount {
		_ = writef(w, "  %s: %d\n", status, count)
	}
	_ = writef(w, "\n")

	// Files sharing a content hash would collapse into one article at
	// ingest time. Surface them so an unexpected re-push is visible.
	byHash := make(map[string][]string)
	for _, d := range diagnostics {
		if d.Status == "OK" {
			byHash[d.ContentHash] = append(byHash[d.ContentHash], d.File)
		}
	}
	var dupHashes []string
	for hash, files := range byHash {
		if len(files) > 1 {
			dupHashes = append(dupHashes, hash)
		}
	}
	sort.Strings(dupHashes)
	if len(dupHashes) > 0 {
		_ = writef(w, "⚠️  DUPLICATE CONTENT (%d groups):\n", len(dupHashes))
		_ = writef(w, "-------------------------------------------\n")
		for _, hash := range dupHashes {
			_ = writef(w, "Hash: %s\n", hash)
			for _, file := range byHash[hash] {
				_ = writef(w, "  %s\n", file)
			}
		}
		_ = writef(w, "\n")
	}

	if errorCount > 0 {
		_ = writef(w, "❌ PROBLEM FILES (%d):\n", errorCount)
		_ = writef(w, "-------------------------------------------\n")
		for _, d := range diagnostics {
			if d.Status == "OK" {
				continue
			}
			_ = writef(w, "File: %s\n", d.File)
			_ = writef(w, "  Status: %s | Size: %d bytes\n", d.Status, d.SizeBytes)
			if d.ErrorMessage != "" {
				_ = writef(w, "  Error: %s\n", d.ErrorMessage)
			}
			if d.ExternalID != "" {
				_ = writef(w, "  ExternalID: %s\n", d.ExternalID)
			}
			_ = writef(w, "\n")
		}
	}

	_ = writef(w, "✅ PARSEABLE FILES (%d):\n", okCount)
	_ = writef(w, "-------------------------------------------\n")
	for _, d := range diagnostics {
		if d.Status != "OK" {
			continue
		}
		_ = writef(w, "File: %s\n", d.File)
		_ = writef(w, "  %s | %s\n", d.ExternalID, d.Title)
		_ = writef(w, "  Published: %s | Body: %d runes | Categories: %d\n",
			d.PublishedAt, d.BodyRunes, d.Categories)
		_ = writef(w, "\n")
	}
}

func generateJSONReport(path string, diagnostics []FileDiagnostic) {
	f, err := os.Create(path)
	if err != nil {
		log.Printf("Failed to create JSON report: %v", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close JSON report file: %v", err)
		}
	}()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(diagnostics); err != nil {
		log.Printf("Failed to write JSON report: %v", err)
		return
	}

	log.Printf("✅ JSON report generated: %s", path)
}
