package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"newswire-search/internal/domain/entity"
)

// defaultPattern is the glob applied to directory sources that do not
// configure one. The wire drops one XML document per article.
const defaultPattern = "*.xml"

// DirectoryLister discovers wire documents in a watched drop directory.
// A file is discovered when its name matches the source's glob pattern and
// its mtime is strictly after the watermark. Stateless and safe for
// concurrent use.
type DirectoryLister struct{}

// NewDirectoryLister creates a DirectoryLister.
func NewDirectoryLister() *DirectoryLister {
	return &DirectoryLister{}
}

// Discover lists and reads every matching file newer than since, ordered
// by mtime (ties by name). Unreadable files are logged and skipped so one
// bad drop never blocks the rest of the run.
func (l *DirectoryLister) Discover(ctx context.Context, src *entity.Source, since time.Time) ([]Document, error) {
	if src.FeedConfig == nil || src.FeedConfig.Path == "" {
		return nil, fmt.Errorf("Discover: source %d has no directory path configured", src.ID)
	}

	pattern := src.FeedConfig.Pattern
	if pattern == "" {
		pattern = defaultPattern
	}
	// 패턴 오류는 설정 문제이므로 파일을 읽기 전에 바로 돌려준다.
	if _, err := filepath.Match(pattern, "probe.xml"); err != nil {
		return nil, fmt.Errorf("Discover: invalid pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(src.FeedConfig.Path)
	if err != nil {
		return nil, fmt.Errorf("Discover: read directory %s: %w", src.FeedConfig.Path, err)
	}

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		matched, _ := filepath.Match(pattern, entry.Name())
		if !matched {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			slog.Warn("failed to stat feed file, skipping",
				slog.String("file", entry.Name()),
				slog.Any("error", err))
			continue
		}
		if !info.ModTime().After(since) {
			continue
		}

		path := filepath.Join(src.FeedConfig.Path, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read feed file, skipping",
				slog.String("file", path),
				slog.Any("error", err))
			continue
		}

		docs = append(docs, Document{
			ID:      path,
			Raw:     raw,
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].ModTime.Equal(docs[j].ModTime) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].ModTime.Before(docs[j].ModTime)
	})

	return docs, nil
}

// Archive moves a processed document into the source's archive directory.
// A source without an archive path keeps processed files in place; the
// watermark alone prevents re-processing then.
func (l *DirectoryLister) Archive(src *entity.Source, doc Document) error {
	if src.FeedConfig == nil || src.FeedConfig.ArchivePath == "" {
		return nil
	}

	if err := os.MkdirAll(src.FeedConfig.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("Archive: create archive directory: %w", err)
	}

	target := filepath.Join(src.FeedConfig.ArchivePath, filepath.Base(doc.ID))
	if err := os.Rename(doc.ID, target); err != nil {
		// 이미 옮겨진 파일은 재실행 시 정상 상황이다.
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("Archive: move %s: %w", doc.ID, err)
	}
	return nil
}
