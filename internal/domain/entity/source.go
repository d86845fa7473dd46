package entity

import (
	"errors"
	"fmt"
	"time"
)

// Source represents one place articles arrive from. Directory sources are
// the primary newswire feed: XML documents dropped into a watched directory
// by the wire's FTP push. RSS sources supplement the wire with external
// feeds converted into the same Article shape.
type Source struct {
	ID            int64
	Name          string
	SourceType    string        `json:"source_type"` // Directory, RSS
	LastCrawledAt *time.Time    `json:"last_crawled_at"`
	Active        bool          `json:"active"`
	FeedConfig    *SourceConfig `json:"feed_config"`
}

// SourceConfig holds per-source ingestion settings. Different fields apply
// depending on the source type:
//   - Directory: Path, Pattern, ArchivePath
//   - RSS: FeedURL, MediaCode
type SourceConfig struct {
	// Directory feed settings
	Path        string `json:"path,omitempty"`
	Pattern     string `json:"pattern,omitempty"`      // glob over file names, default "*.xml"
	ArchivePath string `json:"archive_path,omitempty"` // processed files move here when set

	// RSS feed settings
	FeedURL   string `json:"feed_url,omitempty"`
	MediaCode string `json:"media_code,omitempty"` // stamped onto converted articles
}

// Validate validates the Source entity fields. It checks that the source
// type is known and that the configuration required by that type is present.
func (s *Source) Validate() error {
	// 타입이 비어 있으면 기본 뉴스와이어 디렉터리 소스로 간주
	if s.SourceType == "" {
		s.SourceType = "Directory"
	}

	validTypes := map[string]bool{
		"Directory": true,
		"RSS":       true,
	}
	if !validTypes[s.SourceType] {
		return fmt.Errorf("invalid source_type: %s (must be Directory or RSS)", s.SourceType)
	}

	if s.FeedConfig == nil {
		return errors.New("feed_config is required")
	}

	switch s.SourceType {
	case "Directory":
		if s.FeedConfig.Path == "" {
			return &ValidationError{Field: "feed_config.path", Message: "path is required for directory sources"}
		}
	case "RSS":
		if s.FeedConfig.FeedURL == "" {
			return &ValidationError{Field: "feed_config.feed_url", Message: "feed_url is required for RSS sources"}
		}
		if err := ValidateURL(s.FeedConfig.FeedURL); err != nil {
			return err
		}
	}

	return nil
}
