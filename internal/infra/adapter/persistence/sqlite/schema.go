package sqlite

import (
	"database/sql"
	"fmt"
)

// Migrate creates the local-mode schema. Every statement is idempotent, so
// startup runs it unconditionally.
//
// The layout mirrors the PostgreSQL schema with three dialect changes:
// booleans are INTEGER 0/1, JSONB columns become JSON text, and there is no
// ann_vectors table because the local ANN index keeps its graph in memory
// and rebuilds it from article_embeddings.
func Migrate(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sources (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    name            TEXT NOT NULL UNIQUE,
    source_type     TEXT NOT NULL DEFAULT 'Directory' CHECK (source_type IN ('Directory', 'RSS')),
    feed_config     TEXT,
    last_crawled_at TIMESTAMP,
    active          INTEGER NOT NULL DEFAULT 1
)`,
		`CREATE TABLE IF NOT EXISTS articles (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id        TEXT NOT NULL UNIQUE,
    title              TEXT NOT NULL,
    subtitle           TEXT NOT NULL DEFAULT '',
    body               TEXT NOT NULL DEFAULT '',
    summary            TEXT NOT NULL DEFAULT '',
    writers            TEXT,
    publish_time       TIMESTAMP,
    registered_time    TIMESTAMP,
    modified_time      TIMESTAMP,
    source_url         TEXT NOT NULL DEFAULT '',
    media_code         TEXT NOT NULL DEFAULT '',
    edition            TEXT NOT NULL DEFAULT '',
    section            TEXT NOT NULL DEFAULT '',
    page               INTEGER,
    categories         TEXT,
    keywords           TEXT,
    stock_codes        TEXT,
    images             TEXT,
    content_hash       TEXT NOT NULL,
    indexing_text      TEXT NOT NULL DEFAULT '',
    importance_score   REAL NOT NULL DEFAULT 0,
    article_type       TEXT NOT NULL DEFAULT '',
    similar_article_id TEXT NOT NULL DEFAULT '',
    similarity_score   REAL NOT NULL DEFAULT 0,
    ingested_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    is_embedded        INTEGER NOT NULL DEFAULT 0,
    embedding_model    TEXT NOT NULL DEFAULT '',
    embedded_at        TIMESTAMP,
    processing_error   TEXT NOT NULL DEFAULT '',
    vector_ref         TEXT NOT NULL DEFAULT '',
    tombstoned         INTEGER NOT NULL DEFAULT 0,
    created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		// 동일 내용 기사는 동시에 하나만 살아있을 수 있다. UNIQUE 부분
		// 인덱스가 스토어 수준에서 강제하므로 두 번째 INSERT는 UNIQUE
		// 제약 위반으로 실패하고 ErrDuplicate로 매핑된다. 톰스톤 행은
		// 해시를 점유하지 않는다.
		`DROP INDEX IF EXISTS idx_articles_content_hash`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_articles_content_hash ON articles(content_hash) WHERE tombstoned = 0`,
		// 최근 기사 조회용 (근접 중복 비교 윈도우)
		`CREATE INDEX IF NOT EXISTS idx_articles_ingested_at ON articles(ingested_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_publish_time ON articles(publish_time DESC)`,
		// 임베딩 대기 기사 조회용 부분 인덱스
		`CREATE INDEX IF NOT EXISTS idx_articles_unembedded ON articles(ingested_at) WHERE is_embedded = 0 AND tombstoned = 0`,
		`CREATE INDEX IF NOT EXISTS idx_sources_active ON sources(active) WHERE active = 1`,
		`CREATE TABLE IF NOT EXISTS article_metadata (
    article_id       INTEGER PRIMARY KEY REFERENCES articles(id) ON DELETE CASCADE,
    external_id      TEXT NOT NULL,
    title_length     INTEGER NOT NULL DEFAULT 0,
    body_length      INTEGER NOT NULL DEFAULT 0,
    summary_length   INTEGER NOT NULL DEFAULT 0,
    total_length     INTEGER NOT NULL DEFAULT 0,
    word_count       INTEGER NOT NULL DEFAULT 0,
    has_summary      INTEGER NOT NULL DEFAULT 0,
    entities         TEXT,
    categories       TEXT,
    keywords         TEXT,
    stock_codes      TEXT,
    year             INTEGER NOT NULL DEFAULT 0,
    month            INTEGER NOT NULL DEFAULT 0,
    day              INTEGER NOT NULL DEFAULT 0,
    hour             INTEGER NOT NULL DEFAULT 0,
    weekday          TEXT NOT NULL DEFAULT '',
    article_type     TEXT NOT NULL DEFAULT '',
    importance_score REAL NOT NULL DEFAULT 0,
    indexing_text    TEXT NOT NULL DEFAULT '',
    metadata_hash    TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_article_metadata_type_importance ON article_metadata(article_type, importance_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_article_metadata_date ON article_metadata(year, month, day)`,
		`CREATE TABLE IF NOT EXISTS article_embeddings (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    article_id    INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    external_id   TEXT NOT NULL,
    chunk_index   INTEGER NOT NULL DEFAULT 0,
    provider      TEXT NOT NULL,
    model         TEXT NOT NULL,
    dimension     INTEGER NOT NULL,
    text_hash     TEXT NOT NULL DEFAULT '',
    metadata_hash TEXT NOT NULL DEFAULT '',
    embedding     TEXT NOT NULL,
    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (article_id, chunk_index)
)`,
		`CREATE INDEX IF NOT EXISTS idx_article_embeddings_article_id ON article_embeddings(article_id)`,
		`CREATE TABLE IF NOT EXISTS index_states (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    name              TEXT NOT NULL UNIQUE,
    provider_index_id TEXT NOT NULL DEFAULT '',
    endpoint_id       TEXT NOT NULL DEFAULT '',
    deployed_id       TEXT NOT NULL DEFAULT '',
    dimensions        INTEGER NOT NULL,
    distance          TEXT NOT NULL,
    total_vectors     INTEGER NOT NULL DEFAULT 0,
    active            INTEGER NOT NULL DEFAULT 0,
    last_updated      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		// 활성 인덱스는 항상 하나
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_index_states_single_active ON index_states(active) WHERE active = 1`,
		`CREATE TABLE IF NOT EXISTS processing_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    article_id  TEXT NOT NULL DEFAULT '',
    phase       TEXT NOT NULL,
    status      TEXT NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    ts          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_log_phase_ts ON processing_log(phase, ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_log_article_id ON processing_log(article_id)`,
		// 로컬 기본 소스: 작업 디렉터리 기준 상대 경로를 감시한다
		`INSERT INTO sources (name, source_type, feed_config, active)
VALUES ('newswire-inbox', 'Directory',
        '{"path": "./data/incoming", "pattern": "*.xml", "archive_path": "./data/archive"}', 1)
ON CONFLICT (name) DO NOTHING`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}
