package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/sources.sql
var seedSourcesSQL string

func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS sources (
    id              SERIAL PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    source_type     VARCHAR(20) NOT NULL DEFAULT 'Directory',
    feed_config     JSONB,
    last_crawled_at TIMESTAMPTZ,
    active          BOOLEAN DEFAULT TRUE
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id                 BIGSERIAL PRIMARY KEY,
    external_id        TEXT NOT NULL UNIQUE,
    title              TEXT NOT NULL,
    subtitle           TEXT NOT NULL DEFAULT '',
    body               TEXT NOT NULL DEFAULT '',
    summary            TEXT NOT NULL DEFAULT '',
    writers            JSONB,
    publish_time       TIMESTAMPTZ,
    registered_time    TIMESTAMPTZ,
    modified_time      TIMESTAMPTZ,
    source_url         TEXT NOT NULL DEFAULT '',
    media_code         VARCHAR(20) NOT NULL DEFAULT '',
    edition            TEXT NOT NULL DEFAULT '',
    section            TEXT NOT NULL DEFAULT '',
    page               INT,
    categories         JSONB,
    keywords           JSONB,
    stock_codes        JSONB,
    images             JSONB,
    content_hash       VARCHAR(64) NOT NULL,
    indexing_text      TEXT NOT NULL DEFAULT '',
    importance_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
    article_type       VARCHAR(20) NOT NULL DEFAULT '',
    similar_article_id TEXT NOT NULL DEFAULT '',
    similarity_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
    ingested_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    is_embedded        BOOLEAN NOT NULL DEFAULT FALSE,
    embedding_model    VARCHAR(100) NOT NULL DEFAULT '',
    embedded_at        TIMESTAMPTZ,
    processing_error   TEXT NOT NULL DEFAULT '',
    vector_ref         TEXT NOT NULL DEFAULT '',
    tombstoned         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// pg_trgm 확장 활성화 (ILIKE 검색 가속용)
	// 에러는 무시 (이미 존재하거나 슈퍼유저 권한이 없는 경우)
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`)

	// 키워드 검색용 GIN 인덱스 (제목/요약/색인 텍스트 ILIKE 검색)
	searchIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_articles_title_gin ON articles USING gin(title gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_summary_gin ON articles USING gin(summary gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_indexing_text_gin ON articles USING gin(indexing_text gin_trgm_ops)`,
	}
	for _, idx := range searchIndexes {
		// pg_trgm 확장이 없으면 에러가 나므로 무시
		_, _ = db.Exec(idx)
	}

	indexes := []string{
		// 동일 내용 기사는 동시에 하나만 살아있을 수 있다. UNIQUE 부분
		// 인덱스가 스토어 수준에서 강제하므로 두 번째 INSERT는 23505로
		// 실패하고 ErrDuplicate로 매핑된다. 톰스톤 행은 해시를 점유하지
		// 않는다. (구버전의 일반 인덱스는 이름이 바뀌면서 제거)
		`DROP INDEX IF EXISTS idx_articles_content_hash`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_articles_content_hash ON articles(content_hash) WHERE NOT tombstoned`,
		// 최근 기사 조회용 (근접 중복 비교 윈도우)
		`CREATE INDEX IF NOT EXISTS idx_articles_ingested_at ON articles(ingested_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_publish_time ON articles(publish_time DESC)`,
		// 임베딩 대기 기사 조회용 부분 인덱스
		`CREATE INDEX IF NOT EXISTS idx_articles_unembedded ON articles(ingested_at) WHERE NOT is_embedded AND NOT tombstoned`,
		`CREATE INDEX IF NOT EXISTS idx_sources_active ON sources(active) WHERE active = TRUE`,
		`CREATE INDEX IF NOT EXISTS idx_sources_source_type ON sources(source_type)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// source_type 제약 추가
	// PostgreSQL 고유 구문이므로 에러 무시 (이미 존재하는 경우)
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_source_type'
    ) THEN
        ALTER TABLE sources ADD CONSTRAINT chk_source_type
        CHECK (source_type IN ('Directory', 'RSS'));
    END IF;
END $$;
`)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS article_metadata (
    article_id       BIGINT PRIMARY KEY REFERENCES articles(id) ON DELETE CASCADE,
    external_id      TEXT NOT NULL,
    title_length     INT NOT NULL DEFAULT 0,
    body_length      INT NOT NULL DEFAULT 0,
    summary_length   INT NOT NULL DEFAULT 0,
    total_length     INT NOT NULL DEFAULT 0,
    word_count       INT NOT NULL DEFAULT 0,
    has_summary      BOOLEAN NOT NULL DEFAULT FALSE,
    entities         JSONB,
    categories       JSONB,
    keywords         JSONB,
    stock_codes      JSONB,
    year             INT NOT NULL DEFAULT 0,
    month            INT NOT NULL DEFAULT 0,
    day              INT NOT NULL DEFAULT 0,
    hour             INT NOT NULL DEFAULT 0,
    weekday          VARCHAR(12) NOT NULL DEFAULT '',
    article_type     VARCHAR(20) NOT NULL DEFAULT '',
    importance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    indexing_text    TEXT NOT NULL DEFAULT '',
    metadata_hash    VARCHAR(64) NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	metadataIndexes := []string{
		// 구조화 검색 경로: 타입/중요도, 날짜 버킷
		`CREATE INDEX IF NOT EXISTS idx_article_metadata_type_importance ON article_metadata(article_type, importance_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_article_metadata_date ON article_metadata(year, month, day)`,
		// JSONB containment 검색용 GIN 인덱스
		`CREATE INDEX IF NOT EXISTS idx_article_metadata_categories ON article_metadata USING gin(categories)`,
		`CREATE INDEX IF NOT EXISTS idx_article_metadata_keywords ON article_metadata USING gin(keywords)`,
		`CREATE INDEX IF NOT EXISTS idx_article_metadata_entities ON article_metadata USING gin(entities)`,
	}
	for _, idx := range metadataIndexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// pgvector 확장 활성화
	// 에러는 무시 (이미 존재하거나 슈퍼유저 권한이 없는 경우)
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)

	// Note: vector(768) is fixed size for the 768-dimension embedding models
	//       this deployment uses (managed and local backends both emit 768).
	//       The dimension column stores metadata for validation purposes.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS article_embeddings (
    id              BIGSERIAL PRIMARY KEY,
    article_id      BIGINT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    external_id     TEXT NOT NULL,
    chunk_index     INT NOT NULL DEFAULT 0,
    provider        VARCHAR(20) NOT NULL,
    model           VARCHAR(100) NOT NULL,
    dimension       INT NOT NULL,
    text_hash       VARCHAR(64) NOT NULL DEFAULT '',
    metadata_hash   VARCHAR(64) NOT NULL DEFAULT '',
    embedding       vector(768) NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE(article_id, chunk_index)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_article_embeddings_article_id ON article_embeddings(article_id)`,
	); err != nil {
		return err
	}

	// ann_vectors is the pgvector-backed ANN index: one row per datapoint
	// with the filter payload denormalized alongside the vector. Deletes are
	// tombstone upserts; queries and enumeration skip tombstoned rows.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS ann_vectors (
    datapoint_id     TEXT PRIMARY KEY,
    article_id       BIGINT NOT NULL,
    external_id      TEXT NOT NULL,
    chunk_index      INT NOT NULL DEFAULT 0,
    embedding        vector(768) NOT NULL,
    article_type     VARCHAR(20) NOT NULL DEFAULT '',
    media_code       VARCHAR(20) NOT NULL DEFAULT '',
    categories       JSONB,
    keywords         JSONB,
    year             INT NOT NULL DEFAULT 0,
    month            INT NOT NULL DEFAULT 0,
    day              INT NOT NULL DEFAULT 0,
    importance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    publish_time     TIMESTAMPTZ,
    tombstone        BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	annIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_ann_vectors_article_id ON ann_vectors(article_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ann_vectors_date ON ann_vectors(year, month, day)`,
	}
	for _, idx := range annIndexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// IVFFlat 벡터 유사도 검색 인덱스
	// 에러는 무시 (pgvector 확장이 없는 경우)
	// lists=100 은 <1M 레코드에 적합한 값
	_, _ = db.Exec(`
CREATE INDEX IF NOT EXISTS idx_ann_vectors_embedding
    ON ann_vectors USING ivfflat (embedding vector_cosine_ops)
    WITH (lists = 100)`)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS index_states (
    id                BIGSERIAL PRIMARY KEY,
    name              TEXT NOT NULL UNIQUE,
    provider_index_id TEXT NOT NULL DEFAULT '',
    endpoint_id       TEXT NOT NULL DEFAULT '',
    deployed_id       TEXT NOT NULL DEFAULT '',
    dimensions        INT NOT NULL,
    distance          VARCHAR(20) NOT NULL,
    total_vectors     BIGINT NOT NULL DEFAULT 0,
    active            BOOLEAN NOT NULL DEFAULT FALSE,
    last_updated      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	// 활성 인덱스는 항상 하나
	if _, err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_index_states_single_active ON index_states(active) WHERE active`,
	); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS processing_log (
    id          BIGSERIAL PRIMARY KEY,
    article_id  TEXT NOT NULL DEFAULT '',
    phase       VARCHAR(20) NOT NULL,
    status      VARCHAR(12) NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    duration_ms BIGINT NOT NULL DEFAULT 0,
    ts          TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	logIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_processing_log_phase_ts ON processing_log(phase, ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_log_article_id ON processing_log(article_id)`,
	}
	for _, idx := range logIndexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// 시드 데이터 투입 (중복은 자동으로 건너뜀)
	if _, err := db.Exec(seedSourcesSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown rolls back the vector search schema.
// This function removes tables and indexes in reverse order of creation.
// Use with caution: this will delete all data in the affected tables.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_ann_vectors_embedding`,
		`DROP INDEX IF EXISTS idx_ann_vectors_date`,
		`DROP INDEX IF EXISTS idx_ann_vectors_article_id`,
		`DROP TABLE IF EXISTS ann_vectors CASCADE`,
		`DROP INDEX IF EXISTS idx_article_embeddings_article_id`,
		`DROP TABLE IF EXISTS article_embeddings CASCADE`,
		`DROP TABLE IF EXISTS index_states CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// Note: We do NOT drop the vector extension as it may be used by other tables
	// Note: We do NOT drop sources/articles/article_metadata as they are core tables

	return nil
}

// MigrateDownEmbeddingsOnly rolls back only the durable embedding copies.
// This is a targeted rollback that preserves the ANN index and other schema
// elements; reconciliation cannot repair the index afterwards until vectors
// are regenerated.
func MigrateDownEmbeddingsOnly(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_article_embeddings_article_id`,
		`DROP TABLE IF EXISTS article_embeddings CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
