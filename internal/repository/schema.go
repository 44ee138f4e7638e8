package repository

// Schema is the local cache layout. Timestamps are unix milliseconds; list and
// map columns hold JSON.
const Schema = `
CREATE TABLE IF NOT EXISTS entries (
    id TEXT PRIMARY KEY,
    remote_id TEXT,
    content TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    device_id TEXT NOT NULL,
    sync_state TEXT NOT NULL,
    deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_entries_sync_state ON entries(sync_state);
CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at);

CREATE TABLE IF NOT EXISTS enrichments (
    id TEXT PRIMARY KEY,
    entry_id TEXT NOT NULL,
    entry_version INTEGER NOT NULL,
    emotion TEXT,
    themes TEXT NOT NULL DEFAULT '[]',
    people TEXT NOT NULL DEFAULT '[]',
    urgency TEXT,
    actions TEXT NOT NULL DEFAULT '[]',
    questions TEXT NOT NULL DEFAULT '[]',
    decisions TEXT NOT NULL DEFAULT '[]',
    confidence TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL,
    method TEXT,
    error TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_enrichments_entry ON enrichments(entry_id, entry_version);
-- At most one complete record per entry version
CREATE UNIQUE INDEX IF NOT EXISTS idx_enrichments_complete
    ON enrichments(entry_id, entry_version) WHERE status = 'complete';

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    entry_id TEXT NOT NULL,
    category TEXT NOT NULL,
    subtype TEXT NOT NULL DEFAULT '',
    metrics TEXT NOT NULL DEFAULT '{}',
    text_metrics TEXT NOT NULL DEFAULT '{}',
    tags TEXT NOT NULL DEFAULT '[]',
    confidence REAL NOT NULL,
    method TEXT NOT NULL,
    occurred_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_entry ON events(entry_id);
CREATE INDEX IF NOT EXISTS idx_events_occurred ON events(occurred_at);

CREATE TABLE IF NOT EXISTS shadow_events (
    id TEXT PRIMARY KEY,
    entry_id TEXT NOT NULL,
    category TEXT NOT NULL,
    subtype TEXT NOT NULL DEFAULT '',
    metrics TEXT NOT NULL DEFAULT '{}',
    text_metrics TEXT NOT NULL DEFAULT '{}',
    tags TEXT NOT NULL DEFAULT '[]',
    confidence REAL NOT NULL,
    method TEXT NOT NULL,
    occurred_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shadow_events_entry ON shadow_events(entry_id);

CREATE TABLE IF NOT EXISTS phrase_patterns (
    id TEXT PRIMARY KEY,
    normalized TEXT NOT NULL UNIQUE,
    phrase TEXT NOT NULL,
    category TEXT NOT NULL,
    usage_count INTEGER NOT NULL DEFAULT 0,
    first_seen INTEGER NOT NULL,
    last_seen INTEGER NOT NULL,
    user_action TEXT NOT NULL DEFAULT 'pending',
    promoted INTEGER NOT NULL DEFAULT 0,
    promoted_at INTEGER
);

-- One row per (phrase, entry) so reprocessing an entry never double counts
CREATE TABLE IF NOT EXISTS phrase_uses (
    phrase_id TEXT NOT NULL,
    entry_id TEXT NOT NULL,
    used_at INTEGER NOT NULL,
    PRIMARY KEY (phrase_id, entry_id)
);
CREATE INDEX IF NOT EXISTS idx_phrase_uses_time ON phrase_uses(phrase_id, used_at);

CREATE TABLE IF NOT EXISTS intelligence_patterns (
    id TEXT PRIMARY KEY,
    signature TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL,
    trigger_conditions TEXT NOT NULL DEFAULT '{}',
    outcome_conditions TEXT NOT NULL DEFAULT '{}',
    scope TEXT NOT NULL DEFAULT '{}',
    stats TEXT NOT NULL DEFAULT '{}',
    occurrences INTEGER NOT NULL,
    confidence REAL NOT NULL,
    first_seen INTEGER NOT NULL,
    last_seen INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_intelligence_patterns_type ON intelligence_patterns(type);

CREATE TABLE IF NOT EXISTS user_facts (
    id TEXT PRIMARY KEY,
    category TEXT NOT NULL,
    fact TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS streaks (
    type TEXT PRIMARY KEY,
    current_count INTEGER NOT NULL,
    best_count INTEGER NOT NULL,
    last_day INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_failures (
    key TEXT PRIMARY KEY,
    count INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quarantine (
    entry_id TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    reason TEXT NOT NULL,
    quarantined_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
