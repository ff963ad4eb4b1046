package sqlite

const schema = `
-- Passes table: one row per dedup pass
CREATE TABLE IF NOT EXISTS passes (
    id TEXT PRIMARY KEY,
    input_files TEXT NOT NULL DEFAULT '[]',
    output_file TEXT NOT NULL DEFAULT '',
    deleted_pairs_file TEXT NOT NULL DEFAULT '',
    mode TEXT NOT NULL CHECK(mode IN ('by_question', 'by_answer')),
    threshold REAL NOT NULL,
    num_perm INTEGER NOT NULL,
    min_answer_length INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'processing' CHECK(status IN ('processing', 'completed', 'failed')),
    original_count INTEGER NOT NULL DEFAULT 0,
    kept_count INTEGER NOT NULL DEFAULT 0,
    progress INTEGER NOT NULL DEFAULT 0 CHECK(progress >= 0 AND progress <= 100),
    error_message TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_passes_created_at ON passes(created_at);
CREATE INDEX IF NOT EXISTS idx_passes_status ON passes(status);

-- Kept pairs table: the deduplicated output of a pass, in output order
CREATE TABLE IF NOT EXISTS kept_pairs (
    pass_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    record_id TEXT NOT NULL,
    question TEXT NOT NULL DEFAULT '',
    answer TEXT NOT NULL DEFAULT '',
    source_label TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (pass_id, position),
    FOREIGN KEY (pass_id) REFERENCES passes(id) ON DELETE CASCADE
);

-- Deleted groups table: position 0 of each group is the kept record
CREATE TABLE IF NOT EXISTS deleted_groups (
    pass_id TEXT NOT NULL,
    group_index INTEGER NOT NULL,
    position INTEGER NOT NULL,
    record_id TEXT NOT NULL,
    question TEXT NOT NULL DEFAULT '',
    answer TEXT NOT NULL DEFAULT '',
    source_label TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (pass_id, group_index, position),
    FOREIGN KEY (pass_id) REFERENCES passes(id) ON DELETE CASCADE
);

-- Pass events table (audit trail)
CREATE TABLE IF NOT EXISTS pass_events (
    id TEXT PRIMARY KEY,
    pass_id TEXT NOT NULL,
    type TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    severity TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_pass_events_pass ON pass_events(pass_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_pass_events_type ON pass_events(type);
`
