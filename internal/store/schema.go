package store

// Schema contains all SQL statements for database initialization.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	tier       TEXT NOT NULL DEFAULT 'base',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS api_keys (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	key_hash   TEXT NOT NULL UNIQUE,
	key_prefix TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	last_used  DATETIME,
	revoked_at DATETIME,
	FOREIGN KEY (owner_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_keys_owner ON api_keys(owner_id);
CREATE INDEX IF NOT EXISTS idx_keys_hash  ON api_keys(key_hash);

CREATE TABLE IF NOT EXISTS snapshots (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	project_path  TEXT NOT NULL,
	summary       TEXT NOT NULL,
	context       TEXT NOT NULL,
	decisions     TEXT,
	next_steps    TEXT,
	files_touched TEXT,
	importance    TEXT NOT NULL DEFAULT 'normal',
	synced        INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL,
	FOREIGN KEY (owner_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_owner   ON snapshots(owner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS memories (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id     TEXT NOT NULL UNIQUE,
	owner_id      TEXT NOT NULL,
	content       TEXT NOT NULL,
	context       TEXT,
	importance    TEXT NOT NULL DEFAULT 'normal',
	tags          TEXT,
	access_count  INTEGER NOT NULL DEFAULT 0,
	last_accessed DATETIME,
	synced        INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL,
	FOREIGN KEY (owner_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_memories_owner   ON memories(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_memories_public  ON memories(public_id);

CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	content,
	context,
	content='memories',
	content_rowid='id'
);

CREATE TABLE IF NOT EXISTS narratives (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL,
	text       TEXT NOT NULL,
	sources    TEXT,
	span_start DATETIME,
	span_end   DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (owner_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_narratives_latest ON narratives(owner_id, type, created_at DESC);

CREATE TABLE IF NOT EXISTS preferences (
	owner_id   TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (owner_id, key),
	FOREIGN KEY (owner_id) REFERENCES users(id)
);
`

// ftsTriggers keep memories_fts in sync with the memories table. Owner
// scoping stays out of the index; search joins back to memories and filters
// on owner_id there, so tenant ids are never tokenized as searchable text.
const ftsTriggers = `
CREATE TRIGGER mem_fts_insert AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(rowid, content, context)
	VALUES (new.id, new.content, new.context);
END;

CREATE TRIGGER mem_fts_delete AFTER DELETE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, content, context)
	VALUES ('delete', old.id, old.content, old.context);
END;

CREATE TRIGGER mem_fts_update AFTER UPDATE OF content, context ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, content, context)
	VALUES ('delete', old.id, old.content, old.context);
	INSERT INTO memories_fts(rowid, content, context)
	VALUES (new.id, new.content, new.context);
END;
`
