package taskstore

// schema is the consolidated table set for every entity in spec.md §3. The
// source this system is modeled on carries several duplicated, drifting
// copies of this schema across historical revisions (spec.md §9,
// "Duplicated schemas in the source"); this is the one clean version.
const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt           TEXT NOT NULL,
	working_dir      TEXT,
	context_files     TEXT NOT NULL DEFAULT '[]',
	expected_outputs  TEXT NOT NULL DEFAULT '[]',
	metadata         TEXT,
	priority         INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	worker_id        TEXT,
	job_id           TEXT,
	parent_task_id   INTEGER REFERENCES tasks(id),
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	claimed_at       DATETIME,
	started_at       DATETIME,
	completed_at     DATETIME,
	result           TEXT,
	error            TEXT,
	last_error       TEXT,
	retry_count      INTEGER NOT NULL DEFAULT 0,
	max_retries      INTEGER NOT NULL DEFAULT 0,
	retry_policy     TEXT
);

CREATE INDEX IF NOT EXISTS idx_tasks_status_priority_created
	ON tasks(status, priority DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_tasks_job_status ON tasks(job_id, status);

CREATE TABLE IF NOT EXISTS workers (
	worker_id        TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'idle',
	current_task_id  INTEGER,
	started_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_heartbeat   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	stats            TEXT
);

CREATE TABLE IF NOT EXISTS jobs (
	job_id           TEXT PRIMARY KEY,
	description      TEXT NOT NULL DEFAULT '',
	orchestrator_id  TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'active',
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at     DATETIME,
	metadata         TEXT
);

CREATE TABLE IF NOT EXISTS task_dependencies (
	task_id          INTEGER NOT NULL,
	depends_on_task_id INTEGER NOT NULL,
	PRIMARY KEY (task_id, depends_on_task_id),
	FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
	FOREIGN KEY (depends_on_task_id) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_task_deps_depends_on ON task_dependencies(depends_on_task_id);

CREATE TABLE IF NOT EXISTS checkpoints (
	task_id              INTEGER PRIMARY KEY,
	checkpoint_data      TEXT,
	files_created        TEXT NOT NULL DEFAULT '[]',
	files_modified       TEXT NOT NULL DEFAULT '[]',
	last_step            TEXT NOT NULL DEFAULT '',
	completion_percentage INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS task_changes (
	change_id        INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id          INTEGER NOT NULL,
	operation        TEXT NOT NULL,
	file_path        TEXT NOT NULL,
	before_content   TEXT,
	after_content    TEXT,
	timestamp        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_task_changes_task_ts ON task_changes(task_id, timestamp);

CREATE TABLE IF NOT EXISTS shared_context (
	job_id           TEXT,
	key              TEXT NOT NULL,
	value            TEXT NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- SQLite treats distinct NULLs as distinct for UNIQUE purposes, so the
-- global-scope sentinel (job_id IS NULL) needs its own partial unique index
-- alongside the per-job one.
CREATE UNIQUE INDEX IF NOT EXISTS idx_shared_context_job_key
	ON shared_context(job_id, key) WHERE job_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_shared_context_global_key
	ON shared_context(key) WHERE job_id IS NULL;

CREATE TABLE IF NOT EXISTS worker_logs (
	log_id           INTEGER PRIMARY KEY AUTOINCREMENT,
	worker_id        TEXT NOT NULL,
	task_id          INTEGER,
	timestamp        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	message          TEXT NOT NULL,
	level            TEXT NOT NULL DEFAULT 'info'
);

CREATE INDEX IF NOT EXISTS idx_worker_logs_task_ts ON worker_logs(task_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_worker_logs_worker_ts ON worker_logs(worker_id, timestamp DESC);
`
