package store

import (
	"database/sql"
	"fmt"
)

// coreSchemaSQL creates the authoritative tables, the denormalized search
// table, the term-occurrence table, and the triggers that mirror every
// association write into the search table inside the same transaction.
const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id          TEXT PRIMARY KEY,
	text        TEXT NOT NULL,
	task_state  INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	modified_at INTEGER NOT NULL DEFAULT 0,
	done_at     INTEGER
);

CREATE TABLE IF NOT EXISTS subjects (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	parent_id TEXT NOT NULL DEFAULT '',
	UNIQUE(parent_id, name)
);

CREATE TABLE IF NOT EXISTS notes_subjects (
	note_id    TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	PRIMARY KEY (note_id, subject_id)
);

CREATE TABLE IF NOT EXISTS notes_search (
	note_id    TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	task_state INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (note_id, subject_id)
);

CREATE INDEX IF NOT EXISTS notes_search_index
	ON notes_search (subject_id, created_at, note_id);
CREATE INDEX IF NOT EXISTS notes_search_task_index
	ON notes_search (subject_id, task_state, created_at)
	WHERE task_state > 0;

CREATE TABLE IF NOT EXISTS term_occurrences (
	term  TEXT PRIMARY KEY,
	count INTEGER NOT NULL
);

CREATE TRIGGER IF NOT EXISTS notes_search_insert AFTER INSERT ON notes_subjects BEGIN
	INSERT INTO notes_search (note_id, subject_id, created_at, task_state)
	VALUES (
		NEW.note_id,
		NEW.subject_id,
		(SELECT created_at FROM notes WHERE id = NEW.note_id),
		(SELECT task_state FROM notes WHERE id = NEW.note_id)
	);
END;

CREATE TRIGGER IF NOT EXISTS notes_search_delete AFTER DELETE ON notes_subjects BEGIN
	DELETE FROM notes_search
	WHERE note_id = OLD.note_id AND subject_id = OLD.subject_id;
END;
`

// initSchema applies the schema, runs additive migrations for columns added
// after the first release, and backfills derived tables found empty.
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(coreSchemaSQL); err != nil {
		return fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := migrate(db); err != nil {
		return err
	}
	if err := initDocIndex(db); err != nil {
		return fmt.Errorf("store: apply document index schema: %w", err)
	}
	return backfill(db)
}

// migration is one additive column migration. Migrations never drop or
// rewrite existing data.
type migration struct {
	table, column, ddl string
}

var migrations = []migration{
	{"notes", "task_state", `ALTER TABLE notes ADD COLUMN task_state INTEGER NOT NULL DEFAULT 0`},
	{"notes", "modified_at", `ALTER TABLE notes ADD COLUMN modified_at INTEGER NOT NULL DEFAULT 0`},
	{"notes", "done_at", `ALTER TABLE notes ADD COLUMN done_at INTEGER`},
	{"subjects", "parent_id", `ALTER TABLE subjects ADD COLUMN parent_id TEXT NOT NULL DEFAULT ''`},
	{"notes_search", "task_state", `ALTER TABLE notes_search ADD COLUMN task_state INTEGER NOT NULL DEFAULT 0`},
}

func migrate(db *sql.DB) error {
	for _, m := range migrations {
		ok, err := hasColumn(db, m.table, m.column)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := db.Exec(m.ddl); err != nil {
			return fmt.Errorf("store: migrate %s.%s: %w", m.table, m.column, err)
		}
	}
	// Stores created before modified_at existed carry the zero default;
	// bring them up to the modified_at >= created_at invariant.
	if _, err := db.Exec(`UPDATE notes SET modified_at = created_at WHERE modified_at < created_at`); err != nil {
		return fmt.Errorf("store: backfill modified_at: %w", err)
	}
	return nil
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, fmt.Errorf("store: table_info %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// backfill rebuilds derived state found empty: the denormalized search table
// from the association table, the term-occurrence table and document index
// from the notes themselves.
func backfill(db *sql.DB) error {
	var searchRows int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM notes_search`).Scan(&searchRows); err != nil {
		return fmt.Errorf("store: count notes_search: %w", err)
	}
	if searchRows == 0 {
		_, err := db.Exec(`
			INSERT INTO notes_search (note_id, subject_id, created_at, task_state)
			SELECT ns.note_id, ns.subject_id, n.created_at, n.task_state
			FROM notes_subjects ns
			INNER JOIN notes n ON n.id = ns.note_id
			WHERE TRUE
			ON CONFLICT (note_id, subject_id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("store: backfill notes_search: %w", err)
		}
	}

	var termRows int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM term_occurrences`).Scan(&termRows); err != nil {
		return fmt.Errorf("store: count term_occurrences: %w", err)
	}
	if termRows == 0 {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("store: begin backfill tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // best-effort on failure path
		if err := fillWordOccurrenceTable(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit backfill: %w", err)
		}
	}

	return backfillDocIndex(db)
}
