package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	original_filename TEXT NOT NULL,
	original_path TEXT NOT NULL,
	archive_path TEXT NOT NULL,
	size INTEGER NOT NULL,
	extension TEXT NOT NULL,
	kind TEXT NOT NULL,
	medium TEXT NOT NULL,
	camera_id TEXT,
	camera_name TEXT,
	project_id TEXT NOT NULL,
	footage_type TEXT,
	make TEXT,
	model TEXT,
	lens TEXT,
	width INTEGER,
	height INTEGER,
	duration_ms INTEGER,
	frame_rate REAL,
	codec TEXT,
	bit_rate INTEGER,
	recording_at INTEGER,
	imported_at INTEGER NOT NULL,
	thumbnail_path TEXT,
	proxy_path TEXT,
	hidden INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS file_metadata (
	file_id TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	provider TEXT NOT NULL,
	raw_json BLOB NOT NULL,
	PRIMARY KEY (file_id, provider)
);

CREATE TABLE IF NOT EXISTS cameras (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	nickname TEXT,
	medium TEXT NOT NULL,
	make TEXT,
	model TEXT,
	lut_path TEXT,
	deinterlace INTEGER NOT NULL DEFAULT 0,
	audio_policy TEXT,
	is_default INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1,
	is_system INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS camera_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	camera_id TEXT NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	glob TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	folder_name TEXT NOT NULL,
	working_root TEXT NOT NULL,
	key_dates TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	status TEXT NOT NULL,
	last_stage INTEGER NOT NULL DEFAULT 0,
	resumable INTEGER NOT NULL DEFAULT 1,
	source_paths TEXT NOT NULL DEFAULT '[]',
	archive_path TEXT,
	total_files INTEGER NOT NULL DEFAULT 0,
	processed_files INTEGER NOT NULL DEFAULT 0,
	duplicate_files INTEGER NOT NULL DEFAULT 0,
	error_files INTEGER NOT NULL DEFAULT 0,
	total_bytes INTEGER NOT NULL DEFAULT 0,
	processed_bytes INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	started_at INTEGER NOT NULL,
	completed_at INTEGER
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_files_camera ON files(camera_id);
CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
`

// SQLiteRepo implements Repo using modernc.org/sqlite, the teacher's
// driver choice, with the same WAL-plus-busy-timeout open string and
// version-gated migration ladder as internal/store/sqlite.go.
type SQLiteRepo struct {
	db *sql.DB
	mu sync.RWMutex
}

// DB returns the shared handle so internal/jobqueue can open its table
// against the same database file and connection pool, per the
// single-handle-per-process idiom the teacher's store package follows.
func (r *SQLiteRepo) DB() *sql.DB { return r.db }

// Open creates or opens a SQLite-backed repo at dbPath.
func Open(dbPath string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("repo: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("repo: open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("repo: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("repo: create schema: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("repo: insert schema version: %w", err)
		}
	} else if err != nil {
		db.Close()
		return nil, fmt.Errorf("repo: check schema version: %w", err)
	}
	// No migrations exist yet at schemaVersion 1; future ALTER TABLE
	// ladders go here, gated on `version < N`, matching the teacher's
	// store package.

	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- files.* ---

func (r *SQLiteRepo) FindByHash(ctx context.Context, fingerprint string) (*FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return findByHash(ctx, r.db, fingerprint)
}

func findByHash(ctx context.Context, q querier, fingerprint string) (*FileRecord, error) {
	row := q.QueryRowContext(ctx, fileSelectColumns+" FROM files WHERE fingerprint = ?", fingerprint)
	rec, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *SQLiteRepo) FindByFileID(ctx context.Context, id string) (*FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row := r.db.QueryRowContext(ctx, fileSelectColumns+" FROM files WHERE id = ?", id)
	rec, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *SQLiteRepo) Create(ctx context.Context, rec FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return createFile(ctx, r.db, rec)
}

func createFile(ctx context.Context, ex execer, rec FileRecord) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO files (
			id, fingerprint, original_filename, original_path, archive_path, size,
			extension, kind, medium, camera_id, camera_name, project_id, footage_type,
			make, model, lens, width, height, duration_ms, frame_rate, codec, bit_rate,
			recording_at, imported_at, thumbnail_path, proxy_path, hidden
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Fingerprint, rec.OriginalFilename, rec.OriginalPath, rec.ArchivePath, rec.Size,
		rec.Extension, rec.Kind, rec.Medium, nullString(rec.CameraID), nullString(rec.CameraName),
		rec.ProjectID, nullString(rec.FootageType),
		nullString(rec.Make), nullString(rec.Model), nullString(rec.Lens),
		nullIntPtr(rec.Width), nullIntPtr(rec.Height), nullInt64Ptr(rec.Duration),
		nullFloat64Ptr(rec.FrameRate), nullString(rec.Codec), nullInt64Ptr(rec.BitRate),
		nullInt64Ptr(rec.RecordingAt), rec.ImportedAt,
		nullString(rec.ThumbnailPath), nullString(rec.ProxyPath), boolToInt(rec.Hidden),
	)
	return err
}

func (r *SQLiteRepo) SaveMetadata(ctx context.Context, fileID string, blobs MetadataBlobs) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return saveMetadata(ctx, r.db, fileID, blobs)
}

func saveMetadata(ctx context.Context, ex execer, fileID string, blobs MetadataBlobs) error {
	for provider, raw := range blobs {
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO file_metadata (file_id, provider, raw_json) VALUES (?, ?, ?)
			ON CONFLICT(file_id, provider) DO UPDATE SET raw_json = excluded.raw_json
		`, fileID, provider, raw); err != nil {
			return fmt.Errorf("repo: save metadata for %s: %w", provider, err)
		}
	}
	return nil
}

func (r *SQLiteRepo) UpdateThumbnailPath(ctx context.Context, fileID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.ExecContext(ctx, "UPDATE files SET thumbnail_path = ? WHERE id = ?", path, fileID)
	return err
}

func (r *SQLiteRepo) UpdateProxyPath(ctx context.Context, fileID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.ExecContext(ctx, "UPDATE files SET proxy_path = ? WHERE id = ?", path, fileID)
	return err
}

func (r *SQLiteRepo) ListByProject(ctx context.Context, projectID string) ([]FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return listByProject(ctx, r.db, projectID)
}

func listByProject(ctx context.Context, db *sql.DB, projectID string) ([]FileRecord, error) {
	rows, err := db.QueryContext(ctx, fileSelectColumns+" FROM files WHERE project_id = ? AND hidden = 0 ORDER BY imported_at", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// --- cameras.* ---

func (r *SQLiteRepo) FindAllWithPatterns(ctx context.Context) ([]CameraRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, display_name, nickname, medium, make, model, lut_path,
			deinterlace, audio_policy, is_default, active, is_system
		FROM cameras
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*CameraRecord)
	var order []string
	for rows.Next() {
		var c CameraRecord
		var nickname, make_, model, lutPath, audioPolicy sql.NullString
		var deinterlace, isDefault, active, isSystem int
		if err := rows.Scan(&c.ID, &c.DisplayName, &nickname, &c.Medium, &make_, &model, &lutPath,
			&deinterlace, &audioPolicy, &isDefault, &active, &isSystem); err != nil {
			return nil, err
		}
		c.Nickname = nickname.String
		c.Make = make_.String
		c.Model = model.String
		c.LUTPath = lutPath.String
		c.AudioPolicy = audioPolicy.String
		c.Deinterlace = deinterlace != 0
		c.Default = isDefault != 0
		c.Active = active != 0
		c.System = isSystem != 0
		byID[c.ID] = &c
		order = append(order, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	patRows, err := r.db.QueryContext(ctx, `SELECT camera_id, kind, glob, priority FROM camera_patterns`)
	if err != nil {
		return nil, err
	}
	defer patRows.Close()
	for patRows.Next() {
		var cameraID string
		var p CameraPattern
		if err := patRows.Scan(&cameraID, &p.Kind, &p.Glob, &p.Priority); err != nil {
			return nil, err
		}
		if c, ok := byID[cameraID]; ok {
			c.Patterns = append(c.Patterns, p)
		}
	}
	if err := patRows.Err(); err != nil {
		return nil, err
	}

	out := make([]CameraRecord, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// --- projects.* ---

func (r *SQLiteRepo) FindByID(ctx context.Context, id string) (*ProjectRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var p ProjectRecord
	var keyDatesJSON string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, folder_name, working_root, key_dates FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.FolderName, &p.WorkingRoot, &keyDatesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.KeyDates = map[string]int64{}
	if keyDatesJSON != "" {
		_ = json.Unmarshal([]byte(keyDatesJSON), &p.KeyDates)
	}
	return &p, nil
}

func (r *SQLiteRepo) Save(ctx context.Context, rec ProjectRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keyDates := rec.KeyDates
	if keyDates == nil {
		keyDates = map[string]int64{}
	}
	keyDatesJSON, err := json.Marshal(keyDates)
	if err != nil {
		return fmt.Errorf("repo: marshal key dates: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, folder_name, working_root, key_dates)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			folder_name = excluded.folder_name,
			working_root = excluded.working_root,
			key_dates = excluded.key_dates
	`, rec.ID, rec.Name, rec.FolderName, rec.WorkingRoot, string(keyDatesJSON))
	return err
}

// --- sessions.* ---

func (r *SQLiteRepo) Upsert(ctx context.Context, rec SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sourcePaths, err := json.Marshal(rec.SourcePaths)
	if err != nil {
		return fmt.Errorf("repo: marshal source paths: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, project_id, status, last_stage, resumable, source_paths, archive_path,
			total_files, processed_files, duplicate_files, error_files,
			total_bytes, processed_bytes, last_error, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			last_stage = excluded.last_stage,
			resumable = excluded.resumable,
			archive_path = excluded.archive_path,
			total_files = excluded.total_files,
			processed_files = excluded.processed_files,
			duplicate_files = excluded.duplicate_files,
			error_files = excluded.error_files,
			total_bytes = excluded.total_bytes,
			processed_bytes = excluded.processed_bytes,
			last_error = excluded.last_error,
			completed_at = excluded.completed_at
	`,
		rec.ID, rec.ProjectID, rec.Status, rec.LastStage, boolToInt(rec.Resumable), string(sourcePaths),
		nullString(rec.ArchivePath), rec.TotalFiles, rec.ProcessedFiles, rec.DuplicateFiles, rec.ErrorFiles,
		rec.TotalBytes, rec.ProcessedBytes, nullString(rec.LastError), rec.StartedAt, nullInt64Ptr(rec.CompletedAt),
	)
	return err
}

func (r *SQLiteRepo) Complete(ctx context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resumable := status != "completed" && status != "cancelled"
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, resumable = ?, completed_at = strftime('%s','now')
		WHERE id = ?
	`, status, boolToInt(resumable), id)
	return err
}

func (r *SQLiteRepo) FindResumable(ctx context.Context) ([]SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, status, last_stage, resumable, source_paths, archive_path,
			total_files, processed_files, duplicate_files, error_files,
			total_bytes, processed_bytes, last_error, started_at, completed_at
		FROM sessions
		WHERE resumable = 1 AND status NOT IN ('completed', 'cancelled', 'failed')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) Get(ctx context.Context, id string) (*SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, status, last_stage, resumable, source_paths, archive_path,
			total_files, processed_files, duplicate_files, error_files,
			total_bytes, processed_bytes, last_error, started_at, completed_at
		FROM sessions WHERE id = ?
	`, id)

	rec, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *SQLiteRepo) List(ctx context.Context) ([]SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, status, last_stage, resumable, source_paths, archive_path,
			total_files, processed_files, duplicate_files, error_files,
			total_bytes, processed_bytes, last_error, started_at, completed_at
		FROM sessions ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var rec SessionRecord
	var resumable int
	var sourcePaths string
	var archivePath, lastError sql.NullString
	var completedAt sql.NullInt64

	err := row.Scan(&rec.ID, &rec.ProjectID, &rec.Status, &rec.LastStage, &resumable, &sourcePaths,
		&archivePath, &rec.TotalFiles, &rec.ProcessedFiles, &rec.DuplicateFiles, &rec.ErrorFiles,
		&rec.TotalBytes, &rec.ProcessedBytes, &lastError, &rec.StartedAt, &completedAt)
	if err != nil {
		return rec, err
	}
	rec.Resumable = resumable != 0
	rec.ArchivePath = archivePath.String
	rec.LastError = lastError.String
	if completedAt.Valid {
		v := completedAt.Int64
		rec.CompletedAt = &v
	}
	_ = json.Unmarshal([]byte(sourcePaths), &rec.SourcePaths)
	return rec, nil
}

// --- transaction ---

// Transact runs fn against a Files handle bound to a single SQL
// transaction, giving the finalizer the atomicity spec.md §4.5 requires
// between inserting the file row and persisting its metadata blobs.
func (r *SQLiteRepo) Transact(ctx context.Context, fn func(Files) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&txFiles{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txFiles implements Files against an in-flight *sql.Tx, for use inside
// Transact only.
type txFiles struct {
	tx *sql.Tx
}

func (t *txFiles) FindByHash(ctx context.Context, fingerprint string) (*FileRecord, error) {
	return findByHash(ctx, t.tx, fingerprint)
}

func (t *txFiles) Create(ctx context.Context, rec FileRecord) error {
	return createFile(ctx, t.tx, rec)
}

func (t *txFiles) SaveMetadata(ctx context.Context, fileID string, blobs MetadataBlobs) error {
	return saveMetadata(ctx, t.tx, fileID, blobs)
}

func (t *txFiles) UpdateThumbnailPath(ctx context.Context, fileID, path string) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE files SET thumbnail_path = ? WHERE id = ?", path, fileID)
	return err
}

func (t *txFiles) UpdateProxyPath(ctx context.Context, fileID, path string) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE files SET proxy_path = ? WHERE id = ?", path, fileID)
	return err
}

func (t *txFiles) ListByProject(ctx context.Context, projectID string) ([]FileRecord, error) {
	rows, err := t.tx.QueryContext(ctx, fileSelectColumns+" FROM files WHERE project_id = ? AND hidden = 0 ORDER BY imported_at", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// --- scanning and null helpers ---

const fileSelectColumns = `SELECT
	id, fingerprint, original_filename, original_path, archive_path, size,
	extension, kind, medium, camera_id, camera_name, project_id, footage_type,
	make, model, lens, width, height, duration_ms, frame_rate, codec, bit_rate,
	recording_at, imported_at, thumbnail_path, proxy_path, hidden`

// querier and execer let the same scan/insert helpers run against either
// *sql.DB or an in-flight *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*FileRecord, error) {
	var rec FileRecord
	var cameraID, cameraName, footageType, make_, model, lens sql.NullString
	var codec, thumbnailPath, proxyPath sql.NullString
	var width, height sql.NullInt64
	var duration, bitRate, recordingAt sql.NullInt64
	var frameRate sql.NullFloat64
	var hidden int

	err := row.Scan(
		&rec.ID, &rec.Fingerprint, &rec.OriginalFilename, &rec.OriginalPath, &rec.ArchivePath, &rec.Size,
		&rec.Extension, &rec.Kind, &rec.Medium, &cameraID, &cameraName, &rec.ProjectID, &footageType,
		&make_, &model, &lens, &width, &height, &duration, &frameRate, &codec, &bitRate,
		&recordingAt, &rec.ImportedAt, &thumbnailPath, &proxyPath, &hidden,
	)
	if err != nil {
		return nil, err
	}

	rec.CameraID = cameraID.String
	rec.CameraName = cameraName.String
	rec.FootageType = footageType.String
	rec.Make = make_.String
	rec.Model = model.String
	rec.Lens = lens.String
	rec.Codec = codec.String
	rec.ThumbnailPath = thumbnailPath.String
	rec.ProxyPath = proxyPath.String
	rec.Hidden = hidden != 0

	if width.Valid {
		v := int(width.Int64)
		rec.Width = &v
	}
	if height.Valid {
		v := int(height.Int64)
		rec.Height = &v
	}
	if duration.Valid {
		v := duration.Int64
		rec.Duration = &v
	}
	if frameRate.Valid {
		v := frameRate.Float64
		rec.FrameRate = &v
	}
	if bitRate.Valid {
		v := bitRate.Int64
		rec.BitRate = &v
	}
	if recordingAt.Valid {
		v := recordingAt.Int64
		rec.RecordingAt = &v
	}

	return &rec, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIntPtr(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64Ptr(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat64Ptr(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
