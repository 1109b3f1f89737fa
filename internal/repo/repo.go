// Package repo implements the repository operations spec.md §6 states as
// external contracts (files.*, cameras.*, projects.*, sessions.*). The
// core only ever depends on the interfaces in this file; SQLiteRepo is
// one concrete backing, grounded on the teacher's internal/store package
// (WAL pragmas, schema-version migration ladder, one *sql.DB per
// process) generalized from a single jobs table to the ingest domain's
// six tables.
package repo

import "context"

// FileRecord is the persistent row keyed by fingerprint (spec.md §3
// "File record").
type FileRecord struct {
	ID               string
	Fingerprint      string
	OriginalFilename string
	OriginalPath     string
	ArchivePath      string
	Size             int64
	Extension        string
	Kind             string
	Medium           string
	CameraID         string
	CameraName       string
	ProjectID        string
	FootageType      string
	Make             string
	Model            string
	Lens             string
	Width            *int
	Height           *int
	Duration         *int64
	FrameRate        *float64
	Codec            string
	BitRate          *int64
	RecordingAt      *int64
	ImportedAt       int64
	ThumbnailPath    string
	ProxyPath        string
	Hidden           bool
}

// CameraPattern mirrors camera.Pattern for persistence.
type CameraPattern struct {
	Kind     string
	Glob     string
	Priority int
}

// CameraRecord is the persistent camera row plus its pattern set
// (spec.md §3 "Camera record").
type CameraRecord struct {
	ID          string
	DisplayName string
	Nickname    string
	Medium      string
	Make        string
	Model       string
	LUTPath     string
	Deinterlace bool
	AudioPolicy string
	Default     bool
	Active      bool
	System      bool
	Patterns    []CameraPattern
}

// ProjectRecord gives the copy engine a working root and folder name,
// plus opaque key dates the finalizer compares recording time against
// for footage-type tagging (spec.md §3 "Project record").
type ProjectRecord struct {
	ID          string
	Name        string
	FolderName  string
	WorkingRoot string
	KeyDates    map[string]int64 // label -> unix seconds, e.g. "ceremony"
}

// SessionRecord is the import-session row (spec.md §3 "Import-session
// record").
type SessionRecord struct {
	ID               string
	ProjectID        string
	Status           string
	LastStage        int
	Resumable        bool
	SourcePaths      []string
	ArchivePath      string
	TotalFiles       int
	ProcessedFiles   int
	DuplicateFiles   int
	ErrorFiles       int
	TotalBytes       int64
	ProcessedBytes   int64
	LastError        string
	StartedAt        int64
	CompletedAt      *int64
}

// MetadataBlobs are the raw per-provider JSON blobs a finalize pass
// attaches to a file record (spec.md §4.5 step 4).
type MetadataBlobs map[string][]byte

// Files is the files.* contract group.
type Files interface {
	FindByHash(ctx context.Context, fingerprint string) (*FileRecord, error)
	Create(ctx context.Context, rec FileRecord) error
	SaveMetadata(ctx context.Context, fileID string, blobs MetadataBlobs) error
	UpdateThumbnailPath(ctx context.Context, fileID, path string) error
	UpdateProxyPath(ctx context.Context, fileID, path string) error
	// ListByProject returns every non-hidden file for a project, for
	// manifest/document rebuilds (spec.md §4.7).
	ListByProject(ctx context.Context, projectID string) ([]FileRecord, error)
	// FindByFileID looks up one file by its own id, for post-ingest job
	// handlers that only carry a file id in their payload. Named apart
	// from Projects.FindByID and Sessions.Get since Repo embeds all three.
	FindByFileID(ctx context.Context, id string) (*FileRecord, error)
}

// Cameras is the cameras.* contract group.
type Cameras interface {
	FindAllWithPatterns(ctx context.Context) ([]CameraRecord, error)
}

// Projects is the projects.* contract group.
type Projects interface {
	FindByID(ctx context.Context, id string) (*ProjectRecord, error)
	// Save upserts a project row. spec.md names no dedicated
	// project-provisioning operation; cmd/ingest uses this to bootstrap
	// the project a session imports into from its own flags. Named Save
	// rather than Create/Upsert since Repo embeds Files and Sessions,
	// which already use those names with different signatures.
	Save(ctx context.Context, rec ProjectRecord) error
}

// Sessions is the sessions.* contract group.
type Sessions interface {
	Upsert(ctx context.Context, rec SessionRecord) error
	Complete(ctx context.Context, id, status string) error
	FindResumable(ctx context.Context) ([]SessionRecord, error)
	// Get looks up one session by id, returning nil, nil if absent. Named
	// distinctly from Projects.FindByID since Repo embeds both.
	// Used by internal/api to serve session-status lookups.
	Get(ctx context.Context, id string) (*SessionRecord, error)
	// List returns every session, most recently started first, for the
	// session-list API endpoint.
	List(ctx context.Context) ([]SessionRecord, error)
}

// Repo bundles every repository contract the ingest core consumes.
// Transact exposes the transaction the finalizer needs around its
// file-create-plus-metadata step (spec.md §4.5: "no partial rows left
// behind"); fn receives a Files handle scoped to that transaction.
type Repo interface {
	Files
	Cameras
	Projects
	Sessions
	Transact(ctx context.Context, fn func(Files) error) error
	Close() error
}
