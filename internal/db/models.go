package db

import (
	"encoding/json"
	"time"
)

// User maps dedup.users.
type User struct {
	UserID       int64     `gorm:"column:user_id;primaryKey;autoIncrement"`
	UserUUID     string    `gorm:"column:user_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Username     string    `gorm:"column:username;type:text;not null;unique"`
	PasswordHash string    `gorm:"column:password_hash;type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (User) TableName() string { return "dedup.users" }

// Session maps dedup.sessions. Tokens are stored hashed.
type Session struct {
	SessionID int64     `gorm:"column:session_id;primaryKey;autoIncrement"`
	TokenHash string    `gorm:"column:token_hash;type:text;not null;unique"`
	UserID    int64     `gorm:"column:user_id;type:bigint;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Session) TableName() string { return "dedup.sessions" }

// Project maps dedup.projects.
type Project struct {
	ProjectID   int64     `gorm:"column:project_id;primaryKey;autoIncrement"`
	ProjectUUID string    `gorm:"column:project_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Name        string    `gorm:"column:name;type:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Project) TableName() string { return "dedup.projects" }

// Source maps dedup.sources, one originating literature database per project.
type Source struct {
	SourceID   int64     `gorm:"column:source_id;primaryKey;autoIncrement"`
	SourceUUID string    `gorm:"column:source_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProjectID  int64     `gorm:"column:project_id;type:bigint;not null"`
	Name       string    `gorm:"column:name;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Source) TableName() string { return "dedup.sources" }

// CanonicalRecord maps dedup.canonical_records, the deduplicated
// representative of one real-world work. Created and deleted only by the
// cluster builder and single-item placement. A NULL match_key marks an
// isolated record that is never unioned with any other.
type CanonicalRecord struct {
	CanonicalID   int64           `gorm:"column:canonical_id;primaryKey;autoIncrement"`
	CanonicalUUID string          `gorm:"column:canonical_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProjectID     int64           `gorm:"column:project_id;type:bigint;not null"`
	MatchKey      *string         `gorm:"column:match_key;type:text"`
	MatchBasis    string          `gorm:"column:match_basis;type:text;not null;default:none"`
	Title         *string         `gorm:"column:title;type:text"`
	Abstract      *string         `gorm:"column:abstract;type:text"`
	Authors       json.RawMessage `gorm:"column:authors;type:jsonb"`
	PubYear       *int            `gorm:"column:pub_year;type:integer"`
	Journal       *string         `gorm:"column:journal;type:text"`
	Volume        *string         `gorm:"column:volume;type:text"`
	Issue         *string         `gorm:"column:issue;type:text"`
	Pages         *string         `gorm:"column:pages;type:text"`
	Identifier    *string         `gorm:"column:identifier;type:text"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (CanonicalRecord) TableName() string { return "dedup.canonical_records" }

// SourceItem maps dedup.source_items, one as-ingested record from one
// originating source. raw_payload and the parsed/normalized columns are
// immutable after insert; only canonical_id may change, and only under the
// project gate.
type SourceItem struct {
	SourceItemID    int64           `gorm:"column:source_item_id;primaryKey;autoIncrement"`
	SourceItemUUID  string          `gorm:"column:source_item_uuid;type:uuid;not null;unique"`
	ProjectID       int64           `gorm:"column:project_id;type:bigint;not null"`
	SourceID        int64           `gorm:"column:source_id;type:bigint;not null"`
	CanonicalID     int64           `gorm:"column:canonical_id;type:bigint;not null"`
	RawPayload      json.RawMessage `gorm:"column:raw_payload;type:jsonb;not null"`
	Title           *string         `gorm:"column:title;type:text"`
	Abstract        *string         `gorm:"column:abstract;type:text"`
	Authors         json.RawMessage `gorm:"column:authors;type:jsonb"`
	PubYear         *int            `gorm:"column:pub_year;type:integer"`
	Journal         *string         `gorm:"column:journal;type:text"`
	Volume          *string         `gorm:"column:volume;type:text"`
	Issue           *string         `gorm:"column:issue;type:text"`
	Pages           *string         `gorm:"column:pages;type:text"`
	Identifier      *string         `gorm:"column:identifier;type:text"`
	Language        *string         `gorm:"column:language;type:text"`
	NormTitle       *string         `gorm:"column:norm_title;type:text"`
	NormFirstAuthor *string         `gorm:"column:norm_first_author;type:text"`
	NormIdentifier  *string         `gorm:"column:norm_identifier;type:text"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (SourceItem) TableName() string { return "dedup.source_items" }

// MatchStrategy maps dedup.match_strategies. At most one row per project has
// is_active = true, enforced by a partial unique index and flipped only
// inside the clustering transaction.
type MatchStrategy struct {
	StrategyID   int64           `gorm:"column:strategy_id;primaryKey;autoIncrement"`
	StrategyUUID string          `gorm:"column:strategy_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProjectID    int64           `gorm:"column:project_id;type:bigint;not null"`
	Name         string          `gorm:"column:name;type:text;not null"`
	Preset       string          `gorm:"column:preset;type:text;not null"`
	Config       json.RawMessage `gorm:"column:config;type:jsonb;not null;default:'{}'"`
	IsActive     bool            `gorm:"column:is_active;type:boolean;not null;default:false"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (MatchStrategy) TableName() string { return "dedup.match_strategies" }

// ClusteringJob maps dedup.clustering_jobs, the durable ledger of one
// cluster-builder execution. Status flows pending -> running -> completed or
// failed; terminal states are final.
type ClusteringJob struct {
	JobID           int64      `gorm:"column:job_id;primaryKey;autoIncrement"`
	JobUUID         string     `gorm:"column:job_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProjectID       int64      `gorm:"column:project_id;type:bigint;not null"`
	StrategyID      int64      `gorm:"column:strategy_id;type:bigint;not null"`
	Status          string     `gorm:"column:status;type:text;not null;default:pending"`
	RecordsBefore   *int       `gorm:"column:records_before;type:integer"`
	RecordsAfter    *int       `gorm:"column:records_after;type:integer"`
	Merges          *int       `gorm:"column:merges;type:integer"`
	ClustersCreated *int       `gorm:"column:clusters_created;type:integer"`
	ClustersDeleted *int       `gorm:"column:clusters_deleted;type:integer"`
	ErrorMessage    *string    `gorm:"column:error_message;type:text"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	StartedAt       *time.Time `gorm:"column:started_at;type:timestamptz"`
	CompletedAt     *time.Time `gorm:"column:completed_at;type:timestamptz"`
}

func (ClusteringJob) TableName() string { return "dedup.clustering_jobs" }

// AuditEntry maps dedup.audit_entries, the append-only log of every per-item
// clustering decision. prior_canonical_id nulls out when its record is later
// garbage-collected.
type AuditEntry struct {
	AuditEntryID     int64     `gorm:"column:audit_entry_id;primaryKey;autoIncrement"`
	AuditEntryUUID   string    `gorm:"column:audit_entry_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	JobID            int64     `gorm:"column:job_id;type:bigint;not null"`
	SourceItemID     int64     `gorm:"column:source_item_id;type:bigint;not null"`
	PriorCanonicalID *int64    `gorm:"column:prior_canonical_id;type:bigint"`
	NewCanonicalID   int64     `gorm:"column:new_canonical_id;type:bigint;not null"`
	MatchKey         *string   `gorm:"column:match_key;type:text"`
	MatchBasis       string    `gorm:"column:match_basis;type:text;not null;default:none"`
	Action           string    `gorm:"column:action;type:text;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (AuditEntry) TableName() string { return "dedup.audit_entries" }

func autoMigrateModels() []any {
	return []any{
		&User{},
		&Session{},
		&Project{},
		&Source{},
		&CanonicalRecord{},
		&SourceItem{},
		&MatchStrategy{},
		&ClusteringJob{},
		&AuditEntry{},
	}
}
