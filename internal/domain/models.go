package domain

import (
	"time"
)

type (
	ElectionID     string
	PartyID        string
	ConstituencyID string
	CandidateID    string
	DeviceID       string
	SessionID      string
	VoteID         string
)

type ElectionStatus string

const (
	ElectionDraft     ElectionStatus = "draft"
	ElectionActive    ElectionStatus = "active"
	ElectionPaused    ElectionStatus = "paused"
	ElectionCompleted ElectionStatus = "completed"
	ElectionCancelled ElectionStatus = "cancelled"
)

// Election, Party, Constituency and Candidate are owned by the admin
// subsystem; the voting core only reads them.
type Election struct {
	ID          ElectionID     `gorm:"column:id;type:char(26);primaryKey"`
	Name        string         `gorm:"column:name;type:text;not null"`
	Description string         `gorm:"column:description;type:text"`
	StartDate   time.Time      `gorm:"column:start_date;not null"`
	EndDate     time.Time      `gorm:"column:end_date;not null"`
	Status      ElectionStatus `gorm:"column:status;type:text;not null;default:draft"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

type Party struct {
	ID        PartyID   `gorm:"column:id;type:char(26);primaryKey"`
	Name      string    `gorm:"column:name;type:text;not null"`
	ShortName string    `gorm:"column:short_name;type:text;not null"`
	Color     string    `gorm:"column:color;type:char(7);not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

type Constituency struct {
	ID        ConstituencyID `gorm:"column:id;type:char(26);primaryKey"`
	Code      string         `gorm:"column:code;type:text;not null;uniqueIndex"`
	Name      string         `gorm:"column:name;type:text;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

type Candidate struct {
	ID             CandidateID    `gorm:"column:id;type:char(26);primaryKey"`
	ElectionID     ElectionID     `gorm:"column:election_id;type:char(26);not null;index"`
	ConstituencyID ConstituencyID `gorm:"column:constituency_id;type:char(26);not null;index"`
	PartyID        PartyID        `gorm:"column:party_id;type:char(26);not null"`
	Name           string         `gorm:"column:name;type:text;not null"`
	BallotOrder    int            `gorm:"column:ballot_order;not null;default:0"`
	Party          Party          `gorm:"foreignKey:PartyID;references:ID"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// DeviceFingerprint is the pseudonymous identity of a physical device. Rows
// are created on first sighting and never deleted; only last_seen and
// vote_count move afterwards.
type DeviceFingerprint struct {
	ID              DeviceID  `gorm:"column:id;type:char(26);primaryKey"`
	FingerprintHash string    `gorm:"column:fingerprint_hash;type:char(64);not null;uniqueIndex"`
	IPHash          string    `gorm:"column:ip_hash;type:char(64)"`
	FirstSeen       time.Time `gorm:"column:first_seen;not null"`
	LastSeen        time.Time `gorm:"column:last_seen;not null"`
	VoteCount       int64     `gorm:"column:vote_count;not null;default:0"`
	Flagged         bool      `gorm:"column:flagged;not null;default:false"`
}

// VoterSession is the single-use credential tying one device to one election.
// At most one row per (election, device); has_voted only ever goes false→true.
type VoterSession struct {
	ID                  SessionID  `gorm:"column:id;type:char(26);primaryKey"`
	ElectionID          ElectionID `gorm:"column:election_id;type:char(26);not null;uniqueIndex:idx_sessions_election_device,priority:1"`
	DeviceFingerprintID DeviceID   `gorm:"column:device_fingerprint_id;type:char(26);not null;uniqueIndex:idx_sessions_election_device,priority:2"`
	SessionToken        string     `gorm:"column:session_token;type:char(64);not null;uniqueIndex"`
	HasVoted            bool       `gorm:"column:has_voted;not null;default:false"`
	ExpiresAt           time.Time  `gorm:"column:expires_at;not null"`
	VotedAt             *time.Time `gorm:"column:voted_at"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Vote is append-only and anonymous: it carries no device or session linkage,
// only the opaque receipt token and a salted IP hash kept for abuse forensics.
type Vote struct {
	ID             VoteID         `gorm:"column:id;type:char(26);primaryKey"`
	ElectionID     ElectionID     `gorm:"column:election_id;type:char(26);not null;index:idx_votes_election"`
	ConstituencyID ConstituencyID `gorm:"column:constituency_id;type:char(26);not null;index:idx_votes_constituency"`
	CandidateID    CandidateID    `gorm:"column:candidate_id;type:char(26);not null;index:idx_votes_candidate"`
	ReceiptToken   string         `gorm:"column:receipt_token;type:char(64);not null;uniqueIndex"`
	IPHash         string         `gorm:"column:ip_hash;type:char(64)"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// VoteResult is the per-candidate running tally. Its count always equals the
// number of Vote rows with the same key; both move inside one transaction.
type VoteResult struct {
	ElectionID     ElectionID     `gorm:"column:election_id;type:char(26);primaryKey"`
	ConstituencyID ConstituencyID `gorm:"column:constituency_id;type:char(26);primaryKey"`
	CandidateID    CandidateID    `gorm:"column:candidate_id;type:char(26);primaryKey"`
	VoteCount      int64          `gorm:"column:vote_count;not null;default:0"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// CandidateShare is one line of the per-constituency breakdown snapshot.
type CandidateShare struct {
	CandidateID   CandidateID `json:"candidateId"`
	CandidateName string      `json:"candidateName"`
	PartyShort    string      `json:"partyShort"`
	PartyColor    string      `json:"partyColor"`
	VoteCount     int64       `json:"voteCount"`
	Percentage    float64     `json:"percentage"`
}

// ConstituencyResult is a derived cache, fully re-derivable from VoteResult.
type ConstituencyResult struct {
	ElectionID         ElectionID       `gorm:"column:election_id;type:char(26);primaryKey"`
	ConstituencyID     ConstituencyID   `gorm:"column:constituency_id;type:char(26);primaryKey"`
	MapColor           string           `gorm:"column:map_color;type:char(7);not null"`
	Breakdown          []CandidateShare `gorm:"column:breakdown;type:text;serializer:json"`
	WinningCandidateID CandidateID      `gorm:"column:winning_candidate_id;type:char(26)"`
	WinnerName         string           `gorm:"column:winner_name;type:text"`
	WinnerParty        string           `gorm:"column:winner_party;type:text"`
	WinningPercentage  float64          `gorm:"column:winning_percentage;not null;default:0"`
	VictoryMargin      float64          `gorm:"column:victory_margin;not null;default:0"`
	TotalVotes         int64            `gorm:"column:total_votes;not null;default:0"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

type AuditLog struct {
	ID         string    `gorm:"column:id;type:char(26);primaryKey"`
	Action     string    `gorm:"column:action;type:text;not null"`
	EntityType string    `gorm:"column:entity_type;type:text"`
	Details    string    `gorm:"column:details;type:text"`
	IPHash     string    `gorm:"column:ip_hash;type:char(64)"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// FingerprintDescriptor is the raw client-side identity material. Only the
// stable subset (visitor id, user agent, screen resolution) feeds the hash;
// the remaining signals are too volatile to survive across sessions.
type FingerprintDescriptor struct {
	VisitorID        string            `json:"visitorId"`
	UserAgent        string            `json:"userAgent"`
	ScreenResolution string            `json:"screenResolution"`
	Signals          map[string]string `json:"signals,omitempty"`
	Confidence       float64           `json:"confidence"`
}

// SessionGrant is what a successful device verification hands back.
type SessionGrant struct {
	SessionToken string
	ExpiresAt    time.Time
}

// CandidateTally is the aggregation read model: one candidate's standing
// within a constituency, joined with its party color for the blend.
type CandidateTally struct {
	CandidateID   CandidateID
	CandidateName string
	PartyShort    string
	PartyColor    string
	BallotOrder   int
	VoteCount     int64
}

// ReceiptDetails is the read-only view resolved from a receipt token. It must
// never carry device or session linkage.
type ReceiptDetails struct {
	ElectionID       ElectionID
	ElectionName     string
	ConstituencyCode string
	ConstituencyName string
	CandidateName    string
	PartyName        string
	PartyColor       string
	VotedAt          time.Time
}

// ConstituencyUpdate is the event emitted after each successful recomputation.
type ConstituencyUpdate struct {
	ElectionID     ElectionID       `json:"electionId"`
	ConstituencyID ConstituencyID   `json:"constituencyId"`
	Color          string           `json:"color"`
	Breakdown      []CandidateShare `json:"breakdown"`
	TotalVotes     int64            `json:"totalVotes"`
	WinnerName     string           `json:"winnerName,omitempty"`
	WinnerParty    string           `json:"winnerParty,omitempty"`
}

// RecomputeJob asks the worker to rebuild one constituency aggregate.
// Attempt counts deliveries so poison jobs fall off after a bounded retry.
type RecomputeJob struct {
	ElectionID     ElectionID     `json:"electionId"`
	ConstituencyID ConstituencyID `json:"constituencyId"`
	Attempt        int            `json:"attempt"`
}

// ElectionResults bundles every cached constituency aggregate of one election.
type ElectionResults struct {
	ElectionID     ElectionID
	ElectionName   string
	Status         ElectionStatus
	TotalVotes     int64
	Constituencies []ConstituencyResult
}

func (Election) TableName() string { return "elections" }

func (Party) TableName() string { return "parties" }

func (Constituency) TableName() string { return "constituencies" }

func (Candidate) TableName() string { return "candidates" }

func (DeviceFingerprint) TableName() string { return "device_fingerprints" }

func (VoterSession) TableName() string { return "voter_sessions" }

func (Vote) TableName() string { return "votes" }

func (VoteResult) TableName() string { return "vote_results" }

func (ConstituencyResult) TableName() string { return "constituency_results" }

func (AuditLog) TableName() string { return "audit_logs" }
