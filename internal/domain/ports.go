package domain

import (
	"context"
	"time"
)

type ElectionRepository interface {
	FindByID(ctx context.Context, id ElectionID) (Election, error)
}

type ConstituencyRepository interface {
	FindByID(ctx context.Context, id ConstituencyID) (Constituency, error)
}

type CandidateRepository interface {
	FindByID(ctx context.Context, id CandidateID) (Candidate, error)
	// FindForBallot resolves a candidate only when it belongs to both the
	// election and the constituency, party preloaded.
	FindForBallot(ctx context.Context, id CandidateID, electionID ElectionID, constituencyID ConstituencyID) (Candidate, error)
}

type DeviceRepository interface {
	// Upsert creates the fingerprint row on first sighting or refreshes
	// last_seen on a revisit. Must be idempotent under concurrent first
	// sightings (uniqueness on the hash, conflict resolved in-store).
	Upsert(ctx context.Context, fingerprintHash, ipHash string, now time.Time) (DeviceFingerprint, error)
}

type SessionRepository interface {
	FindByToken(ctx context.Context, token string) (VoterSession, error)
	FindByElectionAndDevice(ctx context.Context, electionID ElectionID, deviceID DeviceID) (VoterSession, error)
	// Issue persists a new session or overwrites the existing row for the
	// same (election, device) pair, superseding its token.
	Issue(ctx context.Context, session VoterSession) error
}

// VoteLedger is the atomic heart of the system: Cast performs the session
// compare-and-set, the vote insert, the tally upsert-increment and the device
// vote-count bump inside one storage transaction.
type VoteLedger interface {
	Cast(ctx context.Context, vote Vote, sessionToken string, now time.Time) error
	FindByReceipt(ctx context.Context, receiptToken string) (Vote, error)
	CountByElection(ctx context.Context, id ElectionID) (int64, error)
	CountByConstituency(ctx context.Context, electionID ElectionID, constituencyID ConstituencyID) (int64, error)
}

type ResultRepository interface {
	// TallyByConstituency reads the per-candidate counts joined with party
	// colors under a consistent snapshot.
	TallyByConstituency(ctx context.Context, electionID ElectionID, constituencyID ConstituencyID) ([]CandidateTally, error)
	SaveConstituencyResult(ctx context.Context, result ConstituencyResult) error
	FindConstituencyResult(ctx context.Context, electionID ElectionID, constituencyID ConstituencyID) (ConstituencyResult, error)
	ListConstituencyResults(ctx context.Context, electionID ElectionID) ([]ConstituencyResult, error)
}

type AuditRepository interface {
	Record(ctx context.Context, entry AuditLog) error
}

type Counter interface {
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

type RecomputeQueue interface {
	Enqueue(ctx context.Context, job RecomputeJob) error
	Consume(ctx context.Context, handler func(context.Context, RecomputeJob) error) error
}

// Broadcaster hands aggregate deltas to the pub/sub collaborator. Delivery
// and subscription management are not the core's problem.
type Broadcaster interface {
	PublishConstituencyUpdate(ctx context.Context, update ConstituencyUpdate) error
	PublishVoteCount(ctx context.Context, electionID ElectionID, totalVotes int64) error
}

// RateLimiter pre-gates the cast-vote entry point. Implementations decide
// their own failure policy; the shipped Redis limiter fails open.
type RateLimiter interface {
	Allow(ctx context.Context, key string) error
}

type Clock interface {
	Now() time.Time
}

type IdentityService interface {
	VerifyDevice(ctx context.Context, descriptor FingerprintDescriptor, electionID ElectionID, clientIP string) (SessionGrant, error)
	ValidateSession(ctx context.Context, token string) (VoterSession, error)
}

type VotingService interface {
	CastVote(ctx context.Context, sessionToken string, electionID ElectionID, constituencyID ConstituencyID, candidateID CandidateID, clientIP string) (string, error)
	VerifyReceipt(ctx context.Context, receiptToken string) (ReceiptDetails, error)
}

type ResultsService interface {
	Recompute(ctx context.Context, electionID ElectionID, constituencyID ConstituencyID) (ConstituencyResult, error)
	ElectionResults(ctx context.Context, electionID ElectionID) (ElectionResults, error)
	ConstituencyResults(ctx context.Context, electionID ElectionID, constituencyID ConstituencyID) (ConstituencyResult, error)
}
