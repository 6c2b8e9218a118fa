// Package constants centralizes application-level constants: Redis key
// naming, cache lifetimes, and scoring/retrieval defaults.
package constants

import "time"

// Redis key scheme: app:{module}:{entity}:{id}.
const (
	AppPrefix = "match"

	RankModulePrefix = "rank"
	JDModulePrefix   = "jd"
	FileModulePrefix = "file"

	EntitySession  = "session"
	EntityLock     = "lock"
	EntityVector   = "vector"
	EntityDedupSet = "dedup_set"
)

const (
	// RawFileMD5SetKey holds MD5 digests of already-uploaded raw files.
	RawFileMD5SetKey = "resumes:file_md5s"

	// JDVectorTTL bounds how long a cached JD embedding stays valid.
	JDVectorTTL = 24 * time.Hour

	// RankCacheTTL bounds how long a cached ranking result set stays valid.
	RankCacheTTL = 30 * time.Minute

	// RankLockTTL bounds how long a ranking computation may hold its lock.
	RankLockTTL = 5 * time.Minute
)

// Retrieval and ranking defaults.
const (
	DefaultTopK        = 50
	DefaultResultCount = 20
	MaxTopK            = 500
)
