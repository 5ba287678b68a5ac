package constants

const (
	// Files considered during file selection
	MaxFileCandidates = 20

	DefaultMaxResults = 50

	// Concurrent ffmpeg processes
	DefaultTranscodeWorkers = 2

	// Magnets per instant-availability request
	InstantBatchSize = 25
)
