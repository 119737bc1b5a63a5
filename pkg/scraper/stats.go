package scraper

// Stats accumulates per-run counters. The orchestrator owns the
// accumulator exclusively; callers receive a copy when the run ends.
type Stats struct {
	// Attempted counts issues whose detail fetch was scheduled and
	// completed, successfully or not. Skipped issues are not attempted.
	Attempted int `json:"attempted"`

	// Succeeded counts issues fetched, validated, and handed downstream.
	Succeeded int `json:"succeeded"`

	// Failed counts issues whose fetch ended in a terminal failure after
	// the client's retries were exhausted.
	Failed int `json:"failed"`

	// Skipped counts issues bypassed without effect: already present in
	// the completed set, or fetched but failing schema validation.
	Skipped int `json:"skipped"`

	// Retries counts extra HTTP attempts beyond the first, summed over
	// all fetches.
	Retries int `json:"retries"`
}
