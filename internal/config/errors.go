package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration. Callers match
// them with errors.Is().
var (
	// ErrNoTarget is returned when no target URL is specified.
	ErrNoTarget = errors.New("no target specified: provide a URL to crawl")

	// ErrInvalidTarget is returned when the target URL has no host or is not
	// a valid v3 onion address.
	ErrInvalidTarget = errors.New("invalid target URL")

	// ErrStreamWithoutOutput is returned when streaming is requested without
	// a word output file. Streaming writes words as they are found, so it
	// needs a file to write to.
	ErrStreamWithoutOutput = errors.New("--stream requires --output to be set")

	// ErrInvalidStrategy is returned for an unknown subdomain strategy.
	ErrInvalidStrategy = errors.New("invalid subdomain strategy: must be exact, children or all")

	// ErrInvalidDepth is returned when the depth is negative.
	// Use 0 for unlimited depth.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidMinWordLength is returned when the minimum word length is negative.
	ErrInvalidMinWordLength = errors.New("invalid minimum word length: must be non-negative")

	// ErrInvalidRate is returned when the request rate is negative.
	// Use 0 to disable pacing.
	ErrInvalidRate = errors.New("invalid rate: must be non-negative")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate connection failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, markdown or json")

	// ErrConflictingTorOptions is returned when both --tor and --tor-proxy
	// are specified. Only one Tor transport can be used at a time.
	ErrConflictingTorOptions = errors.New("conflicting tor options: --tor and --tor-proxy cannot be used together")

	// ErrDuplicateOutputPath is returned when two output lists share a file.
	ErrDuplicateOutputPath = errors.New("output files must be distinct")
)
