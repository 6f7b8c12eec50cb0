// Package constants provides shared constants used across the codebase.
package constants

// Query constants
const (
	// DefaultCategoryLimit is the default number of keyword search results
	DefaultCategoryLimit = 100

	// DefaultSimilarLimit is the default number of similarity search results
	DefaultSimilarLimit = 30

	// MaxResultLimit caps the limit accepted from API clients
	MaxResultLimit = 5000
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel image decodes
	WorkerPoolSize = 20

	// MaxImageSize is the maximum dimension (width or height) for image processing
	MaxImageSize = 1920
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Request body constants
const (
	// MaxRequestBodySize bounds JSON request bodies (10MB)
	MaxRequestBodySize = 10 << 20
)
