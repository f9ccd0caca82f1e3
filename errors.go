package litassist

import "errors"

var (
	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("litassist: unsupported document format")

	// ErrExtractionFailed is returned when a document cannot be read.
	ErrExtractionFailed = errors.New("litassist: text extraction failed")

	// ErrNoText is returned when a document contains no extractable text.
	ErrNoText = errors.New("litassist: document contains no extractable text")

	// ErrLLMUnavailable is returned when no LLM provider is configured.
	ErrLLMUnavailable = errors.New("litassist: LLM provider not configured")

	// ErrLLMRequestFailed is returned when an LLM request fails.
	ErrLLMRequestFailed = errors.New("litassist: LLM request failed")

	// ErrConversionFailed is returned when a report cannot be exported.
	ErrConversionFailed = errors.New("litassist: document conversion failed")

	// ErrUnknownFormat is returned for export formats that are not registered.
	ErrUnknownFormat = errors.New("litassist: unknown export format")

	// ErrAnalysisNotFound is returned when an analysis ID does not exist.
	ErrAnalysisNotFound = errors.New("litassist: analysis not found")

	// ErrHistoryDisabled is returned by history operations when no store
	// is configured.
	ErrHistoryDisabled = errors.New("litassist: analysis history is disabled")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("litassist: invalid configuration")

	// ErrPromptUnavailable is returned when the prompt template cannot be loaded.
	ErrPromptUnavailable = errors.New("litassist: prompt template unavailable")
)
