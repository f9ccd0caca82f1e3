// Package litassist analyzes research papers with a language model and
// turns the model's structured answer into a Markdown report that can be
// exported as DOCX, XLSX or HTML.
package litassist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brunobiangulo/litassist/export"
	"github.com/brunobiangulo/litassist/llm"
	"github.com/brunobiangulo/litassist/parser"
	"github.com/brunobiangulo/litassist/prompt"
	"github.com/brunobiangulo/litassist/report"
	"github.com/brunobiangulo/litassist/store"
	"github.com/brunobiangulo/litassist/structured"
)

// Assistant is the main entry point for paper analysis.
type Assistant interface {
	// Analyze extracts the text of the document at path, asks the model for
	// a structured analysis and composes the Markdown report.
	Analyze(ctx context.Context, path string, opts ...AnalyzeOption) (*Analysis, error)

	// Export renders a Markdown report in the named format.
	Export(ctx context.Context, markdown, format string) (*Export, error)

	// Formats lists the export format names.
	Formats() []string

	// History returns up to limit stored analyses, newest first.
	History(ctx context.Context, limit int) ([]store.Analysis, error)

	// Get returns one stored analysis including its Markdown.
	Get(ctx context.Context, id int64) (*store.Analysis, error)

	// Delete removes a stored analysis.
	Delete(ctx context.Context, id int64) error

	// Prune removes stored analyses created before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Stats returns history row counts.
	Stats(ctx context.Context) (*store.DBStats, error)

	// Provider and Model name the configured LLM.
	Provider() string
	Model() string

	// Configured reports whether an LLM provider is usable.
	Configured() bool

	// Close releases the history database.
	Close() error
}

// Analysis is the result of analyzing one document.
type Analysis struct {
	ID               int64     `json:"id,omitempty"` // Zero when history is disabled
	Filename         string    `json:"filename"`
	ContentHash      string    `json:"content_hash"`
	Pages            int       `json:"pages"`
	Markdown         string    `json:"markdown"`
	RawResponse      string    `json:"raw_response,omitempty"`
	Parsed           bool      `json:"parsed"` // False when the report fell back to the raw response
	Reused           bool      `json:"reused"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Timestamp        time.Time `json:"timestamp"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
}

// Export is a rendered report file.
type Export struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Option configures an Assistant.
type Option func(*assistant)

// WithProvider replaces the provider built from Config.LLM.
func WithProvider(p llm.Provider) Option {
	return func(a *assistant) { a.chatLLM = p }
}

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *assistant) { a.now = now }
}

// AnalyzeOption configures a single analysis.
type AnalyzeOption func(*analyzeOptions)

type analyzeOptions struct {
	filename string
	force    bool
}

// WithFilename sets the display name when path is a temporary file.
func WithFilename(name string) AnalyzeOption {
	return func(o *analyzeOptions) { o.filename = name }
}

// WithForceAnalyze calls the model even when a stored analysis of the same
// content exists.
func WithForceAnalyze() AnalyzeOption {
	return func(o *analyzeOptions) { o.force = true }
}

// assistant is the concrete implementation of Assistant.
type assistant struct {
	cfg       Config
	store     *store.Store
	chatLLM   llm.Provider
	parsers   *parser.Registry
	exporters *export.Registry
	now       func() time.Time
}

// New creates an Assistant. A missing API key for a hosted provider is not
// an error: the assistant starts and Analyze reports ErrLLMUnavailable.
func New(cfg Config, opts ...Option) (Assistant, error) {
	a := &assistant{
		cfg:       cfg,
		parsers:   parser.NewRegistry(),
		exporters: export.NewRegistry(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(a)
	}

	if a.chatLLM == nil && (cfg.LLM.APIKey != "" || !llm.RequiresAPIKey(cfg.LLM.Provider)) {
		p, err := llm.NewProvider(cfg.LLM.provider())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		a.chatLLM = p
	}

	if cfg.HistoryEnabled {
		s, err := store.New(cfg.resolveDBPath())
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		a.store = s
	}
	return a, nil
}

func (a *assistant) Analyze(ctx context.Context, path string, opts ...AnalyzeOption) (*Analysis, error) {
	options := &analyzeOptions{}
	for _, o := range opts {
		o(options)
	}

	filename := options.filename
	if filename == "" {
		filename = filepath.Base(path)
	}
	format := parser.FormatOf(filename)
	p, err := a.parsers.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if a.chatLLM == nil {
		return nil, ErrLLMUnavailable
	}

	hash, err := fileHash(path)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing file: %v", ErrExtractionFailed, err)
	}

	if a.store != nil && a.cfg.ReuseAnalyses && !options.force {
		if prev, err := a.store.LatestAnalysisByHash(ctx, hash); err == nil {
			slog.Info("reusing stored analysis", "filename", filename, "id", prev.ID)
			return a.fromStored(prev), nil
		}
	}

	if a.cfg.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.AnalyzeTimeout)
		defer cancel()
	}

	start := time.Now()
	parsed, err := p.Parse(ctx, path)
	if err != nil {
		if errors.Is(err, parser.ErrNoText) {
			return nil, fmt.Errorf("%w: %s", ErrNoText, filename)
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	text := truncateInput(parsed.Text(), a.cfg.MaxInputChars)

	template, err := prompt.Load(a.cfg.PromptPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPromptUnavailable, err)
	}

	resp, err := a.chatLLM.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			llm.System(prompt.SystemInstruction),
			llm.User(prompt.Build(template, text)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLLMRequestFailed, err)
	}

	at := a.now()
	result := &Analysis{
		Filename:         filename,
		ContentHash:      hash,
		Pages:            len(parsed.Pages),
		RawResponse:      resp.Content,
		Provider:         a.Provider(),
		Model:            a.Model(),
		Timestamp:        at,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}
	if resp.Model != "" {
		result.Model = resp.Model
	}

	v, err := structured.Parse(resp.Content)
	if err != nil {
		slog.Warn("model response is not structured, rendering raw text",
			"filename", filename, "error", err)
		result.Markdown = report.ComposeRaw(resp.Content, at)
	} else {
		result.Parsed = true
		result.Markdown = report.ComposeValue(v, at)
	}

	if a.store != nil {
		id, err := a.record(ctx, result, format, parsed.Metadata)
		if err != nil {
			slog.Warn("storing analysis failed", "filename", filename, "error", err)
		}
		result.ID = id
	}

	slog.Info("analysis complete",
		"filename", filename,
		"pages", result.Pages,
		"parsed", result.Parsed,
		"prompt_tokens", result.PromptTokens,
		"completion_tokens", result.CompletionTokens,
		"duration", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// record persists the analysis and its document row.
func (a *assistant) record(ctx context.Context, r *Analysis, format string, metadata map[string]string) (int64, error) {
	var metadataJSON string
	if len(metadata) > 0 {
		data, _ := json.Marshal(metadata)
		metadataJSON = string(data)
	}
	docID, err := a.store.UpsertDocument(ctx, store.Document{
		Filename:    r.Filename,
		Format:      format,
		ContentHash: r.ContentHash,
		Pages:       r.Pages,
		Metadata:    metadataJSON,
	})
	if err != nil {
		return 0, fmt.Errorf("upserting document: %w", err)
	}
	return a.store.InsertAnalysis(ctx, store.Analysis{
		DocumentID:       docID,
		Provider:         r.Provider,
		Model:            r.Model,
		Markdown:         r.Markdown,
		RawResponse:      r.RawResponse,
		Parsed:           r.Parsed,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
	})
}

func (a *assistant) fromStored(s *store.Analysis) *Analysis {
	at, ok := parseStoredTime(s.CreatedAt)
	if !ok {
		at = a.now()
	}
	return &Analysis{
		ID:               s.ID,
		Filename:         s.Filename,
		ContentHash:      s.ContentHash,
		Markdown:         s.Markdown,
		RawResponse:      s.RawResponse,
		Parsed:           s.Parsed,
		Reused:           true,
		Provider:         s.Provider,
		Model:            s.Model,
		Timestamp:        at,
		PromptTokens:     s.PromptTokens,
		CompletionTokens: s.CompletionTokens,
	}
}

func (a *assistant) Export(ctx context.Context, markdown, format string) (*Export, error) {
	e, err := a.exporters.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	data, err := e.Export(ctx, markdown)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConversionFailed, format, err)
	}
	return &Export{Data: data, ContentType: e.ContentType(), Extension: e.Extension()}, nil
}

func (a *assistant) Formats() []string {
	return a.exporters.Formats()
}

func (a *assistant) History(ctx context.Context, limit int) ([]store.Analysis, error) {
	if a.store == nil {
		return nil, ErrHistoryDisabled
	}
	return a.store.ListAnalyses(ctx, limit)
}

func (a *assistant) Get(ctx context.Context, id int64) (*store.Analysis, error) {
	if a.store == nil {
		return nil, ErrHistoryDisabled
	}
	r, err := a.store.GetAnalysis(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrAnalysisNotFound, id)
	}
	return r, err
}

func (a *assistant) Delete(ctx context.Context, id int64) error {
	if a.store == nil {
		return ErrHistoryDisabled
	}
	err := a.store.DeleteAnalysis(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrAnalysisNotFound, id)
	}
	return err
}

func (a *assistant) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if a.store == nil {
		return 0, ErrHistoryDisabled
	}
	return a.store.PruneBefore(ctx, cutoff)
}

func (a *assistant) Stats(ctx context.Context) (*store.DBStats, error) {
	if a.store == nil {
		return nil, ErrHistoryDisabled
	}
	return a.store.Stats(ctx)
}

func (a *assistant) Provider() string { return a.cfg.LLM.Provider }

func (a *assistant) Model() string {
	if a.cfg.LLM.Model == "" && a.cfg.LLM.Provider == "openai" {
		return llm.DefaultOpenAIModel
	}
	return a.cfg.LLM.Model
}

func (a *assistant) Configured() bool { return a.chatLLM != nil }

func (a *assistant) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// parseStoredTime reads a created_at value. The sqlite driver returns
// DATETIME columns as RFC 3339 when scanned into strings.
func parseStoredTime(v string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, report.TimestampLayout} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// truncateInput cuts text to at most limit bytes, at the last space before
// the limit when there is one. A limit of zero disables truncation.
func truncateInput(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := strings.LastIndex(text[:limit], " ")
	if cut <= 0 {
		cut = limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
	}
	return text[:cut]
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
