package analyst

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/zhouzirui/csvsage/backend/internal/analysis/tabular"
	"github.com/zhouzirui/csvsage/backend/internal/model/chat"
	"github.com/zhouzirui/csvsage/backend/internal/service/ai"
	"github.com/zhouzirui/csvsage/backend/internal/service/session"
	"github.com/zhouzirui/csvsage/backend/pkg/log"
)

var (
	ErrInvalidSessionID = errors.New("session id must be 1-128 letters, digits, '-' or '_'")
	ErrEmptyQuery       = errors.New("query is required")
	ErrAIUnavailable    = errors.New("ai service unavailable")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Config tunes query handling.
type Config struct {
	// HistoryMaxWords is the conversation size that triggers compaction.
	HistoryMaxWords int
}

// Answer is the result of a successful query.
type Answer struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Answer    string `json:"answer"`
}

// Upload is the result of ingesting a dataset.
type Upload struct {
	Session chat.Session
	Summary ai.Summary
}

// Service answers natural-language questions about cached datasets.
type Service struct {
	sessions  *session.Cache
	completer ai.Completer
	assembler *ai.Assembler
	cfg       Config
}

// NewService wires the orchestrator. completer may be nil, in which case
// only ingestion and summaries are served.
func NewService(sessions *session.Cache, completer ai.Completer, assembler *ai.Assembler, cfg Config) *Service {
	if assembler == nil {
		assembler = ai.NewAssembler("", "")
	}
	return &Service{
		sessions:  sessions,
		completer: completer,
		assembler: assembler,
		cfg:       cfg,
	}
}

// AIEnabled reports whether queries can be answered.
func (s *Service) AIEnabled() bool {
	return s.completer != nil
}

// Ingest parses r and caches it under sessionID, generating an identifier
// when sessionID is empty. An existing session with the same identifier is
// replaced, conversation included.
func (s *Service) Ingest(ctx context.Context, sessionID string, r io.Reader) (Upload, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if !ValidSessionID(sessionID) {
		return Upload{}, ErrInvalidSessionID
	}

	ds, err := tabular.Parse(r)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to parse upload: %w", err)
	}

	entry := s.sessions.Put(sessionID, ds)
	log.FromCtx(ctx).Info().
		Str("session_id", sessionID).
		Int("rows", ds.Rows()).
		Int("columns", ds.Width()).
		Msg("dataset cached")

	return Upload{Session: entry.Session, Summary: ai.Summarize(ds)}, nil
}

// Dataset returns the cached dataset for sessionID.
func (s *Service) Dataset(_ context.Context, sessionID string) (*tabular.Dataset, error) {
	entry, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return entry.Dataset, nil
}

// Summary computes the statistical summary of a cached dataset.
func (s *Service) Summary(ctx context.Context, sessionID string) (ai.Summary, error) {
	ds, err := s.Dataset(ctx, sessionID)
	if err != nil {
		return ai.Summary{}, err
	}
	return ai.Summarize(ds), nil
}

// History returns the session's conversation turns.
func (s *Service) History(_ context.Context, sessionID string) ([]chat.Turn, error) {
	entry, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return entry.Memory.Turns(), nil
}

// Ask answers query against the session's dataset. Queries on one session
// run one at a time. The query is recorded as sent, and the user turn is kept
// even when the completion fails.
func (s *Service) Ask(ctx context.Context, sessionID, query string) (Answer, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, ErrEmptyQuery
	}

	entry, err := s.sessions.Get(sessionID)
	if err != nil {
		return Answer{}, err
	}
	if s.completer == nil {
		return Answer{}, ErrAIUnavailable
	}

	entry.Lock()
	defer entry.Unlock()

	// the caller may have gone away while queued behind another query
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}

	logger := log.FromCtx(ctx).With().Str("session_id", sessionID).Logger()

	pc := ai.BuildContext(entry.Dataset, ai.Summarize(entry.Dataset))

	entry.Memory.AppendUser(query)
	if _, err := entry.Memory.MaybeCompact(logger.WithContext(ctx), s.completer, s.cfg.HistoryMaxWords); err != nil {
		return Answer{}, ai.AsCompletionError(err)
	}

	messages, err := s.assembler.Assemble(ctx, pc, entry.Memory.Turns(), query)
	if err != nil {
		return Answer{}, err
	}

	reply, err := s.completer.Complete(ctx, messages)
	if err != nil {
		return Answer{}, ai.AsCompletionError(err)
	}
	entry.Memory.AppendAssistant(reply)

	logger.Info().
		Int("messages", len(messages)).
		Int("turns", entry.Memory.Len()).
		Int("answer_length", len(reply)).
		Msg("query answered")

	return Answer{SessionID: sessionID, Query: query, Answer: reply}, nil
}

// ValidSessionID reports whether id may name a session. Identifiers end up
// in plot filenames, so the alphabet is restricted.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}
