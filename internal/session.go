package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// History action labels
const (
	ActionLoadQuotation   = "Load Quotation"
	ActionInstantUpdate   = "Instant Update"
	ActionAIUpdate        = "AI Update"
	ActionRevertInstant   = "Revert Instant Update"
	ActionUpdateQuotation = "Update Quotation"
	ActionSyncQuotation   = "Sync Quotation"
	ActionResetQuotation  = "Reset Quotation"
)

// SessionOptions configures a Session
type SessionOptions struct {
	MaxHistory  int
	SyncDelay   time.Duration
	SyncTimeout time.Duration
}

// ExchangeResult describes one chat round trip
type ExchangeResult struct {
	Reply      ChatMessage
	Optimistic bool  // a local edit was applied before the backend answered
	Reverted   bool  // the local edit was rolled back after a failure
	Err        error // backend failure, already shown to the user as Reply
}

// Session coordinates the quotation history, the conversation and their
// background sync against a Backend.
type Session struct {
	backend Backend

	history          *History[*Quotation]
	quotationSync    *Scheduler[Quotation]
	conversationSync *Scheduler[[]ConversationEntry]

	mu       sync.Mutex
	messages []ChatMessage
	lastErr  error

	exchanging atomic.Bool
}

// NewSession creates a session in the loading phase. Call Load before use.
func NewSession(backend Backend, opts SessionOptions) *Session {
	s := &Session{
		backend: backend,
		history: NewHistory[*Quotation](nil, HistoryOptions{MaxSize: opts.MaxHistory}),
	}
	s.quotationSync = NewScheduler[Quotation](s.pushQuotation, SchedulerOptions{
		Name:    "quotation",
		Delay:   opts.SyncDelay,
		Timeout: opts.SyncTimeout,
	})
	s.conversationSync = NewScheduler[[]ConversationEntry](backend.SyncConversationHistory, SchedulerOptions{
		Name:    "conversation",
		Delay:   opts.SyncDelay,
		Timeout: opts.SyncTimeout,
	})
	return s
}

func (s *Session) pushQuotation(ctx context.Context, q Quotation) error {
	normalized := NormalizeQuotation(&q)
	if !ValidateQuotation(&normalized) {
		return nil
	}
	return s.backend.SyncQuotation(ctx, normalized)
}

// Load fetches the quotation and the conversation concurrently and ends
// the loading phase. A quotation failure leaves the empty quotation in
// place and is returned; the session is usable either way.
func (s *Session) Load(ctx context.Context) error {
	var (
		remote  *Quotation
		entries []ConversationEntry
		qErr    error
		cErr    error
		g       errgroup.Group
	)
	g.Go(func() error {
		remote, qErr = s.backend.GetQuotation(ctx)
		return nil
	})
	g.Go(func() error {
		entries, cErr = s.backend.GetConversationHistory(ctx)
		return nil
	})
	_ = g.Wait()

	loaded := EmptyQuotation()
	if qErr != nil {
		LogWarn("failed to load quotation: %v", qErr)
	} else if remote != nil {
		loaded = NormalizeQuotation(remote)
	}
	s.commit(&loaded, ActionLoadQuotation, false)
	s.history.Clear()

	messages := []ChatMessage{WelcomeMessage()}
	if cErr != nil {
		LogWarn("failed to load conversation history: %v", cErr)
	} else if len(entries) > 0 {
		messages = MessagesFromConversation(entries)
	}

	s.mu.Lock()
	s.messages = messages
	s.lastErr = qErr
	s.mu.Unlock()

	s.quotationSync.MarkReady()
	s.conversationSync.MarkReady()
	LogDebug("session loaded: %d services, %d messages", len(loaded.Services), len(messages))

	if qErr != nil {
		return fmt.Errorf("failed to load quotation: %w", qErr)
	}
	return nil
}

// SendMessage runs one chat round trip. Blank text is ignored and returns
// a nil result. Backend failures are reported through ExchangeResult.Err;
// the returned error is only ErrExchangeInProgress.
func (s *Session) SendMessage(ctx context.Context, text string) (*ExchangeResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if !s.exchanging.CompareAndSwap(false, true) {
		return nil, ErrExchangeInProgress
	}
	defer s.exchanging.Store(false)

	s.appendMessage(NewChatMessage(RoleUser, text))

	before := s.Quotation()
	instant := TryInstantUpdate(text, before)
	result := &ExchangeResult{Optimistic: instant.Updated}
	if instant.Updated {
		committed := s.commit(instant.Quotation, ActionInstantUpdate, false)
		s.quotationSync.Kick(committed)
		LogDebug("instant update applied for %q", text)
	}

	resp, err := s.backend.SendChatMessage(ctx, text)
	if err != nil {
		LogWarn("chat request failed: %v", err)
		result.Err = err
		result.Reply = NewChatMessage(RoleAssistant, "Error: "+userMessage(err))
		s.appendMessage(result.Reply)
		if instant.Updated {
			reverted := s.commit(before, ActionRevertInstant, false)
			s.quotationSync.Kick(reverted)
			result.Reverted = true
		}
		s.setLastErr(err)
		return result, nil
	}

	result.Reply = NewChatMessage(RoleAssistant, resp.Response)
	s.appendMessage(result.Reply)

	switch {
	case instant.Updated && resp.Quotation != nil:
		merged := MergeServerQuotation(*instant.Quotation, *resp.Quotation)
		s.commit(&merged, ActionAIUpdate, true)
	case instant.Updated:
		// nothing from the server, keep the local edit
	default:
		normalized := NormalizeQuotation(resp.Quotation)
		s.commit(&normalized, ActionAIUpdate, true)
	}
	s.setLastErr(nil)
	return result, nil
}

func userMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message()
	}
	return err.Error()
}

// commit normalizes q, records it in history and optionally schedules a
// background sync. It returns the committed value.
func (s *Session) commit(q *Quotation, action string, schedule bool) Quotation {
	normalized := NormalizeQuotation(q)
	ValidateQuotation(&normalized)
	stored := normalized.Clone()
	s.history.Set(&stored, action)
	if schedule {
		s.quotationSync.Schedule(normalized.Clone())
	}
	return normalized
}

func (s *Session) appendMessage(m ChatMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	entries := conversationEntries(s.messages)
	s.mu.Unlock()
	s.conversationSync.Schedule(entries)
}

func conversationEntries(messages []ChatMessage) []ConversationEntry {
	entries := make([]ConversationEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, ConversationEntry{Role: string(m.Role), Content: m.Content})
	}
	return entries
}

func (s *Session) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// UpdateQuotation commits a manual edit. An empty action defaults to
// "Update Quotation".
func (s *Session) UpdateQuotation(q Quotation, action string) {
	if action == "" {
		action = ActionUpdateQuotation
	}
	s.commit(&q, action, true)
}

// SyncQuotation pushes q to the backend immediately and commits it once
// the backend accepted it.
func (s *Session) SyncQuotation(ctx context.Context, q Quotation) error {
	normalized := NormalizeQuotation(&q)
	if !ValidateQuotation(&normalized) {
		return nil
	}
	if err := s.quotationSync.SyncNow(ctx, normalized.Clone()); err != nil {
		s.setLastErr(err)
		return fmt.Errorf("failed to sync quotation: %w", err)
	}
	s.commit(&normalized, ActionSyncQuotation, false)
	return nil
}

// ResetQuotation clears the quotation and its history locally, then on the
// backend. Local state is reset even when the backend call fails.
func (s *Session) ResetQuotation(ctx context.Context) error {
	release := s.quotationSync.Hold()
	defer release()

	empty := EmptyQuotation()
	s.commit(&empty, ActionResetQuotation, false)
	s.history.Clear()

	if err := s.backend.ResetQuotation(ctx); err != nil {
		LogWarn("failed to reset quotation on backend: %v", err)
		s.setLastErr(err)
		return fmt.Errorf("failed to reset quotation: %w", err)
	}
	return nil
}

// ResetConversation replaces the conversation with the welcome message and
// pushes it immediately.
func (s *Session) ResetConversation(ctx context.Context) error {
	s.mu.Lock()
	s.messages = []ChatMessage{WelcomeMessage()}
	entries := conversationEntries(s.messages)
	s.mu.Unlock()

	if err := s.conversationSync.SyncNow(ctx, entries); err != nil {
		LogWarn("failed to reset conversation on backend: %v", err)
		s.setLastErr(err)
		return fmt.Errorf("failed to reset conversation: %w", err)
	}
	return nil
}

// Reset clears the quotation first and the conversation second
func (s *Session) Reset(ctx context.Context) error {
	qErr := s.ResetQuotation(ctx)
	cErr := s.ResetConversation(ctx)
	return errors.Join(qErr, cErr)
}

// Undo steps back one history entry and syncs the result
func (s *Session) Undo() bool {
	if !s.history.Undo() {
		return false
	}
	s.scheduleCurrent()
	return true
}

// Redo steps forward one history entry and syncs the result
func (s *Session) Redo() bool {
	if !s.history.Redo() {
		return false
	}
	s.scheduleCurrent()
	return true
}

func (s *Session) scheduleCurrent() {
	if q := s.history.State(); q != nil {
		s.quotationSync.Schedule(q.Clone())
	}
}

func (s *Session) CanUndo() bool { return s.history.CanUndo() }
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// History returns a copy of the undo log and the cursor into it
func (s *Session) History() ([]HistoryEntry[*Quotation], int) {
	return s.history.Entries(), s.history.Cursor()
}

// Quotation returns a copy of the current quotation, nil before Load
func (s *Session) Quotation() *Quotation {
	q := s.history.State()
	if q == nil {
		return nil
	}
	clone := q.Clone()
	return &clone
}

// Messages returns a copy of the conversation
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.messages...)
}

// LastError returns the most recent user-visible failure, if any
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Busy reports whether a chat exchange is outstanding
func (s *Session) Busy() bool {
	return s.exchanging.Load()
}

// Phase combines both schedulers: loading wins over syncing, syncing over ready
func (s *Session) Phase() Phase {
	q, c := s.quotationSync.Phase(), s.conversationSync.Phase()
	switch {
	case q == PhaseLoading || c == PhaseLoading:
		return PhaseLoading
	case q == PhaseSyncing || c == PhaseSyncing:
		return PhaseSyncing
	default:
		return PhaseReady
	}
}

// Flush sends any debounced changes right away
func (s *Session) Flush(ctx context.Context) error {
	return errors.Join(s.quotationSync.Flush(ctx), s.conversationSync.Flush(ctx))
}

// Close stops background sync and waits for in-flight sends
func (s *Session) Close() {
	s.quotationSync.Close()
	s.conversationSync.Close()
}

// Snapshot captures the session for export
func (s *Session) Snapshot(sessionID string) *Snapshot {
	q := EmptyQuotation()
	if current := s.Quotation(); current != nil {
		q = *current
	}
	return &Snapshot{
		SessionID:  sessionID,
		Quotation:  q,
		Messages:   s.Messages(),
		ExportedAt: time.Now(),
	}
}
