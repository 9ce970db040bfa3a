package internal

import (
	"context"
	"sync"
)

// FakeBackend is an in-memory Backend for tests. Set the Err fields to make
// the matching call fail; ChatFunc scripts chat replies.
type FakeBackend struct {
	mu sync.Mutex

	Stored       *Quotation
	Conversation []ConversationEntry

	ChatFunc func(message string) (*ChatResponse, error)

	ChatErr             error
	GetQuotationErr     error
	SyncQuotationErr    error
	ResetErr            error
	GetConversationErr  error
	SyncConversationErr error

	ChatCalls             []string
	QuotationSyncs        []Quotation
	ConversationSyncs     [][]ConversationEntry
	ResetCalls            int
	GetQuotationCalls     int
	GetConversationCalls  int
	chatStarted, chatGate chan struct{}
}

// NewFakeBackend creates a fake whose stored quotation is q
func NewFakeBackend(q *Quotation) *FakeBackend {
	return &FakeBackend{Stored: q}
}

// BlockChat makes SendChatMessage wait until the returned release func is
// called. started is closed once a chat call is waiting.
func (f *FakeBackend) BlockChat() (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatStarted = make(chan struct{})
	f.chatGate = make(chan struct{})
	gate := f.chatGate
	var once sync.Once
	return f.chatStarted, func() { once.Do(func() { close(gate) }) }
}

func (f *FakeBackend) SendChatMessage(ctx context.Context, message string) (*ChatResponse, error) {
	f.mu.Lock()
	f.ChatCalls = append(f.ChatCalls, message)
	started, gate := f.chatStarted, f.chatGate
	f.chatStarted, f.chatGate = nil, nil
	fn, chatErr := f.ChatFunc, f.ChatErr
	f.mu.Unlock()

	if gate != nil {
		close(started)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if chatErr != nil {
		return nil, chatErr
	}
	if fn != nil {
		return fn(message)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var q *Quotation
	if f.Stored != nil {
		clone := f.Stored.Clone()
		q = &clone
	}
	return &ChatResponse{Response: "Noted: " + message, Quotation: q}, nil
}

func (f *FakeBackend) GetQuotation(ctx context.Context) (*Quotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetQuotationCalls++
	if f.GetQuotationErr != nil {
		return nil, f.GetQuotationErr
	}
	if f.Stored == nil {
		return nil, nil
	}
	clone := f.Stored.Clone()
	return &clone, nil
}

func (f *FakeBackend) SyncQuotation(ctx context.Context, q Quotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QuotationSyncs = append(f.QuotationSyncs, q.Clone())
	if f.SyncQuotationErr != nil {
		return f.SyncQuotationErr
	}
	clone := q.Clone()
	f.Stored = &clone
	return nil
}

func (f *FakeBackend) ResetQuotation(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResetCalls++
	if f.ResetErr != nil {
		return f.ResetErr
	}
	f.Stored = nil
	f.Conversation = nil
	return nil
}

func (f *FakeBackend) GetConversationHistory(ctx context.Context) ([]ConversationEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetConversationCalls++
	if f.GetConversationErr != nil {
		return nil, f.GetConversationErr
	}
	return append([]ConversationEntry(nil), f.Conversation...), nil
}

func (f *FakeBackend) SyncConversationHistory(ctx context.Context, entries []ConversationEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConversationSyncs = append(f.ConversationSyncs, append([]ConversationEntry(nil), entries...))
	if f.SyncConversationErr != nil {
		return f.SyncConversationErr
	}
	f.Conversation = append([]ConversationEntry(nil), entries...)
	return nil
}

// QuotationSyncCount returns how many quotation syncs were received
func (f *FakeBackend) QuotationSyncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.QuotationSyncs)
}

// LastQuotationSync returns the most recent synced quotation
func (f *FakeBackend) LastQuotationSync() (Quotation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.QuotationSyncs) == 0 {
		return Quotation{}, false
	}
	return f.QuotationSyncs[len(f.QuotationSyncs)-1].Clone(), true
}

// ConversationSyncCount returns how many conversation syncs were received
func (f *FakeBackend) ConversationSyncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ConversationSyncs)
}

// LastConversationSync returns the most recent synced conversation
func (f *FakeBackend) LastConversationSync() []ConversationEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ConversationSyncs) == 0 {
		return nil
	}
	return append([]ConversationEntry(nil), f.ConversationSyncs[len(f.ConversationSyncs)-1]...)
}

// Compile-time interface checks
var (
	_ Backend = (*FakeBackend)(nil)
	_ Backend = (*HTTPClient)(nil)
)

// SampleQuotation returns a small priced quotation
func SampleQuotation() Quotation {
	return RecalculateTotals(Quotation{
		Services: []Service{
			{ServiceName: "Web Development", Quantity: 1, UnitPrice: 50000, KeyFeatures: GenerateKeyFeatures("Web Development")},
			{ServiceName: "SEO Optimization", Quantity: 2, UnitPrice: 10000, KeyFeatures: GenerateKeyFeatures("SEO Optimization")},
		},
		GSTPercentage: 18,
	})
}
