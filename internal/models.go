package internal

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is one line item of a quotation.
//
// The price may arrive under any of the legacy aliases unit_price, price or
// unit_rate; use ResolvePrice instead of reading the fields directly.
type Service struct {
	ServiceName string   `json:"service_name" yaml:"service_name"`
	Quantity    float64  `json:"quantity" yaml:"quantity"`
	UnitPrice   float64  `json:"unit_price" yaml:"unit_price"`
	Price       float64  `json:"price,omitempty" yaml:"price,omitempty"`
	UnitRate    float64  `json:"unit_rate,omitempty" yaml:"unit_rate,omitempty"`
	Amount      float64  `json:"amount" yaml:"amount"`
	KeyFeatures []string `json:"key_features,omitempty" yaml:"key_features,omitempty"`
}

// Quotation is the priced document built during a chat session.
type Quotation struct {
	Services      []Service `json:"services" yaml:"services"`
	Subtotal      float64   `json:"subtotal" yaml:"subtotal"`
	GSTPercentage float64   `json:"gst_percentage" yaml:"gst_percentage"`
	GSTAmount     float64   `json:"gst_amount" yaml:"gst_amount"`
	GrandTotal    float64   `json:"grand_total" yaml:"grand_total"`
}

// EmptyQuotation returns the canonical empty quotation.
func EmptyQuotation() Quotation {
	return Quotation{Services: []Service{}}
}

// Clone returns a deep copy of q.
func (q Quotation) Clone() Quotation {
	out := q
	if q.Services != nil {
		out.Services = make([]Service, len(q.Services))
		for i, s := range q.Services {
			out.Services[i] = s.clone()
		}
	}
	return out
}

func (s Service) clone() Service {
	out := s
	if s.KeyFeatures != nil {
		out.KeyFeatures = append([]string(nil), s.KeyFeatures...)
	}
	return out
}

// ResolvePrice returns the first non-zero price alias of s.
func ResolvePrice(s Service) float64 {
	switch {
	case s.UnitPrice != 0:
		return s.UnitPrice
	case s.Price != 0:
		return s.Price
	default:
		return s.UnitRate
	}
}

// UnmarshalJSON decodes a service leniently. Numeric fields accept JSON
// numbers, numeric strings and null; anything else reads as zero.
func (s *Service) UnmarshalJSON(data []byte) error {
	var raw struct {
		ServiceName json.RawMessage `json:"service_name"`
		Quantity    json.RawMessage `json:"quantity"`
		UnitPrice   json.RawMessage `json:"unit_price"`
		Price       json.RawMessage `json:"price"`
		UnitRate    json.RawMessage `json:"unit_rate"`
		Amount      json.RawMessage `json:"amount"`
		KeyFeatures json.RawMessage `json:"key_features"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Service{
		ServiceName: looseString(raw.ServiceName),
		Quantity:    looseFloat(raw.Quantity),
		UnitPrice:   looseFloat(raw.UnitPrice),
		Price:       looseFloat(raw.Price),
		UnitRate:    looseFloat(raw.UnitRate),
		Amount:      looseFloat(raw.Amount),
	}

	var features []string
	if len(raw.KeyFeatures) > 0 && json.Unmarshal(raw.KeyFeatures, &features) == nil {
		s.KeyFeatures = features
	}
	return nil
}

// UnmarshalJSON decodes a quotation leniently: a services value that is not
// an array decodes as an empty list and entries that are not objects are
// dropped.
func (q *Quotation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Services      json.RawMessage `json:"services"`
		Subtotal      json.RawMessage `json:"subtotal"`
		GSTPercentage json.RawMessage `json:"gst_percentage"`
		GSTAmount     json.RawMessage `json:"gst_amount"`
		GrandTotal    json.RawMessage `json:"grand_total"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*q = Quotation{
		Services:      decodeServices(raw.Services),
		Subtotal:      looseFloat(raw.Subtotal),
		GSTPercentage: looseFloat(raw.GSTPercentage),
		GSTAmount:     looseFloat(raw.GSTAmount),
		GrandTotal:    looseFloat(raw.GrandTotal),
	}
	return nil
}

func decodeServices(data json.RawMessage) []Service {
	var items []json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &items) != nil {
		return nil
	}

	services := make([]Service, 0, len(items))
	for _, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var s Service
		if err := json.Unmarshal(trimmed, &s); err != nil {
			continue
		}
		services = append(services, s)
	}
	return services
}

func looseFloat(data json.RawMessage) float64 {
	if len(data) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return finite(f)
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			return finite(f)
		}
	}
	return 0
}

func looseString(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return str
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// MessageRole identifies who authored a chat message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ParseRole maps a backend role string to a MessageRole. Anything that is
// not "user" is treated as the assistant.
func ParseRole(role string) MessageRole {
	if role == string(RoleUser) {
		return RoleUser
	}
	return RoleAssistant
}

// ChatMessage is one entry of the conversation shown to the user
type ChatMessage struct {
	ID        string      `json:"id" yaml:"id"`
	Role      MessageRole `json:"role" yaml:"role"`
	Content   string      `json:"content" yaml:"content"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
}

// NewChatMessage creates a message with a fresh ID
func NewChatMessage(role MessageRole, content string) ChatMessage {
	return ChatMessage{
		ID:        "msg-" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// ConversationEntry is the role/content pair the backend stores
type ConversationEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WelcomeMessageID is the fixed ID of the greeting shown on an empty conversation
const WelcomeMessageID = "welcome-msg"

// WelcomeMessage returns the greeting used when there is no conversation yet
func WelcomeMessage() ChatMessage {
	return ChatMessage{
		ID:        WelcomeMessageID,
		Role:      RoleAssistant,
		Content:   "Hello! I'm SynQuot, your AI Quotation Assistant. I can help you create professional quotations. What service would you like to add to your quotation?",
		Timestamp: time.Now(),
	}
}

// MessagesFromConversation converts backend entries into chat messages
func MessagesFromConversation(entries []ConversationEntry) []ChatMessage {
	messages := make([]ChatMessage, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, NewChatMessage(ParseRole(e.Role), e.Content))
	}
	return messages
}

// Snapshot is a point-in-time copy of a session used for export
type Snapshot struct {
	SessionID  string        `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Quotation  Quotation     `json:"quotation" yaml:"quotation"`
	Messages   []ChatMessage `json:"messages" yaml:"messages"`
	ExportedAt time.Time     `json:"exported_at" yaml:"exported_at"`
}
