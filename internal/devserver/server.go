// Package devserver is a reference implementation of the quotation backend.
// It keeps per-session state in SQLite, keyed by the sessionid cookie, and
// answers chat messages with a deterministic rule-based assistant.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/synquot/synquot-cli/internal"
)

const (
	// ChatHistoryLimit is how many entries survive a chat exchange
	ChatHistoryLimit = 20
	// SyncHistoryLimit is how many entries survive a conversation sync
	SyncHistoryLimit = 50

	sessionKey    = "sessionID"
	sessionMaxAge = 14 * 24 * 60 * 60
	invalidNote   = " (Note: Some quotation data was invalid and has been corrected.)"
)

// Options configures a Server
type Options struct {
	// Token, when set, is required as a bearer token on every /api request
	Token string
	// AllowOrigins lists browser origins allowed by CORS. Empty disables CORS.
	AllowOrigins []string
	// Assistant defaults to RuleAssistant
	Assistant Assistant
}

// Server serves the quotation API
type Server struct {
	store     *Store
	assistant Assistant
	token     string
	engine    *gin.Engine
}

// New builds the router on top of store
func New(store *Store, opts Options) *Server {
	if opts.Assistant == nil {
		opts.Assistant = RuleAssistant{}
	}
	s := &Server{
		store:     store,
		assistant: opts.Assistant,
		token:     opts.Token,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if len(opts.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })

	api := r.Group("/api")
	api.Use(s.requireToken(), sessionCookie())
	{
		api.POST("/chat/", s.chat)
		api.GET("/quotation/", s.getQuotation)
		api.POST("/sync-quotation/", s.syncQuotation)
		api.POST("/reset/", s.reset)
		api.GET("/conversation-history/", s.getConversation)
		api.POST("/sync-conversation-history/", s.syncConversation)
	}

	s.engine = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		internal.LogDebug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header || token != s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing bearer token"})
			return
		}
		c.Next()
	}
}

// sessionCookie issues a sessionid cookie when the request has none
func sessionCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(internal.SessionCookieName)
		if err != nil || id == "" {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(internal.SessionCookieName, id, sessionMaxAge, "/", "", false, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

func (s *Server) serverError(c *gin.Context, err error) {
	internal.LogError("request %s failed: %v", c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error: " + err.Error()})
}

func (s *Server) chat(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON in request body"})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	var reply string
	rec, err := s.store.Update(c.Request.Context(), c.GetString(sessionKey), func(rec *Record) error {
		current := rec.Quotation
		// A conversation holding at most the greeting starts from scratch.
		if len(rec.Conversation) <= 1 {
			current = internal.EmptyQuotation()
		}

		text, updated, err := s.assistant.Reply(c.Request.Context(), message, current, rec.Conversation)
		if err != nil {
			return err
		}
		updated = internal.NormalizeQuotation(&updated)
		if !internal.ValidateQuotation(&updated) {
			updated = internal.NormalizeQuotation(&current)
			lower := strings.ToLower(text)
			if !strings.Contains(lower, "issue") && !strings.Contains(lower, "error") {
				text += invalidNote
			}
		}

		reply = text
		rec.Quotation = updated
		rec.Conversation = trimConversation(append(rec.Conversation,
			internal.ConversationEntry{Role: string(internal.RoleUser), Content: message},
			internal.ConversationEntry{Role: string(internal.RoleAssistant), Content: text},
		), ChatHistoryLimit)
		return nil
	})
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": reply, "quotation": rec.Quotation})
}

func (s *Server) getQuotation(c *gin.Context) {
	rec, err := s.store.Load(c.Request.Context(), c.GetString(sessionKey))
	if err != nil {
		s.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotation": rec.Quotation})
}

func (s *Server) getConversation(c *gin.Context) {
	rec, err := s.store.Load(c.Request.Context(), c.GetString(sessionKey))
	if err != nil {
		s.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": rec.Conversation})
}

func (s *Server) syncQuotation(c *gin.Context) {
	var req struct {
		Quotation json.RawMessage `json:"quotation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON in request body"})
		return
	}
	if isEmptyJSON(req.Quotation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quotation data is required"})
		return
	}

	var incoming internal.Quotation
	if err := json.Unmarshal(req.Quotation, &incoming); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quotation structure"})
		return
	}
	q := internal.NormalizeQuotation(&incoming)
	if !internal.ValidateQuotation(&q) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quotation structure"})
		return
	}

	_, err := s.store.Update(c.Request.Context(), c.GetString(sessionKey), func(rec *Record) error {
		rec.Quotation = q
		return nil
	})
	if err != nil {
		s.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quotation": q})
}

func (s *Server) reset(c *gin.Context) {
	_, err := s.store.Update(c.Request.Context(), c.GetString(sessionKey), func(rec *Record) error {
		rec.Quotation = internal.EmptyQuotation()
		rec.Conversation = []internal.ConversationEntry{}
		return nil
	})
	if err != nil {
		s.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quotation": internal.EmptyQuotation()})
}

func (s *Server) syncConversation(c *gin.Context) {
	var req struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON in request body"})
		return
	}

	var raw []json.RawMessage
	if len(req.Messages) > 0 && string(req.Messages) != "null" {
		if err := json.Unmarshal(req.Messages, &raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Messages must be an array"})
			return
		}
	}
	entries := decodeEntries(raw)

	rec, err := s.store.Update(c.Request.Context(), c.GetString(sessionKey), func(rec *Record) error {
		// Syncing down to the greeting is how a client resets the session.
		if len(entries) <= 1 {
			rec.Quotation = internal.EmptyQuotation()
		}
		rec.Conversation = trimConversation(entries, SyncHistoryLimit)
		return nil
	})
	if err != nil {
		s.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": rec.Conversation})
}

// decodeEntries keeps the elements that are objects with string role and
// content fields
func decodeEntries(raw []json.RawMessage) []internal.ConversationEntry {
	entries := make([]internal.ConversationEntry, 0, len(raw))
	for _, item := range raw {
		var e struct {
			Role    *string `json:"role"`
			Content *string `json:"content"`
		}
		if err := json.Unmarshal(item, &e); err != nil || e.Role == nil || e.Content == nil {
			continue
		}
		entries = append(entries, internal.ConversationEntry{Role: *e.Role, Content: *e.Content})
	}
	return entries
}

func trimConversation(entries []internal.ConversationEntry, limit int) []internal.ConversationEntry {
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]internal.ConversationEntry{}, entries...)
}

func isEmptyJSON(data json.RawMessage) bool {
	switch strings.TrimSpace(string(data)) {
	case "", "null", "{}", "false", "0", `""`, "[]":
		return true
	}
	return false
}
