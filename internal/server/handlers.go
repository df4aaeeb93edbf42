package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mapachekurt/llm-council/internal/council"
	"github.com/mapachekurt/llm-council/internal/storage"
	"github.com/mapachekurt/llm-council/internal/webfetch"
)

// SendMessageRequest is the body of the message endpoints.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// FetchURLRequest is the body of /api/fetch-url.
type FetchURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// GET /
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"service":         "LLM Council API",
		"council_members": len(s.cfg.CouncilModels),
	})
}

// GET /api/conversations
func (s *Server) listConversations(c *gin.Context) {
	conversations, err := s.store.List(c.Request.Context())
	if err != nil {
		s.storeError(c, "Failed to list conversations", err)
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// POST /api/conversations
func (s *Server) createConversation(c *gin.Context) {
	conversation, err := s.store.Create(c.Request.Context(), uuid.New().String())
	if err != nil {
		s.storeError(c, "Failed to create conversation", err)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// GET /api/conversations/:id
func (s *Server) getConversation(c *gin.Context) {
	conversation, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, "Failed to get conversation", err)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// POST /api/conversations/:id/message runs the council and returns all
// stages at once. The title of a new conversation is generated alongside.
func (s *Server) sendMessage(c *gin.Context) {
	id := c.Param("id")
	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}
	ctx := c.Request.Context()

	first, ok := s.addUserMessage(c, id, request.Content)
	if !ok {
		return
	}

	var g errgroup.Group
	if first {
		g.Go(func() error {
			s.generateTitle(ctx, id, request.Content)
			return nil
		})
	}
	result, err := s.engine.Deliberate(ctx, s.request(request.Content))
	_ = g.Wait()
	if err != nil {
		s.logger.Error("council process failed", zap.String("conversation_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Council process failed: %v", err)})
		return
	}

	if err := s.store.AddAssistantMessage(ctx, id, result.Stage1, result.Stage2, result.Stage3); err != nil {
		s.storeError(c, "Failed to add assistant message", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/conversations/:id/message/stream runs the council and streams
// progress as server-sent events.
func (s *Server) sendMessageStream(c *gin.Context) {
	id := c.Param("id")
	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}
	ctx := c.Request.Context()

	conversation, err := s.store.Get(ctx, id)
	if err != nil {
		s.storeError(c, "Failed to get conversation", err)
		return
	}
	first := len(conversation.Messages) == 0

	stream := newEventStream(c, s.logger)
	if err := s.store.AddUserMessage(ctx, id, request.Content); err != nil {
		stream.error(fmt.Sprintf("Failed to add user message: %v", err))
		return
	}

	var (
		g     errgroup.Group
		title string
	)
	if first {
		g.Go(func() error {
			title = s.generateTitle(ctx, id, request.Content)
			return nil
		})
	}

	hooks := &council.Hooks{
		OnStage1: func(stage1 []council.Stage1Response) {
			stream.send(gin.H{"type": EventStage1Complete, "data": stage1})
			stream.send(gin.H{"type": EventStage2Start})
		},
		OnStage2: func(stage2 []council.Evaluation, metadata council.Metadata) {
			stream.send(gin.H{"type": EventStage2Complete, "data": stage2, "metadata": metadata})
			stream.send(gin.H{"type": EventStage3Start})
		},
		OnStage3: func(stage3 council.FinalAnswer) {
			stream.send(gin.H{"type": EventStage3Complete, "data": stage3})
		},
	}

	stream.send(gin.H{"type": EventStage1Start})
	result, err := s.engine.DeliberateWithHooks(ctx, s.request(request.Content), hooks)
	_ = g.Wait()
	if err != nil {
		s.logger.Error("council process failed", zap.String("conversation_id", id), zap.Error(err))
		stream.error(fmt.Sprintf("Council process failed: %v", err))
		return
	}

	if title != "" && title != council.DefaultTitle {
		stream.send(gin.H{"type": EventTitleComplete, "data": gin.H{"title": title}})
	}

	if err := s.store.AddAssistantMessage(ctx, id, result.Stage1, result.Stage2, result.Stage3); err != nil {
		stream.error(fmt.Sprintf("Failed to save message: %v", err))
		return
	}
	stream.send(gin.H{"type": EventComplete})
}

// POST /api/fetch-url
func (s *Server) fetchURL(c *gin.Context) {
	var request FetchURLRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	page, err := s.fetcher.Fetch(c.Request.Context(), request.URL)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, webfetch.ErrInvalidURL) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": fmt.Sprintf("Failed to fetch URL content: %v", err)})
		return
	}
	c.JSON(http.StatusOK, page)
}

// addUserMessage stores the user message and reports whether it is the
// first one of the conversation. It writes the error response itself.
func (s *Server) addUserMessage(c *gin.Context, id, content string) (first, ok bool) {
	ctx := c.Request.Context()
	conversation, err := s.store.Get(ctx, id)
	if err != nil {
		s.storeError(c, "Failed to get conversation", err)
		return false, false
	}
	if err := s.store.AddUserMessage(ctx, id, content); err != nil {
		s.storeError(c, "Failed to add user message", err)
		return false, false
	}
	return len(conversation.Messages) == 0, true
}

// generateTitle asks the title model for a title and stores it. The default
// title is stored when generation fails.
func (s *Server) generateTitle(ctx context.Context, id, content string) string {
	title := s.engine.Title(ctx, content, s.cfg.APIKey)
	if err := s.store.UpdateTitle(ctx, id, title); err != nil {
		s.logger.Error("failed to update title", zap.String("conversation_id", id), zap.Error(err))
	}
	return title
}

func (s *Server) storeError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	case errors.Is(err, storage.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", msg, err)})
	default:
		s.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", msg, err)})
	}
}
