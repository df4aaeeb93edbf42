package server

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Stream event types.
const (
	EventStage1Start    = "stage1_start"
	EventStage1Complete = "stage1_complete"
	EventStage2Start    = "stage2_start"
	EventStage2Complete = "stage2_complete"
	EventStage3Start    = "stage3_start"
	EventStage3Complete = "stage3_complete"
	EventTitleComplete  = "title_complete"
	EventComplete       = "complete"
	EventError          = "error"
)

// eventStream writes server-sent events as "data: <json>" frames.
type eventStream struct {
	c      *gin.Context
	logger *zap.Logger
}

func newEventStream(c *gin.Context, log *zap.Logger) *eventStream {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	return &eventStream{c: c, logger: log}
}

func (s *eventStream) send(event gin.H) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal event", zap.Any("type", event["type"]), zap.Error(err))
		return
	}
	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", data); err != nil {
		s.logger.Debug("client went away", zap.Error(err))
		return
	}
	s.c.Writer.Flush()
}

func (s *eventStream) error(message string) {
	s.send(gin.H{"type": EventError, "message": message})
}
