package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"OreChat/internal/backend"
	"OreChat/internal/journal"
	"OreChat/internal/prompt"
	"OreChat/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// upstreamErrorMessage is all a client learns about a provider failure
const upstreamErrorMessage = "upstream completion failed"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRecent(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, backend.ErrorResponse{Error: "journal disabled"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read journal", "error", err)
		c.JSON(http.StatusInternalServerError, backend.ErrorResponse{Error: "failed to read journal"})
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

// buildRequest trims the client conversation to the history window,
// validates it and attaches the server-side persona profile
func (s *Server) buildRequest(v interface{}, persona string, msgs *[]Message) (*prompt.Request, error) {
	if n := len(*msgs); n > MaxHistoryMessages {
		*msgs = recentMessages(*msgs, MaxHistoryMessages)
		s.logger.Debug("trimmed conversation history", "received", n, "kept", MaxHistoryMessages)
	}
	if err := validate.Struct(v); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	p, err := prompt.ParsePersona(persona, s.opts.DefaultPersona)
	if err != nil {
		return nil, err
	}
	return prompt.FromConversation(toConversation(*msgs), p)
}

func (s *Server) handleChatStream(c *gin.Context) {
	var body ChatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: "invalid JSON body"})
		return
	}
	req, err := s.buildRequest(&body, body.Persona, &body.Messages)
	if err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	start := time.Now()
	stream, err := s.upstream.Stream(ctx, req)
	if err != nil {
		s.logger.Error("failed to open upstream stream", "persona", req.Persona, "upstream_status", provider.StatusCode(err), "error", err)
		s.metrics.observeUpstream(string(journal.ModeStream), start, err)
		s.record(ctx, req, journal.ModeStream, start, err)
		c.JSON(http.StatusBadGateway, backend.ErrorResponse{Error: upstreamErrorMessage})
		return
	}
	defer stream.Close()

	s.metrics.activeStreams.Inc()
	defer s.metrics.activeStreams.Dec()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header(backend.DataStreamHeader, backend.DataStreamVersion)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	upstreamErr, writeErr := s.forward(stream, func(text string) error {
		if err := backend.WriteText(c.Writer, text); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	s.metrics.observeUpstream(string(journal.ModeStream), start, upstreamErr)
	s.record(ctx, req, journal.ModeStream, start, upstreamErr)

	switch {
	case writeErr != nil:
		s.logger.Warn("client went away during stream", "error", writeErr)
		return
	case upstreamErr != nil:
		s.logger.Error("upstream stream failed", "persona", req.Persona, "error", upstreamErr)
		_ = backend.WriteError(c.Writer, upstreamErrorMessage)
	default:
		reason, usage := finishInfo(stream)
		_ = backend.WriteFinish(c.Writer, reason, usage)
	}
	c.Writer.Flush()
}

func (s *Server) handleCompletions(c *gin.Context) {
	var body CompletionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if body.Stream {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: "streaming is served by /api/chat"})
		return
	}
	req, err := s.buildRequest(&body, body.Persona, &body.Messages)
	if err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	start := time.Now()
	res, err := s.upstream.Complete(ctx, req)
	s.metrics.observeUpstream(string(journal.ModeBatch), start, err)
	s.record(ctx, req, journal.ModeBatch, start, err)
	if err != nil {
		s.logger.Error("upstream completion failed", "persona", req.Persona, "upstream_status", provider.StatusCode(err), "error", err)
		c.JSON(http.StatusBadGateway, backend.ErrorResponse{Error: upstreamErrorMessage})
		return
	}

	usage := res.Usage
	c.JSON(http.StatusOK, backend.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   s.opts.Model,
		Choices: []backend.ChatCompletionChoice{{
			Index:        0,
			Message:      backend.ChatMessage{Role: "assistant", Content: res.Text},
			FinishReason: res.FinishReason,
		}},
		Usage: &usage,
	})
}

func (s *Server) handleChatWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	connID := uuid.NewString()
	s.logger.Info("websocket client connected", "conn_id", connID)

	for {
		var body ChatRequest
		if err := ws.ReadJSON(&body); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("websocket client disconnected", "conn_id", connID, "error", err)
			}
			return
		}
		if err := s.serveFrame(c.Request.Context(), ws, &body); err != nil {
			s.logger.Warn("failed to write websocket frame", "conn_id", connID, "error", err)
			return
		}
	}
}

// serveFrame answers one websocket request; the returned error is a write
// failure that ends the connection
func (s *Server) serveFrame(ctx context.Context, ws *websocket.Conn, body *ChatRequest) error {
	req, err := s.buildRequest(body, body.Persona, &body.Messages)
	if err != nil {
		return ws.WriteJSON(Frame{Type: FrameError, Error: err.Error()})
	}

	start := time.Now()
	stream, err := s.upstream.Stream(ctx, req)
	if err != nil {
		s.logger.Error("failed to open upstream stream", "persona", req.Persona, "upstream_status", provider.StatusCode(err), "error", err)
		s.metrics.observeUpstream(string(journal.ModeWebsocket), start, err)
		s.record(ctx, req, journal.ModeWebsocket, start, err)
		return ws.WriteJSON(Frame{Type: FrameError, Error: upstreamErrorMessage})
	}
	defer stream.Close()

	s.metrics.activeStreams.Inc()
	defer s.metrics.activeStreams.Dec()

	upstreamErr, writeErr := s.forward(stream, func(text string) error {
		return ws.WriteJSON(Frame{Type: FrameText, Text: text})
	})
	s.metrics.observeUpstream(string(journal.ModeWebsocket), start, upstreamErr)
	s.record(ctx, req, journal.ModeWebsocket, start, upstreamErr)

	if writeErr != nil {
		return writeErr
	}
	if upstreamErr != nil {
		s.logger.Error("upstream stream failed", "persona", req.Persona, "error", upstreamErr)
		return ws.WriteJSON(Frame{Type: FrameError, Error: upstreamErrorMessage})
	}
	reason, usage := finishInfo(stream)
	return ws.WriteJSON(Frame{Type: FrameFinish, FinishReason: reason, Usage: usage})
}

// forward copies fragments to emit in arrival order. It reports the upstream
// failure and the client write failure separately.
func (s *Server) forward(stream backend.Stream, emit func(string) error) (upstreamErr, writeErr error) {
	for {
		text, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return err, nil
		}
		s.metrics.fragments.Inc()
		if err := emit(text); err != nil {
			return nil, err
		}
	}
}

// finishInfo reads the finish reason and usage from streams that report them
func finishInfo(stream backend.Stream) (string, *backend.Usage) {
	reason := "stop"
	if f, ok := stream.(interface{ FinishReason() string }); ok {
		reason = f.FinishReason()
	}
	var usage *backend.Usage
	if u, ok := stream.(interface{ Usage() *backend.Usage }); ok {
		usage = u.Usage()
	}
	return reason, usage
}

func (s *Server) record(ctx context.Context, req *prompt.Request, mode journal.Mode, start time.Time, err error) {
	if s.journal == nil {
		return
	}
	entry := journal.Entry{
		StartedAt:   start,
		Persona:     string(req.Persona),
		Mode:        mode,
		Fingerprint: journal.Fingerprint(req.Conversation()),
		Turns:       len(req.History) + 1,
		Status:      journal.StatusOK,
		Duration:    time.Since(start),
	}
	if err != nil {
		entry.Status = journal.StatusFailed
		entry.Error = upstreamErrorMessage
	}
	if err := s.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("failed to record completion", "error", err)
	}
}
