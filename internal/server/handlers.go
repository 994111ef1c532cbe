package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/praevisio/vigilance/internal/source"
	"github.com/praevisio/vigilance/internal/vigilance"
	"github.com/praevisio/vigilance/pkg/fetch"
)

const (
	errInvalidBody      = "invalid_body"
	errStoreUnavailable = "token_store_unavailable"
	errHubUnavailable   = "hub_unavailable"
	errReportFailed     = "report_failed"
)

var keepAliveFrame = []byte(": ping\n\n")

type handlers struct {
	services Services
	clock    clockwork.Clock
	logger   logr.Logger

	production bool
	buffer     int
	keepAlive  time.Duration
}

type tokenRequest struct {
	TTLSeconds int    `json:"ttlSeconds"`
	Scope      string `json:"scope"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type emitRequest struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (h handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h handlers) issueToken(c *gin.Context) {
	var req tokenRequest

	err := c.ShouldBindJSON(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		abort(c, http.StatusBadRequest, errInvalidBody)

		return
	}

	token, err := h.services.Tokens.Generate(c.Request.Context(), time.Duration(req.TTLSeconds)*time.Second, req.Scope)
	if err != nil {
		_ = c.Error(err)
		abort(c, http.StatusServiceUnavailable, errStoreUnavailable)

		return
	}

	maxAge := int(token.ExpiresAt.Sub(h.clock.Now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     TokenCookie,
		Value:    token.Token,
		Path:     "/",
		Expires:  token.ExpiresAt,
		MaxAge:   maxAge,
		Secure:   h.production,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusOK, tokenResponse{Token: token.Token, ExpiresAt: token.ExpiresAt})
}

func (h handlers) stream(c *gin.Context) {
	ctx := c.Request.Context()

	token := c.Query("token")
	if token == "" {
		token, _ = c.Cookie(TokenCookie)
	}

	err := h.services.Tokens.Check(ctx, token)
	switch {
	case errors.Is(err, vigilance.ErrMissingToken), errors.Is(err, vigilance.ErrInvalidToken):
		abort(c, http.StatusUnauthorized, err.Error())

		return
	case err != nil:
		_ = c.Error(err)
		abort(c, http.StatusServiceUnavailable, errStoreUnavailable)

		return
	}

	sink := vigilance.NewChannelSink(h.buffer)

	id, err := h.services.Hub.Subscribe(ctx, sink)
	if err != nil {
		_ = c.Error(err)
		abort(c, http.StatusServiceUnavailable, errHubUnavailable)

		return
	}

	defer func() {
		// The request context is already cancelled when the client left
		err := h.services.Hub.Unsubscribe(context.WithoutCancel(ctx), id)
		if err != nil && !errors.Is(err, vigilance.ErrHubClosed) {
			h.logger.Error(err, "Failed to unsubscribe", "subscription", id)
		}
	}()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	var keepAlive <-chan time.Time

	if h.keepAlive > 0 {
		ticker := h.clock.NewTicker(h.keepAlive)
		defer ticker.Stop()

		keepAlive = ticker.Chan()
	}

	h.logger.V(1).Info("Subscriber connected", "subscription", id)

	for {
		var payload []byte

		select {
		case <-ctx.Done():
			h.logger.V(1).Info("Subscriber disconnected", "subscription", id)

			return
		case <-sink.Done():
			h.logger.V(1).Info("Subscription closed by hub", "subscription", id)

			return
		case frame := <-sink.Frames():
			payload = frame.Bytes()
		case <-keepAlive:
			payload = keepAliveFrame
		}

		_, err := c.Writer.Write(payload)
		if err != nil {
			return
		}

		c.Writer.Flush()
	}
}

func (h handlers) emit(c *gin.Context) {
	var req emitRequest

	err := c.ShouldBindJSON(&req)
	if err != nil {
		abort(c, http.StatusBadRequest, vigilance.ErrMissingMessage.Error())

		return
	}

	event, err := h.services.Emitter.Emit(c.Request.Context(), req.Type, req.Message)
	switch {
	case errors.Is(err, vigilance.ErrMissingMessage):
		abort(c, http.StatusBadRequest, err.Error())

		return
	case err != nil:
		_ = c.Error(err)
		abort(c, http.StatusServiceUnavailable, errHubUnavailable)

		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "event": event})
}

func (h handlers) report(c *gin.Context) {
	report, err := h.services.Reporter.Regenerate(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, errReportFailed)

		return
	}

	if report.ArchiveKey != "" {
		c.Header(HeaderArchiveKey, report.ArchiveKey)
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(report.Text))
}

func (h handlers) status(c *gin.Context) {
	state, err := h.services.Hub.State(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		abort(c, http.StatusServiceUnavailable, errHubUnavailable)

		return
	}

	c.JSON(http.StatusOK, state)
}

func (h handlers) seismicActivity(c *gin.Context) {
	res := fetch.CallWithFallback(c.Request.Context(), h.services.Seismic, source.SeismicFallback)
	if !res.OK {
		h.logger.V(1).Info("Serving seismic fallback", "reason", res.Error)
	}

	c.Header(HeaderMock, strconv.FormatBool(!res.OK))
	c.JSON(http.StatusOK, res.Value)
}

func (h handlers) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Snapshots.Snapshot(c.Request.Context()))
}
