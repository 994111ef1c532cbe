package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/praevisio/vigilance/internal/config"
	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/internal/vigilance"
	"github.com/praevisio/vigilance/pkg/fetch"
)

const (
	TokenCookie = "praevisio_sse_token"

	HeaderMock       = "X-Praevisio-Mock"
	HeaderArchiveKey = "X-Report-Archive-Key"
)

type TokenService interface {
	Generate(ctx context.Context, ttl time.Duration, scope string) (entity.SSEToken, error)
	Check(ctx context.Context, token string) error
}

type Hub interface {
	Subscribe(ctx context.Context, sink vigilance.Sink) (vigilance.SubscriptionID, error)
	Unsubscribe(ctx context.Context, id vigilance.SubscriptionID) error
	State(ctx context.Context) (entity.VigilanceState, error)
}

type Emitter interface {
	Emit(ctx context.Context, eventType, message string) (entity.VigilanceEvent, error)
}

type Reporter interface {
	Regenerate(ctx context.Context) (vigilance.Report, error)
}

type SnapshotSource interface {
	Snapshot(ctx context.Context) entity.Snapshot
}

// Services are the domain objects served over HTTP.
type Services struct {
	Tokens    TokenService
	Hub       Hub
	Emitter   Emitter
	Reporter  Reporter
	Seismic   fetch.Fetcher[[]entity.SeismicEvent]
	Snapshots SnapshotSource
}

func NewRouter(conf config.Server, vigilanceConf config.Vigilance, services Services, clock clockwork.Clock, logger logr.Logger) *gin.Engine {
	h := handlers{
		services:   services,
		clock:      clock,
		logger:     logger,
		production: conf.Production,
		buffer:     vigilanceConf.SubscriberBuffer,
		keepAlive:  vigilanceConf.KeepAlive,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger, clock))

	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		api.GET("/seismic/activity", h.seismicActivity)
		api.GET("/snapshot", h.snapshot)

		bearer := requireBearer(string(conf.BearerToken))

		vigil := api.Group("/eternal-vigilance")
		{
			vigil.POST("/token", bearer, h.issueToken)
			vigil.GET("/stream", h.stream)
			vigil.POST("/emit", bearer, h.emit)
			vigil.POST("/report", h.report)
			vigil.GET("/status", h.status)
		}
	}

	return router
}

// NewServer has no write timeout: event streams stay open until the client leaves.
func NewServer(conf config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%v", conf.Port),
		Handler:           handler,
		ReadHeaderTimeout: conf.ReadTimeout,
		ReadTimeout:       conf.ReadTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}
