package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/TableRelay/internal/adapters/signal"
	"github.com/dkeye/TableRelay/internal/app/orch"
	"github.com/dkeye/TableRelay/internal/config"
	handlers "github.com/dkeye/TableRelay/internal/transport/http"
)

const clientTokenKey = "ct"

// ClientTokenMiddleware keeps a per-browser correlation id in the session
// cookie. It only shows up in logs; it is not an identity.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Debug().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("TableRelaySession", store))
	r.Use(ClientTokenMiddleware())

	ctrl := signal.NewSignalWSController(o, signal.Settings{
		ReadLimit:    cfg.WS.ReadLimit,
		PingPeriod:   cfg.WS.PingPeriod,
		SendBuffer:   cfg.WS.SendBuffer,
		InboundRate:  cfg.WS.InboundRate,
		InboundBurst: cfg.WS.InboundBurst,
	})
	ws := func(c *gin.Context) { ctrl.HandleSignal(ctx, c) }
	rooms := &handlers.RoomHandlers{Rooms: o.Rooms, Evictor: o}

	r.GET("/healthz", handlers.Health)
	r.GET("/ws", ws)

	api := r.Group("/api")
	api.GET("/ws/signal", ws)
	api.GET("/rooms", rooms.List)
	api.GET("/rooms/:id", rooms.Get)
	if cfg.Mode == "debug" {
		api.DELETE("/rooms/:id", rooms.Delete)
	}

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
