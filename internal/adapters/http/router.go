package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/AhmedLyanov/VizorLite/internal/adapters/signal"
	"github.com/AhmedLyanov/VizorLite/internal/app"
	"github.com/AhmedLyanov/VizorLite/internal/config"
	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

// ClientTokenMiddleware assigns every browser a stable opaque credential.
// The authenticator turns it into a principal downstream.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func authRequired(auth app.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := auth.Verify(c.GetString("client_token"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set("principal", principal)
		c.Next()
	}
}

type Deps struct {
	Auth   app.Authenticator
	Rooms  *app.RoomService
	Signal *signal.Controller
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("VizorSessions", store))
	r.Use(ClientTokenMiddleware())

	api := r.Group("/api")

	// Clients build their RTCPeerConnection config from this.
	api.GET("/ice", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": cfg.STUNServers})
	})

	rooms := api.Group("/rooms")
	rooms.POST("", authRequired(deps.Auth), createRoom(deps.Rooms))
	rooms.GET("", listRooms(deps.Rooms))
	rooms.GET("/:roomId", getRoom(deps.Rooms))

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("token", c.GetString("client_token")).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	return r
}

type createRoomRequest struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	MaxParticipants int    `json:"maxParticipants"`
	IsPublic        *bool  `json:"isPublic"`
}

func createRoom(svc *app.RoomService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "room name is required"})
			return
		}
		principal := c.MustGet("principal").(*domain.Principal)
		room, err := svc.Create(app.CreateRoomParams{
			Name:            domain.RoomName(req.Name),
			Description:     req.Description,
			MaxParticipants: req.MaxParticipants,
			Public:          req.IsPublic,
		}, principal.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"room": room})
	}
}

func listRooms(svc *app.RoomService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": svc.ListPublic()})
	}
}

func getRoom(svc *app.RoomService) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, ok := svc.Lookup(domain.RoomID(c.Param("roomId")))
		if !ok || !room.IsPublic {
			// Private rooms resolve like missing ones.
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"room": room})
	}
}
