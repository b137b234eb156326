package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/pkg/config"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
	"github.com/noah-isme/docflow-api/pkg/response"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Handler upgrades authenticated requests into hub clients.
type Handler struct {
	hub      *Hub
	tokens   tokenValidator
	upgrader websocket.Upgrader
	cfg      config.RealtimeConfig
	logger   *zap.Logger
}

// NewHandler constructs the websocket endpoint. checkOrigin may be nil to
// accept same-origin requests only.
func NewHandler(hub *Hub, tokens tokenValidator, cfg config.RealtimeConfig, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Handler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Serve godoc
// @Summary Open realtime channel
// @Description Upgrades to a websocket that receives file, user, notification and reminder events
// @Tags Realtime
// @Param token query string false "Access token when no Authorization header is sent"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} response.Envelope
// @Router /ws [get]
func (h *Handler) Serve(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing access token"))
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(claims, conn, h.cfg.SendBuffer)
	h.hub.Register(client)

	go client.writePump(h.cfg.PingInterval, h.cfg.WriteTimeout, h.logger)
	go client.readPump(h.hub, h.cfg.PingInterval*2)
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}
