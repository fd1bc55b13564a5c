// Package api exposes the ordering core over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/cartpilot/builder"
	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/instamart"
	"github.com/hupe1980/cartpilot/logging"
	"github.com/hupe1980/cartpilot/order"
	"github.com/hupe1980/cartpilot/session"
)

var (
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
)

// Authenticator covers the remote login operations the API needs.
type Authenticator interface {
	SendOTP(ctx context.Context, phone string) (*instamart.OTPResult, error)
	VerifyOTP(ctx context.Context, phone, otp string) (*instamart.AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*instamart.AuthResult, error)
	GetAddresses(ctx context.Context, accessToken string) ([]core.DeliveryAddress, error)
}

var _ Authenticator = (*instamart.Auth)(nil)

// BuilderFactory creates a cart builder bound to one remote cart session.
type BuilderFactory func(api instamart.API) builder.CartBuilder

// CartAPIFactory creates a remote cart client from session credentials.
type CartAPIFactory func(accessToken, addressID string) instamart.API

// Options configures a Server instance.
type Options struct {
	// Logger receives structured request events.
	Logger logging.Logger
}

// Server holds the HTTP handler dependencies.
type Server struct {
	orders     *order.Service
	sessions   session.Store
	auth       Authenticator
	newBuilder BuilderFactory
	newCartAPI CartAPIFactory
	logger     logging.Logger

	mu        sync.RWMutex
	addresses map[string][]core.DeliveryAddress
}

// NewServer wires the handler dependencies together.
func NewServer(orders *order.Service, sessions session.Store, auth Authenticator, newBuilder BuilderFactory, newCartAPI CartAPIFactory, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Server{
		orders:     orders,
		sessions:   sessions,
		auth:       auth,
		newBuilder: newBuilder,
		newCartAPI: newCartAPI,
		logger:     opts.Logger,
		addresses:  make(map[string][]core.DeliveryAddress),
	}
}

// Routes registers all HTTP routes on r.
func (s *Server) Routes(r *gin.Engine) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	swiggy := r.Group("/api/swiggy")
	{
		swiggy.POST("/auth/send-otp", s.sendOTP)
		swiggy.POST("/auth/verify-otp", s.verifyOTP)
		swiggy.GET("/addresses", s.listAddresses)
	}

	orders := r.Group("/api/orders")
	{
		orders.POST("", s.createOrder)
		orders.GET("", s.listOrders)
		orders.GET("/:id", s.getOrder)
		orders.POST("/:id/process", s.processOrder)
		orders.POST("/:id/checkout", s.checkoutOrder)
		orders.POST("/:id/cancel", s.cancelOrder)
	}
}

// userID resolves the calling user. Authentication proper lives outside
// this core; the identity arrives as a header set by the auth middleware.
func userID(c *gin.Context) string {
	if id := c.GetHeader("X-User-Id"); id != "" {
		return id
	}
	return "demo-user"
}

// fail renders err with the status and reason code its type implies.
func (s *Server) fail(c *gin.Context, err error) {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": vErr.Message, "reason": vErr.Reason})
		return
	}

	var sErr *core.SessionError
	if errors.As(err, &sErr) {
		c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": sErr.Message, "reason": sErr.Reason()})
		return
	}

	var tErr *core.TerminalRecordError
	if errors.As(err, &tErr) {
		c.JSON(http.StatusConflict, gin.H{"code": 409, "msg": tErr.Error()})
		return
	}

	if errors.Is(err, order.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "order not found", "reason": core.ReasonOrderNotFound})
		return
	}

	s.logger.Error("api.request_failed", "path", c.FullPath(), "error", err.Error())
	c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
}
