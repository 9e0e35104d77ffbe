// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"spotledger/internal/http/handlers"
	"spotledger/internal/http/middleware"
	"spotledger/internal/infra"
	"spotledger/internal/modules/account"
)

type RouterDeps struct {
	Verifier       infra.TokenVerifier
	Accounts       middleware.AccountEnsurer
	Spaces         handlers.SpaceService
	Bookings       handlers.BookingService
	CommissionRate float64
	Currency       string
	Log            *slog.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(d.Log), middleware.Logging(d.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(d.Verifier), middleware.EnsureAccount(d.Accounts))

	spaceHandler := handlers.NewSpaceHandler(d.Spaces, d.CommissionRate)
	api.GET("/spaces/search", middleware.RequireRole(account.RoleRenter), spaceHandler.Search)
	api.GET("/spaces/:id", spaceHandler.Get)

	bookingHandler := handlers.NewBookingHandler(d.Bookings)
	renter := api.Group("/bookings", middleware.RequireRole(account.RoleRenter))
	renter.POST("", bookingHandler.Create)
	renter.GET("", bookingHandler.List)
	renter.POST("/:id/cancel", bookingHandler.Cancel)

	ownerHandler := handlers.NewOwnerHandler(d.Spaces, d.Bookings, d.CommissionRate, d.Currency)
	owner := api.Group("/owner", middleware.RequireRole(account.RoleOwner))
	owner.GET("/spaces", ownerHandler.ListSpaces)
	owner.POST("/spaces", ownerHandler.CreateSpace)
	owner.GET("/stats", ownerHandler.Stats)
	owner.GET("/dashboard", ownerHandler.Dashboard)

	return r
}
