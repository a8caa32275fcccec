// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/apporbit/apporbit-backend/internal/auth"
	"github.com/apporbit/apporbit-backend/internal/config"
	"github.com/apporbit/apporbit-backend/internal/handlers"
	"github.com/apporbit/apporbit-backend/internal/middleware"
	"github.com/apporbit/apporbit-backend/internal/services"
	"github.com/apporbit/apporbit-backend/internal/store"
)

const version = "1.0.0"

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Store    store.Store
	Verifier auth.Verifier
	Notifier services.Notifier
	Intents  services.IntentCreator
	Storage  *services.StorageService
	// RateLimiter is optional; nil disables per-IP limiting.
	RateLimiter *middleware.RateLimiter
}

// NewRateLimiter builds the per-IP limiter described by cfg.
func NewRateLimiter(cfg config.RateLimitConfig) *middleware.RateLimiter {
	return middleware.NewRateLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
}

func Initialize(deps Dependencies, cfg *config.Config) *gin.Engine {
	st := deps.Store

	// Initialize services
	userService := services.NewUserService(st.Users())
	productService := services.NewProductService(st.Products(), deps.Notifier)
	reportService := services.NewReportService(st.Reports(), st.Products())
	reviewService := services.NewReviewService(st.Reviews(), st.Products())
	couponService := services.NewCouponService(st.Coupons())
	paymentService := services.NewPaymentService(deps.Intents, couponService, cfg.Payment)
	adminService := services.NewAdminService(st)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	productHandler := handlers.NewProductHandler(productService, deps.Storage)
	reportHandler := handlers.NewReportHandler(reportService, productService)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	couponHandler := handlers.NewCouponHandler(couponService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	adminHandler := handlers.NewAdminHandler(adminService)

	engine := auth.NewEngine(auth.NewStoreRoleLookup(st.Users()))
	authenticate := middleware.Authenticate(deps.Verifier)
	require := func(capability auth.Capability, scopes ...middleware.Scope) gin.HandlerFunc {
		return middleware.Require(engine, capability, scopes...)
	}
	productOwner := middleware.OwnerParam("id", productService.OwnerOf)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "AppOrbit Server is Running")
	})

	if deps.Storage != nil {
		if dir := deps.Storage.LocalDir(); dir != "" {
			r.Static("/uploads", dir)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"version": version,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version,
		})
	})

	// User routes
	user := r.Group("/user")
	{
		user.POST("", userHandler.UpsertUser)
		user.GET("", authenticate, require(auth.CapAdmin), userHandler.ListUsers)
		user.GET("/:email", userHandler.GetUser)
		user.PATCH("/:email", authenticate, require(auth.CapSelfOrAdmin, middleware.SubjectParam("email")), userHandler.Subscribe)
		user.PATCH("/admin/:id", authenticate, require(auth.CapAdmin), userHandler.MakeAdmin)
		user.PATCH("/moderator/:id", authenticate, require(auth.CapAdmin), userHandler.MakeModerator)
		user.PATCH("/role/:id", authenticate, require(auth.CapAdmin), userHandler.SetRole)
		user.GET("/role/:email", authenticate, require(auth.CapSelf, middleware.SubjectParam("email")), userHandler.GetRole)
	}

	// Admin routes
	r.GET("/admin-statistics", authenticate, require(auth.CapAdmin), adminHandler.GetStatistics)
	r.GET("/admin/audit-logs", authenticate, require(auth.CapAdmin), adminHandler.GetAuditLogs)

	// Product routes
	products := r.Group("/products")
	{
		products.GET("", productHandler.GetProducts)
		products.GET("/featured", productHandler.GetFeatured)
		products.GET("/trending", productHandler.GetTrending)
		products.GET("/:id", productHandler.GetProduct)
		products.POST("", authenticate, require(auth.CapAuthenticated), productHandler.CreateProduct)
		products.POST("/upload-images", authenticate, require(auth.CapAuthenticated), productHandler.UploadImages)
		products.PATCH("/vote/:id", authenticate, require(auth.CapAuthenticated), productHandler.Vote)
		products.PATCH("/feature/:id", authenticate, require(auth.CapModerator), productHandler.Feature)
		products.PATCH("/accept/:id", authenticate, require(auth.CapModerator), productHandler.Accept)
		products.PATCH("/reject/:id", authenticate, require(auth.CapModerator), productHandler.Reject)
		products.PATCH("/:id", authenticate, require(auth.CapOwnerOrModerator, productOwner), productHandler.UpdateProduct)
		products.DELETE("/:id", authenticate, require(auth.CapOwnerOrModerator, productOwner), productHandler.DeleteProduct)
	}
	r.POST("/add-product", authenticate, require(auth.CapAuthenticated), productHandler.AddProduct)
	r.GET("/test-products/accepted", productHandler.GetAccepted)

	// Report routes
	r.POST("/report", authenticate, require(auth.CapAuthenticated), reportHandler.CreateReport)
	r.GET("/reports", authenticate, require(auth.CapModerator), reportHandler.ListReports)
	r.DELETE("/reports/:productId", authenticate, require(auth.CapModerator), reportHandler.DeleteReportedProduct)

	// Review routes
	r.POST("/reviews", authenticate, require(auth.CapAuthenticated), reviewHandler.CreateReview)
	r.GET("/reviews/:productId", reviewHandler.ListReviews)

	// Coupon routes
	coupons := r.Group("/coupons")
	{
		coupons.GET("", couponHandler.ListCoupons)
		coupons.GET("/:id", couponHandler.GetCoupon)
		coupons.POST("", authenticate, require(auth.CapAdmin), couponHandler.CreateCoupon)
		coupons.PUT("/:id", authenticate, require(auth.CapAdmin), couponHandler.UpdateCoupon)
		coupons.DELETE("/:id", authenticate, require(auth.CapAdmin), couponHandler.DeleteCoupon)
	}

	// Payment routes
	r.POST("/create-payment-intent", authenticate, require(auth.CapAuthenticated), paymentHandler.CreatePaymentIntent)

	return r
}
