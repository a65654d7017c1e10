package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/insightvigil/biblioteca-escolar/config"
	"github.com/insightvigil/biblioteca-escolar/internal/api/handler"
	"github.com/insightvigil/biblioteca-escolar/internal/api/middleware"
	"github.com/insightvigil/biblioteca-escolar/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时写接口不限流
func Setup(cfg *config.Config, h *handler.Handler, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	var limiter middleware.RateLimiter
	if rdb != nil {
		limiter = rdb
	}

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	r.Use(middleware.WriteRateLimit(limiter, cfg.Server.RateLimit, time.Minute, logger))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 借阅单
		loans := v1.Group("/loans")
		{
			loans.POST("", h.Loan.CreateLoan)
			loans.POST("/checkout", h.Loan.Checkout)
			loans.GET("/preview-due", h.Loan.PreviewDueDate)
			loans.GET("/:id", h.Loan.GetLoan)
			loans.POST("/:id/items", h.Loan.AddItem)
			loans.POST("/:id/cancel", h.Loan.CancelLoan)
		}

		// 借阅项
		items := v1.Group("/loan-items")
		{
			items.GET("", h.Loan.ListItems)
			items.POST("/:id/renew", h.Loan.RenewItem)
			items.POST("/:id/return", h.Loan.ReturnItem)
			items.POST("/:id/lost", h.Loan.MarkLost)
			items.POST("/:id/damaged", h.Loan.MarkDamaged)
			items.POST("/:id/payments", h.Loan.RegisterPayment)
		}

		// 学期日历
		periods := v1.Group("/periods")
		{
			periods.GET("/resolve", h.Calendar.ResolvePeriod)
			periods.GET("/:id/business-days", h.Calendar.BusinessDays)
		}

		// 借阅策略
		v1.GET("/policy", h.Policy.GetPolicy)
		v1.PUT("/policy", h.Policy.UpdatePolicy)

		// 报表与订阅
		v1.GET("/books/availability", h.Report.BookAvailability)
		reports := v1.Group("/reports")
		{
			reports.GET("/fines", h.Report.FinesReport)
			reports.GET("/fines/export", h.Report.ExportFines)
		}
		v1.GET("/people/:id/due-dates.ics", h.Report.DueDateFeed)
	}

	return r
}
