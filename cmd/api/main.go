package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendly/internal/academic"
	"attendly/internal/attendance"
	"attendly/internal/auth"
	"attendly/internal/cloudinary"
	"attendly/internal/config"
	"attendly/internal/email"
	"attendly/internal/faceclient"
	"attendly/internal/handler"
	"attendly/internal/httpmiddleware"
	"attendly/internal/identity"
	"attendly/internal/kv"
	"attendly/internal/license"
	"attendly/internal/livefeed"
	"attendly/internal/onboard"
	"attendly/internal/session"
	"attendly/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	kvStore := kv.NewRedisStore(redisClient.Client)
	bus := livefeed.NewRedisBus(redisClient.Client)

	var sender email.Sender
	if cfg.SendgridAPIKey != "" {
		sender = email.NewSendgrid(cfg.SendgridAPIKey, cfg.EmailFrom)
	} else {
		log.Println("SENDGRID_API_KEY not set, OTP emails go to the log")
		sender = email.ConsoleSender{}
	}

	users := identity.NewRepository(db.Client)
	otp := identity.NewOTPService(kvStore, cfg.OTPTTL)
	identities := identity.NewService(users, otp, sender)

	academics := academic.NewRepository(db.Client)
	sessions := session.NewManager(kvStore, cfg.SessionTTL)
	records := attendance.NewRepository(db.Client)
	att := attendance.NewService(sessions, academics, records, users, bus, cfg.AllowLocalhostIP)

	gateway := license.NewClient(cfg.PaymentBaseURL, cfg.PaymentClientID, cfg.PaymentClientSecret)
	licenses := license.NewService(license.NewRepository(db.Client), gateway, kvStore, cfg.LicenseCacheTTL, cfg.FrontendURL)

	onboarding := onboard.NewService(academics, users, kvStore)
	faces := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)

	var cdn *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdn = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	} else {
		log.Println("Cloudinary not configured, face enrollment disabled")
	}

	h := handler.New(cfg, identities, users, sessions, att, licenses, onboarding, academics, bus, faces, cdn)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware(cfg.FrontendURL))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Handler())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	authRequired := auth.Middleware(cfg.JWTSigningKey, cfg.JWTIssuer)

	authGroup := r.Group("/v1/auth")
	{
		authGroup.POST("/register-institution", h.RegisterInstitution)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/verify-email", h.VerifyEmail)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", authRequired, h.Logout)
		authGroup.GET("/me", authRequired, h.Me)
	}

	licenseGroup := r.Group("/v1/license", authRequired)
	{
		licenseGroup.POST("/create-order", auth.RequireRoles(identity.RoleAdmin), h.CreateOrder)
		licenseGroup.GET("/verify-payment", auth.RequireRoles(identity.RoleAdmin), h.VerifyPayment)
		licenseGroup.POST("/verify-payment", auth.RequireRoles(identity.RoleAdmin), h.VerifyPayment)
		licenseGroup.GET("/status", h.LicenseStatus)
	}

	onboardGroup := r.Group("/v1/onboard", authRequired, auth.RequireRoles(identity.RoleAdmin), license.Middleware(licenses))
	{
		onboardGroup.POST("/kml", h.UploadKML)
		onboardGroup.POST("/wifi", h.AddWifiIPs)
	}

	academicGroup := r.Group("/v1/academic", authRequired, license.Middleware(licenses))
	{
		academicGroup.GET("/campuses", h.ListCampuses)
		academicGroup.POST("/departments", auth.RequireRoles(identity.RoleAdmin), h.CreateDepartment)
		academicGroup.GET("/departments", h.ListDepartments)
		academicGroup.POST("/years", auth.RequireRoles(identity.RoleAdmin), h.CreateYear)
		academicGroup.GET("/years", h.ListYears)
		academicGroup.POST("/subjects", auth.RequireRoles(identity.RoleAdmin), h.CreateSubject)
		academicGroup.GET("/subjects", h.ListSubjects)
	}

	teacherGroup := r.Group("/v1/teacher", authRequired, license.Middleware(licenses, identity.RoleTeacher, identity.RoleAdmin))
	{
		teacherGroup.POST("/start-class", h.StartClass)
		teacherGroup.GET("/session/:id/qr", h.SessionQR)
		teacherGroup.GET("/live-attendance", h.LiveAttendance)
		teacherGroup.GET("/live-attendance/stream", h.LiveAttendanceStream)
	}

	studentGroup := r.Group("/v1/student", authRequired, license.Middleware(licenses))
	{
		studentGroup.POST("/join-class", h.JoinClass)
		studentGroup.POST("/verify-face", h.VerifyFace)
		studentGroup.POST("/enroll-face", h.EnrollFace)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// SSE streams stay open indefinitely, so no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests. Credentials require an explicit
// origin, so the frontend URL is echoed rather than a wildcard.
func corsMiddleware(frontendURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = frontendURL
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
