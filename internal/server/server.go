package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"anoa.com/threadfeed/internal/config"
	"anoa.com/threadfeed/internal/middleware"

	annotationRepo "anoa.com/threadfeed/internal/modules/annotation/repository"
	annotation "anoa.com/threadfeed/internal/modules/annotation/service"
	engagementRepo "anoa.com/threadfeed/internal/modules/engagement/repository"
	engagement "anoa.com/threadfeed/internal/modules/engagement/service"
	hierarchy "anoa.com/threadfeed/internal/modules/hierarchy/service"
	mediaRepo "anoa.com/threadfeed/internal/modules/media/repository"
	visibility "anoa.com/threadfeed/internal/modules/visibility/service"

	notiHttp "anoa.com/threadfeed/internal/modules/notification/delivery/http"
	notifRepo "anoa.com/threadfeed/internal/modules/notification/repository"
	notifService "anoa.com/threadfeed/internal/modules/notification/service"

	searchService "anoa.com/threadfeed/internal/modules/search/service"

	threadHttp "anoa.com/threadfeed/internal/modules/thread/delivery/http"
	threadRepo "anoa.com/threadfeed/internal/modules/thread/repository"
	threadService "anoa.com/threadfeed/internal/modules/thread/service"

	userRepo "anoa.com/threadfeed/internal/modules/user/repository"
	viewService "anoa.com/threadfeed/internal/modules/view/service"

	"anoa.com/threadfeed/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Server struct {
	engine *gin.Engine
	cron   *cron.Cron
	meili  *searchService.Meili
	log    zerolog.Logger
}

// NewServer wires every module. redisClient and meili may be nil; rate
// limiting, view buffering and the search index are then skipped.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, meili *searchService.Meili) *Server {
	log := logger.Module("server")

	users := userRepo.NewUserRepository(db)
	threads := threadRepo.NewRepository(db)
	annotations := annotationRepo.NewAnnotationRepository(db)

	notificationSvc := notifService.NewNotificationService(notifRepo.NewNotificationRepository(db), redisClient)
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc)

	viewSvc := viewService.NewViewService(redisClient, threads, cfg.ViewDedupWindow)

	threadSvc := threadService.NewService(threadService.Dependencies{
		Threads:   threads,
		Media:     mediaRepo.NewMediaRepository(db),
		Users:     users,
		Hierarchy: hierarchy.NewBuilder(threads),
		Annotator: annotation.NewService(annotations, users),
		Ledger:    engagement.NewLedger(engagementRepo.NewEngagementRepository(db)),
		Guard:     visibility.NewGuard(users, annotations),
		Search:    searchService.NewSearchService(meili),
		Notifier:  notificationSvc,
		Views:     viewSvc,
		Redis:     redisClient,
		Options: threadService.Options{
			RateLimitGlobal: cfg.RateLimitGlobal,
			RateLimitThread: cfg.RateLimitThread,
			RateLimitReply:  cfg.RateLimitReply,
			TrendingWindow:  cfg.TrendingWindow,
			MaxPageSize:     cfg.MaxPageSize,
		},
	})
	threadHandler := threadHttp.NewThreadHandler(threadSvc)

	scheduler := cron.New()
	if redisClient != nil {
		_, err := scheduler.AddFunc(cfg.ViewSyncSchedule, func() {
			n, err := viewSvc.SyncViews(context.Background())
			if err != nil {
				log.Error().Err(err).Int("synced", n).Msg("view sync failed")
				return
			}
			if n > 0 {
				log.Debug().Int("synced", n).Msg("view counts synced")
			}
		})
		if err != nil {
			log.Warn().Err(err).Str("schedule", cfg.ViewSyncSchedule).Msg("failed to schedule view sync")
		}
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "search": meili.Healthy()})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api")

	// Reads are open to anonymous callers; visibility decides what they see.
	public := api.Group("")
	public.Use(authMiddleware.OptionalAuth())
	{
		public.GET("/threads", threadHandler.ListThreads)
		public.GET("/threads/trending", threadHandler.TrendingThreads)
		public.GET("/threads/search", threadHandler.SearchThreads)
		public.GET("/threads/:id", threadHandler.GetThread)
		public.GET("/threads/:id/replies", threadHandler.ListReplies)
		public.GET("/threads/:id/conversation", threadHandler.ListConversation)

		public.GET("/hashtags/trending", threadHandler.TrendingHashtags)
		public.GET("/hashtags/:tag/threads", threadHandler.ThreadsByHashtag)
		public.GET("/users/:username/threads", threadHandler.ThreadsByUser)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.POST("/threads", threadHandler.CreateThread)
		protected.PUT("/threads/:id", threadHandler.UpdateThread)
		protected.DELETE("/threads/:id", threadHandler.DeleteThread)
		protected.POST("/threads/:id/quote", threadHandler.CreateQuote)

		protected.POST("/threads/:id/like", threadHandler.ToggleLike)
		protected.POST("/threads/:id/repost", threadHandler.ToggleRepost)
		protected.POST("/threads/:id/bookmark", threadHandler.ToggleBookmark)
		protected.POST("/threads/:id/reaction", threadHandler.SetReaction)

		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	return &Server{
		engine: router,
		cron:   scheduler,
		meili:  meili,
		log:    log,
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the scheduler and blocks serving HTTP until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.cron.Start()
	defer s.shutdown()

	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) shutdown() {
	<-s.cron.Stop().Done()
	s.meili.Close()
	s.log.Info().Msg("server stopped")
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
