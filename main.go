package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusevents/autocom"
	"campusevents/controller"
	"campusevents/db"
	"campusevents/globals"
	"campusevents/hub"
	"campusevents/middleware"
	"campusevents/mq"
	"campusevents/notify"
	"campusevents/ratelim"
	"campusevents/repository"
	"campusevents/routes"
	"campusevents/service"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

func main() {
	cfg := globals.LoadConfig()
	ratelim.Configure(cfg.RateLimitRPS, cfg.RateLimitBurst)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Printf("MongoDB disconnect: %v", err)
		}
	}()
	if err := db.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	eventRepo := repository.NewEventRepository(db.EventsCollection)
	regRepo := repository.NewRegistrationRepository(db.RegistrationsCollection)
	userRepo := repository.NewUserRepository(db.UserCollection)
	msgRepo := repository.NewDiscussionRepository(db.DiscussionsCollection)
	fbRepo := repository.NewFeedbackRepository(db.FeedbackCollection)

	bus := mq.NewBus(1024)
	bus.Subscribe(mq.TopicEventPublished, "discord-webhook", notify.NewWebhook().Handle)
	mailer := &notify.Mailer{Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.SMTPFrom}
	bus.Subscribe(mq.TopicTicketIssued, "ticket-mailer", mailer.Handle)

	var index *autocom.Index
	if cfg.RedisURL != "" {
		rdb := autocom.InitRedis(cfg.RedisURL, cfg.RedisPassword)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("Redis unavailable, search and fan-out disabled: %v", err)
		} else {
			index = &autocom.Index{Client: rdb}
			bus.Subscribe(mq.AllTopics, "autocomplete", index.Handle)
			bus.Subscribe(mq.AllTopics, "redis-fanout", (&mq.RedisSink{Client: rdb, Prefix: "campusevents:"}).Handle)
		}
	}
	if cfg.IndexURL != "" {
		bus.Subscribe(mq.AllTopics, "search-indexer", mq.NewIndexSink(cfg.IndexURL).Handle)
	}
	// workers outlive the signal context so Close can drain the queue
	bus.Start(context.Background(), cfg.Workers)

	live := hub.New()

	authSvc := service.NewAuthService(userRepo)
	if cfg.AdminEmail != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("Failed to seed admin: %v", err)
		}
	}
	eventSvc := service.NewEventService(eventRepo, regRepo, userRepo, bus)
	regSvc := service.NewRegistrationService(eventRepo, regRepo, userRepo, bus)
	discussionSvc := service.NewDiscussionService(eventRepo, regRepo, msgRepo, userRepo, bus, live)
	feedbackSvc := service.NewFeedbackService(eventRepo, regRepo, fbRepo, bus)

	router := httprouter.New()
	router.GET("/health", Index)

	routes.AddAuthRoutes(router, controller.NewAuthController(authSvc))
	routes.AddEventsRoutes(router, controller.NewEventController(eventSvc))
	routes.AddRegistrationRoutes(router, controller.NewRegistrationController(regSvc, cfg.UploadDir))
	routes.AddDiscussionRoutes(router, controller.NewDiscussionController(discussionSvc, live))
	routes.AddFeedbackRoutes(router, controller.NewFeedbackController(feedbackSvc))
	routes.AddSearchRoutes(router, &controller.SearchController{Index: index})
	routes.AddStaticRoutes(router, cfg.UploadDir)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := middleware.Recover(middleware.SecurityHeaders(c.Handler(router)))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server started on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on port %s: %v", cfg.Port, err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	bus.Close()
	log.Println("Server stopped")
}

func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}
