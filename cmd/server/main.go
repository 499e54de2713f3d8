package main

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"vantrack-backend/internal/broadcast"
	"vantrack-backend/internal/config"
	"vantrack-backend/internal/database"
	"vantrack-backend/internal/handlers"
	"vantrack-backend/internal/middleware"
	"vantrack-backend/internal/models"
	"vantrack-backend/internal/notify"
	"vantrack-backend/internal/registry"
	"vantrack-backend/internal/routing"
	"vantrack-backend/internal/scheduler"
	"vantrack-backend/internal/store"
	"vantrack-backend/internal/tracking"
	"vantrack-backend/internal/trip"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚌 VANTRACK BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("✅ Configuration loaded (tick %ds, proximity %.0fm, deviation %.0fm/%ds)",
		cfg.Tracking.TickIntervalSec, cfg.Tracking.ProximityThresholdM,
		cfg.Tracking.DeviationThresholdM, cfg.Tracking.DeviationIntervalSec)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("❌ DATABASE_URL environment variable is required")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ Database migrations failed: %v", err)
	}
	if err := database.SeedUsers(db); err != nil {
		log.Fatalf("❌ User seeding failed: %v", err)
	}
	if err := database.SeedRegistry(db); err != nil {
		log.Fatalf("❌ Registry seeding failed: %v", err)
	}

	// Initialize Firebase Cloud Messaging. Push degrades to a no-op when
	// credentials are absent; the in-app channel is unaffected.
	var pushSender notify.PushSender
	if credsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); credsBase64 != "" {
		sender, err := notify.NewFCMSenderFromBase64(credsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push disabled)", err)
		} else {
			pushSender = sender
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else {
		credsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE")
		if credsFile == "" {
			credsFile = "./firebase-service-account.json"
		}
		sender, err := notify.NewFCMSender(credsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push disabled)", err)
		} else {
			pushSender = sender
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	}

	// Core wiring
	st := store.NewPostgres(db)
	reg := registry.New(db)
	sched := scheduler.New()
	defer sched.Stop()

	hub := broadcast.NewHub(st)
	go hub.Run()
	log.Println("✅ Broadcast hub started")

	dispatcher := notify.NewDispatcher(st, reg, hub)
	push := notify.NewPushNotifier(pushSender, reg)

	// Sound cues render on the client device; the server runs the
	// notifier headless so the listener chain is the same everywhere.
	audio := notify.NewAudioNotifier(nil)
	dispatcher.AddListener(func(_ string, n models.GuardianNotification) { audio.OnNotification(n) })

	router := routing.NewClient(cfg.Tracking.RoutingBaseURL)

	location := tracking.NewLocationSource(sched, nil)
	deviation := tracking.NewDeviationDetector(router)
	deviation.SetConfig(tracking.DeviationConfig{
		ThresholdMeters: cfg.Tracking.DeviationThresholdM,
		MinIntervalSec:  cfg.Tracking.DeviationIntervalSec,
	})

	tripCfg := trip.Config{
		TickInterval: cfg.Tracking.TickInterval(),
		PurgeDelay:   cfg.Tracking.TripPurgeDelay(),
	}
	var tripSvc *trip.Service
	proximity := tracking.NewProximityEngine(
		cfg.Tracking.ProximityThresholdM,
		cfg.Tracking.ProximityCooldown(),
		func(alert tracking.ProximityAlert) { tripSvc.NewProximityEmit()(alert) },
	)
	tripSvc = trip.NewService(st, reg, router, dispatcher, push, location, deviation, proximity,
		sched, database.NewRouteHistory(db), hub, tripCfg)

	// Driver sessions may stream positions over the websocket.
	hub.OnDriverLocation = tripSvc.IngestLocation

	// Create router
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", broadcast.HandleWebSocket(hub))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Driver endpoints (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			r.Get("/auth/status", handlers.GetAuthStatus(db))

			r.Post("/driver/route/start", handlers.StartRoute(db, tripSvc))
			r.Post("/driver/route/finish", handlers.FinishRoute(tripSvc))
			r.Get("/driver/trip/current", handlers.GetCurrentTrip(tripSvc))
			r.Post("/driver/trip/transition", handlers.TransitionStudent(tripSvc))
			r.Post("/driver/trip/transition-group", handlers.TransitionGroup(tripSvc))
			r.Post("/driver/trip/delay", handlers.ReportDelay(tripSvc))
			r.Post("/driver/location", handlers.UpdateLocation(tripSvc))
			r.Post("/driver/fcm-token", handlers.RegisterFCMToken(db))
			r.Delete("/driver/fcm-token", handlers.UnregisterFCMToken(db))

			// Guardian panel
			r.Get("/guardian/notifications", handlers.GetNotifications(st))
			r.Post("/guardian/notifications/{id}/read", handlers.MarkNotificationRead(st))
			r.Delete("/guardian/notifications/{id}", handlers.DeleteNotification(st))
			r.Get("/guardian/welcome-seen", handlers.GetWelcomeSeen(st))
			r.Post("/guardian/welcome-seen", handlers.MarkWelcomeSeen(st))
		})

		// Admin endpoints (require authentication + admin role)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("admin"))

			r.Get("/admin/deviation-config", handlers.GetDeviationConfig(tripSvc))
			r.Put("/admin/deviation-config", handlers.UpdateDeviationConfig(tripSvc))
			r.Get("/admin/active-routes", handlers.GetActiveRoutes(db, st))
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = strconv.Itoa(cfg.Server.Port)
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚌 Server starting on http://localhost:%s", port)
	log.Println("═══════════════════════════════════════════════════════════════════")

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}
