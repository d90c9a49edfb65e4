// main.go
// SMT Truck Check proxy - pass-through to the Epicor function library with
// server-side credential injection, plus the JWT issuer and photo upload
// endpoints used by the gate check-in client.

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

	"github.com/joho/godotenv"

	"github.com/Samudera-Biru-Indonesia/Project2-SMT/auth"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/config"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/handlers"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/middleware"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	cfg := config.Load()
	cfg.Validate()

	log.Printf("🚀 Starting SMT Truck Check proxy")
	log.Printf("📍 Environment: %s", cfg.Server.Environment)
	log.Printf("🔧 Port: %s", cfg.Server.Port)

	ctx := context.Background()

	// Photo storage is optional: without it the trip endpoints still work,
	// only upload-photos degrades.
	var uploader storage.Uploader
	if archive, err := storage.NewDriveArchive(ctx, cfg.Drive.CredentialsPath, cfg.Drive.FolderID); err != nil {
		log.Printf("⚠️  Photo archive unavailable: %v", err)
		log.Println("⚠️  Continuing without upload-photos; trip endpoints are unaffected")
	} else {
		uploader = archive
		log.Printf("📷 Photo archive initialized (folder %s)", cfg.Drive.FolderID)
	}

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiration)
	log.Printf("🔐 JWT Manager initialized (expiration: %v)", cfg.JWT.Expiration)

	epicor := handlers.NewEpicorClient(cfg.Epicor)
	proxyHandler := handlers.NewProxyHandler(epicor)
	photoHandler := handlers.NewPhotoHandler(jwtManager, uploader)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	rateLimiter.StartCleanup()
	log.Printf("🛡️  Rate limiter initialized (%d requests per %v)", cfg.RateLimit.Requests, cfg.RateLimit.Window)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", handleHealth)

	// Pass-through endpoints (login, trip data, plants, staging, processing)
	for _, endpoint := range proxyHandler.Endpoints() {
		mux.HandleFunc("/api/"+endpoint, proxyHandler.Handle(endpoint))
	}

	// Upload token + bearer-gated photo upload
	bearerAuth := middleware.BearerMiddleware(jwtManager)
	mux.HandleFunc("/api/get-jwt", photoHandler.GetJWT)
	mux.Handle("/api/upload-photos", bearerAuth(http.HandlerFunc(photoHandler.UploadPhotos)))

	handler := middleware.CORSMiddleware(cfg.CORS.AllowedOrigins)(mux)
	handler = rateLimiter.Middleware()(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // upstream ERP calls can be slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("✅ Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":%d,"version":"1.0.0"}`, time.Now().Unix())
}
