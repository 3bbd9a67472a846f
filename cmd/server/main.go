package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/facultyattendance/internal/calendars"
	"github.com/facultyattendance/internal/capture"
	"github.com/facultyattendance/internal/courses"
	"github.com/facultyattendance/internal/faculty"
	httpx "github.com/facultyattendance/internal/http"
	"github.com/facultyattendance/internal/keys"
	"github.com/facultyattendance/internal/records"
	"github.com/facultyattendance/internal/sessions"
	"github.com/facultyattendance/internal/sqlite"
)

type courseBackend interface {
	capture.CourseStore
	calendars.CourseStore
}

type recordBackend interface {
	capture.RecordStore
	calendars.RecordStore
	httpx.RecordLister
}

func main() {
	addr := flag.String("address", ":http", "http address to listen to")
	storage := flag.String("storage", "badger", "storage backend for courses and records: badger or sqlite")
	dbPath := flag.String("database-path", "attendance.db", "path to the database")
	key := flag.String("encryption-key", "please-change-me-please-change-me", "encryption key for faculty profiles")
	location := flag.String("location", sessions.DefaultLocation, "location stamped into capture tokens")
	rotateEvery := flag.Duration("rotate-every", 30*time.Second, "how often to rotate expiring capture tokens, 0 disables rotation")
	classLength := flag.Duration("class-length", time.Hour, "length of a class in the calendar feed")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	flag.Parse()

	if envKey := os.Getenv("ENCRYPTION_KEY"); envKey != "" {
		key = &envKey
	}
	if envLocation := os.Getenv("CAPTURE_LOCATION"); envLocation != "" {
		location = &envLocation
	}

	level := new(slog.LevelVar)
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		log.Fatalf("[ERROR] log-level: %s", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	encryptionKey, err := keys.ParseKey([]byte(*key))
	if err != nil {
		log.Fatalf("[ERROR] encryption-key: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := badger.Open(badger.DefaultOptions(*dbPath))
	if err != nil {
		log.Fatalf("[ERROR] db: %s", err)
	}
	defer db.Close()

	var (
		courseStore courseBackend
		recordStore recordBackend
	)
	switch *storage {
	case "badger":
		courseStore = courses.NewStore(db)
		recordStore = records.NewStore(db)
	case "sqlite":
		sqlDB, err := sqlite.Open(ctx, *dbPath+".sqlite")
		if err != nil {
			log.Fatalf("[ERROR] sqlite: %s", err)
		}
		defer sqlDB.Close()
		courseStore = sqlite.NewCourses(sqlDB)
		recordStore = sqlite.NewRecords(sqlDB)
	default:
		log.Fatalf("[ERROR] storage: unknown backend %q", *storage)
	}

	profilesStore := faculty.NewStore(db, encryptionKey)
	registry := capture.NewRegistry(logger, courseStore, recordStore, capture.WithLocation(*location))
	calendarsService := calendars.NewService(courseStore, recordStore, *classLength)

	if *rotateEvery > 0 {
		rotator := capture.NewRotator(logger, registry, *rotateEvery, *rotateEvery)
		go rotator.Run(ctx)
	}

	httpServer := http.Server{
		Handler: httpx.Handler(
			logger,
			registry,
			profilesStore,
			recordStore,
			calendarsService,
		),
	}

	// Wait for shut down in a separate goroutine.
	errCh := make(chan error)
	go func() {
		shutdownCh := make(chan os.Signal, 1)
		signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
		sig := <-shutdownCh

		logger.Info("shutting down", "signal", sig)
		cancel()

		shutdownTimeout := 15 * time.Second
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		errCh <- httpServer.Shutdown(shutdownCtx)
	}()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("[ERROR] tcp: %s", err)
	}
	logger.Info("listening", "address", ln.Addr(), "storage", *storage)

	if err := httpServer.Serve(ln); err != http.ErrServerClosed {
		logger.Error("http serve", "error", err)
	}

	if err := <-errCh; err != nil {
		logger.Error("shutdown", "error", err)
	}

	logger.Info("application stopped")
}
