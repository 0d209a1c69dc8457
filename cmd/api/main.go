package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/mnkambule/sacco-service/internal/config"
	"github.com/mnkambule/sacco-service/internal/handler"
	"github.com/mnkambule/sacco-service/internal/ledger"
	"github.com/mnkambule/sacco-service/internal/middleware"
	"github.com/mnkambule/sacco-service/internal/repository"
	"github.com/mnkambule/sacco-service/internal/service"
	"github.com/mnkambule/sacco-service/internal/utils/email"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		logger.Fatalf("Failed to ensure schema: %v", err)
	}

	engine := ledger.NewEngine(ledger.Config{
		InterestRate:   cfg.InterestRate,
		DueDay:         cfg.DueDay,
		InitialDeposit: cfg.InitialDeposit,
		CloseTolerance: cfg.CloseTolerance,
		Currency:       cfg.Currency,
	})

	var notifier service.Notifier
	if cfg.SMTPHost != "" && cfg.SenderEmail != "" {
		notifier = email.NewSender(cfg, logger)
	}

	svc := service.NewService(repo, engine, logger, cfg, notifier)
	h := handler.NewHandler(svc, logger)

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/members", h.CreateMember).Methods("POST")
	authRouter.HandleFunc("/members", h.ListMembers).Methods("GET")
	authRouter.HandleFunc("/members/{memberID}/summary", h.GetMemberSummary).Methods("GET")
	authRouter.HandleFunc("/members/{memberID}/savings/payments", h.PaySavings).Methods("POST")
	authRouter.HandleFunc("/members/{memberID}/loans", h.IssueLoan).Methods("POST")
	authRouter.HandleFunc("/members/{memberID}/loans/repayments", h.RepayLoan).Methods("POST")
	authRouter.HandleFunc("/sweep-overdue", h.SweepOverdue).Methods("POST")
	authRouter.HandleFunc("/dashboard", h.Dashboard).Methods("GET")
	authRouter.HandleFunc("/export/members.csv", h.ExportMembersCSV).Methods("GET")
	authRouter.HandleFunc("/export/transactions.csv", h.ExportTransactionsCSV).Methods("GET")
	authRouter.HandleFunc("/export/transactions.xml", h.ExportTransactionsXML).Methods("GET")

	// Scheduled overdue sweep, enabled only when a cron spec is configured
	if cfg.SweepSchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.SweepSchedule, func() {
			count, err := svc.SweepOverdueInterest(context.Background(), time.Now())
			if err != nil {
				logger.Errorf("Scheduled overdue sweep failed: %v", err)
				return
			}
			logger.Infof("Scheduled overdue sweep processed %d loan(s)", count)
		})
		if err != nil {
			logger.Fatalf("Invalid SWEEP_SCHEDULE: %v", err)
		}
		c.Start()
		defer c.Stop()
		logger.Infof("Overdue sweep scheduled: %s", cfg.SweepSchedule)
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
