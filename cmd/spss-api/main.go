package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/smartstudent-vn/spss-agent/internal/adapters/http"
	"github.com/smartstudent-vn/spss-agent/internal/adapters/llm"
	firestorestore "github.com/smartstudent-vn/spss-agent/internal/adapters/storage/firestore"
	memstore "github.com/smartstudent-vn/spss-agent/internal/adapters/storage/memory"
	sqlitestore "github.com/smartstudent-vn/spss-agent/internal/adapters/storage/sqlite"
	"github.com/smartstudent-vn/spss-agent/internal/app/alerts"
	"github.com/smartstudent-vn/spss-agent/internal/app/triage"
	"github.com/smartstudent-vn/spss-agent/internal/config"
	"github.com/smartstudent-vn/spss-agent/internal/domain"
	"github.com/smartstudent-vn/spss-agent/internal/identity"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// LLM: mock or Gemini by config (mock is the local-mode default).
	var classifier domain.Classifier
	if cfg.UseMockLLM {
		log.Println("[LLM] using mock classifier")
		classifier = llm.NewMockClassifier()
	} else {
		log.Printf("[LLM] using Gemini classifier (model=%s)", cfg.ModelName)
		classifier, err = llm.NewGeminiClassifier(ctx, llm.GeminiOptions{
			APIKey:    cfg.GeminiAPIKey,
			ProjectID: cfg.GCPProjectID,
			ModelName: cfg.ModelName,
		})
		if err != nil {
			log.Fatalf("initializing Gemini classifier: %v", err)
		}
	}

	// Storage: one store implements all four ports on every backend.
	var (
		sessions domain.SessionStore
		memories domain.MemoryStore
		alertLog domain.AlertLog
		users    domain.UserStore
	)
	switch cfg.StorageBackend {
	case "sqlite":
		log.Printf("[STORE] using sqlite storage (path=%s)", cfg.DBPath)
		store, err := sqlitestore.NewStore(cfg.DBPath, cfg.AlertCap)
		if err != nil {
			log.Fatalf("initializing sqlite store: %v", err)
		}
		defer store.Close()
		sessions, memories, alertLog, users = store, store, store, store

	case "firestore":
		log.Printf("[STORE] using Firestore storage (project=%s)", cfg.GCPProjectID)
		store, err := firestorestore.NewStore(ctx, cfg.GCPProjectID, cfg.AlertCap)
		if err != nil {
			log.Fatalf("initializing Firestore store: %v", err)
		}
		sessions, memories, alertLog, users = store, store, store, store

	default:
		log.Println("[STORE] using in-memory storage")
		sessions = memstore.NewSessionStore()
		memories = memstore.NewMemoryStore()
		alertLog = memstore.NewAlertLog(cfg.AlertCap)
		users = memstore.NewUserStore()
	}

	engine := triage.NewEngine(classifier, sessions, memories, alertLog, triage.Config{
		ContextWindow: cfg.ContextWindow,
		MemoryCap:     cfg.MemoryCap,
	})
	alertSvc := alerts.NewService(alertLog)
	identitySvc := identity.NewService(users, identity.Options{
		StudentAccessKey: cfg.StudentAccessKey,
		TeacherAccessKey: cfg.TeacherAccessKey,
		EnforceRoleMatch: cfg.EnforceRoleMatch,
	})

	handler := httpadapter.NewServer(engine, alertSvc, identitySvc, users)

	addr := ":" + cfg.Port
	log.Println("SPSS API listening on", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}
