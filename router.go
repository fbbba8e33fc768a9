package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	httpapi "github.com/yourorg/vacants-enricher/http"
	"github.com/yourorg/vacants-enricher/internal/logger"
)

type RouterDeps struct {
	Runs    httpapi.RunsDeps
	Records httpapi.RecordsDeps
	Logger  *zap.Logger
}

func BuildRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(30, 1*time.Minute)) // protect upstream quota
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"ok":true}`)) })

	httpapi.RegisterRuns(r, d.Runs)
	httpapi.RegisterRecords(r, d.Records)
	return r
}
