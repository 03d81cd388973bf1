package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"novelhub/internal/api"
	"novelhub/internal/novel"
	"novelhub/internal/progress"
	"novelhub/internal/queue"
	"novelhub/internal/source"
	"novelhub/internal/store"
	"novelhub/pkg/database"
	"novelhub/pkg/utils"
)

func main() {
	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	router := gin.Default()

	// Optional: avoid “trusted all proxies” warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	client := source.NewHTTPClient(30 * time.Second)
	enabled := utils.EnabledSites()
	var sources []source.Source
	for _, src := range []source.Source{
		source.NewAlice(client),
		source.NewXspsw(client),
		source.NewWfxs(client),
	} {
		if utils.SiteEnabled(enabled, src.Name()) {
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		log.Fatal("no source sites enabled")
	}
	registry := source.NewRegistry(sources...)

	st := store.New(db)
	svc := novel.NewService(registry, st)

	hub := progress.NewHub()
	tcpSrv := progress.NewServer(":7070", hub)

	qcfg := utils.LoadQueueConfig()
	q := queue.New(st, registry, hub, qcfg.FetchInterval)
	q.Start()
	defer q.Close()

	apiCfg := utils.LoadAPIConfig()
	handler := api.NewHandler(svc, st, q, hub)
	handler.RegisterRoutes(router, apiCfg)

	router.GET("/debug", func(c *gin.Context) {
		stats := hub.Stats()
		state, pending := q.State()
		c.JSON(http.StatusOK, gin.H{
			"db":            cfg.Path,
			"tcp_clients":   stats.TCPClients,
			"ws_clients":    stats.WSClients,
			"queue_state":   state,
			"queue_pending": pending,
		})
	})

	httpSrv := &http.Server{
		Addr:    ":8080",
		Handler: router,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("HTTP API server listening on :8080")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Printf("tcp shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("servers stopped")
}
