package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/cyclopcam/yorubaocr/pkg/nnrunner"
	"github.com/cyclopcam/yorubaocr/pkg/orchestrator"
	"github.com/cyclopcam/yorubaocr/pkg/resize"
	"github.com/cyclopcam/yorubaocr/pkg/storage"
	"github.com/cyclopcam/yorubaocr/server/config"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log logs.Log

	config       *config.Config
	signalIn     chan os.Signal
	httpServer   *http.Server
	httpRouter   *httprouter.Router
	wsUpgrader   websocket.Upgrader
	store        storage.Storage
	gcs          *storage.StorageGCS // Only set if store is GCS, so that we can close it
	resolver     *storage.Resolver
	model        *nnrunner.Handle
	orchestrator *orchestrator.Orchestrator
	nextUpload   atomic.Uint64
	shutdownOnce sync.Once
	shutdownDone chan struct{}
}

// Create a new server. The model is not loaded until you call StartModel.
func NewServer(logger logs.Log, cfg *config.Config, loader nnrunner.Loader) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	threading, err := cfg.ThreadingMode()
	if err != nil {
		return nil, err
	}

	// Open blob store
	var store storage.Storage
	var gcsStore *storage.StorageGCS
	if cfg.Storage.GCS != nil {
		// Google Cloud Storage
		gcsStore, err = storage.NewStorageGCS(context.Background(), logger, cfg.Storage.GCS.Bucket, cfg.Storage.GCS.Prefix)
		if err != nil {
			return nil, err
		}
		store = gcsStore
	} else {
		// Filesystem
		store, err = storage.NewStorageFS(logger, cfg.Storage.Filesystem.Root)
		if err != nil {
			return nil, err
		}
	}

	resolver := storage.NewResolver(store)
	resizer, err := resize.NewImageResizer(logger, resolver, cfg.Resize.Backend)
	if err != nil {
		return nil, err
	}

	model := nnrunner.NewHandle(logger, nn.ModelAsset{Path: cfg.Model.Path, ThreadingMode: threading}, loader)

	orc := orchestrator.New(logger, orchestrator.Deps{
		Resizer: resizer,
		Model:   model,
		Permissions: orchestrator.StaticPermissions{
			MediaLibrary: cfg.Permissions.MediaLibrary,
			Camera:       cfg.Permissions.Camera,
		},
		Releaser: resolver,
	}, orchestrator.Config{
		ResizeFormat: cfg.Resize.Format,
		HistorySize:  cfg.HistorySize,
		Strict:       cfg.Strict,
	})

	s := &Server{
		Log:          logger,
		config:       cfg,
		store:        store,
		gcs:          gcsStore,
		resolver:     resolver,
		model:        model,
		orchestrator: orc,
		shutdownDone: make(chan struct{}),
	}
	s.nextUpload.Store(uint64(time.Now().UnixNano()))
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	logger.Infof("Resize backend %v, storage %v", resizer.Backend(), describeStorage(cfg))
	return s, nil
}

func describeStorage(cfg *config.Config) string {
	if cfg.Storage.GCS != nil {
		return fmt.Sprintf("gs://%v/%v", cfg.Storage.GCS.Bucket, cfg.Storage.GCS.Prefix)
	}
	return cfg.Storage.Filesystem.Root
}

// Start loading the model in the background.
// Until it is loaded, predictions resolve with "model not loaded".
func (s *Server) StartModel(ctx context.Context) error {
	return s.model.LoadAsync(ctx)
}

// Return the model handle
func (s *Server) Model() *nnrunner.Handle {
	return s.model
}

func (s *Server) Orchestrator() *orchestrator.Orchestrator {
	return s.orchestrator
}

// ListenHTTP blocks until the server is shut down.
// addr example: ":8080". If addr is empty, the config's listen address is used.
func (s *Server) ListenHTTP(addr string) error {
	if addr == "" {
		addr = s.config.Listen
	}
	s.Log.Infof("Listening on %v", addr)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.httpRouter,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		// Wait for Shutdown to finish releasing resources
		<-s.shutdownDone
		return nil
	}
	return err
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
			s.Shutdown()
		} else {
			// This path gets hit when Shutdown() is called by something other than ourselves, and Shutdown() closes the signalIn channel.
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

// Shutdown may be called more than once. Only the first call does anything.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(s.shutdown)
}

func (s *Server) shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Log.Warnf("HTTP server shutdown error: %v", err)
		}
	}
	s.model.Unload()
	if s.gcs != nil {
		s.gcs.Close()
	}
	s.Log.Infof("Shutdown complete")
	close(s.shutdownDone)
}
