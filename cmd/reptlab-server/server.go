package main

import (
	"reptlab/internal/narrate"
	"reptlab/internal/rept"
	"reptlab/internal/rept/notifiers"
	"reptlab/internal/storage"
)

// reptLoggerAdapter adapts the server's Logger to the rept.Logger interface
type reptLoggerAdapter struct {
	logger *Logger
}

func (a *reptLoggerAdapter) Debugf(format string, v ...any) {
	a.logger.Debugf(format, v...)
}

func (a *reptLoggerAdapter) Infof(format string, v ...any) {
	a.logger.Infof(format, v...)
}

func (a *reptLoggerAdapter) Warnf(format string, v ...any) {
	a.logger.Warnf(format, v...)
}

func (a *reptLoggerAdapter) Errorf(format string, v ...any) {
	a.logger.Errorf(format, v...)
}

// Server is the HTTP presentation layer around the simulation
// engines. It never mutates engine state except through the engine's
// own public operations.
type Server struct {
	manager     *rept.SimulationManager
	notifierMgr *rept.NotificationManager
	wsNotifier  *notifiers.WebSocketNotifier
	store       *storage.RunStore
	narrator    *narrate.Client
	logger      *Logger
}

// NewServer creates a new server instance
func NewServer(logger *Logger) *Server {
	reptLogger := &reptLoggerAdapter{logger: logger}
	notifierMgr := rept.NewNotificationManagerWithLogger(reptLogger)

	wsNotifier := notifiers.NewWebSocketNotifier("ws-broadcast")
	if err := notifierMgr.RegisterNotifier(wsNotifier); err != nil {
		logger.Errorf("Failed to register websocket notifier: %v", err)
	}

	return &Server{
		manager:     rept.NewSimulationManagerWithLogger(reptLogger),
		notifierMgr: notifierMgr,
		wsNotifier:  wsNotifier,
		logger:      logger,
	}
}

// SetStore attaches the run archive.
func (s *Server) SetStore(store *storage.RunStore) {
	s.store = store
}

// SetNarrator attaches the narration client. A nil narrator makes the
// narration endpoint report the analysis as unavailable.
func (s *Server) SetNarrator(narrator *narrate.Client) {
	s.narrator = narrator
}

// createSimulation builds an engine under the manager and wires it to
// the event fan-out.
func (s *Server) createSimulation(id rept.SimulationID, cfg rept.SimulationConfig, runtime rept.RuntimeConfig) (*rept.Engine, error) {
	engine, err := s.manager.CreateSimulation(id, cfg, runtime)
	if err != nil {
		return nil, err
	}
	engine.SetNotificationManager(s.notifierMgr)
	return engine, nil
}
