// Package workers runs background checks that keep the local session honest.
package workers

import (
	"context"
	"time"

	"fdss/internal/event"
	"fdss/internal/logger"
	"fdss/internal/loop"
)

type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

type ManagerServices struct {
	Sessions Sessions
	Loop     *loop.Loop
	Bus      *event.Bus
}

type Manager struct {
	log logger.Logger

	scheduler *Scheduler
	services  *ManagerServices
	interval  time.Duration
}

func NewManager(log logger.Logger, scheduler *Scheduler, services *ManagerServices, interval time.Duration) *Manager {
	return &Manager{
		log: log,

		scheduler: scheduler,
		services:  services,
		interval:  interval,
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.log.Info("worker: manager started")

	m.scheduler.RunByDuration(ctx, m.interval, NewSessionExpiryWorker(
		m.services.Sessions,
		m.services.Loop,
		m.services.Bus,
		m.log,
	))
}
