package handler

import (
	"log/slog"

	"github.com/Mhixter/arapointx-sub002/internal/api/storage"
	"github.com/Mhixter/arapointx-sub002/internal/config"
	"github.com/Mhixter/arapointx-sub002/internal/inventory"
	"github.com/Mhixter/arapointx-sub002/internal/provider"
	"github.com/Mhixter/arapointx-sub002/shared/rabbitmq"
)

// Dependencies holds everything the HTTP handlers need
type Dependencies struct {
	Logger       *slog.Logger
	Storage      *storage.Storage
	Inventory    *inventory.Service
	Targets      *provider.Store
	TargetCache  *provider.CachedTargets
	RabbitClient *rabbitmq.Client
	QueueCfg     config.QueueConfig
}

// JobHandler handles job submission, status, and admin requests
type JobHandler struct {
	logger       *slog.Logger
	storage      *storage.Storage
	rabbitClient *rabbitmq.Client
	queueCfg     config.QueueConfig
}

func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:       deps.Logger,
		storage:      deps.Storage,
		rabbitClient: deps.RabbitClient,
		queueCfg:     deps.QueueCfg,
	}
}

// AdminHandler handles the operator surface: job administration and
// scrape-target configuration.
type AdminHandler struct {
	logger      *slog.Logger
	storage     *storage.Storage
	targets     *provider.Store
	targetCache *provider.CachedTargets
}

func NewAdminHandler(deps *Dependencies) *AdminHandler {
	return &AdminHandler{
		logger:      deps.Logger,
		storage:     deps.Storage,
		targets:     deps.Targets,
		targetCache: deps.TargetCache,
	}
}

// OrderHandler handles PIN purchases and airtime-to-cash requests
type OrderHandler struct {
	logger    *slog.Logger
	inventory *inventory.Service
}

func NewOrderHandler(deps *Dependencies) *OrderHandler {
	return &OrderHandler{
		logger:    deps.Logger,
		inventory: deps.Inventory,
	}
}
