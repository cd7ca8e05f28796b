package mapping

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/datarest/internal/cors"
	"github.com/benvon/datarest/internal/database"
	"github.com/benvon/datarest/internal/models"
	"github.com/benvon/datarest/internal/telemetry"
	"github.com/benvon/datarest/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Reloader rebuilds the route table from the routes file plus the
// cross-origin overrides stored in the database, and publishes it in a Holder.
type Reloader struct {
	holder    *Holder
	basePath  string
	resources []*models.Resource
	global    *cors.Registry
	store     database.CrossOriginStore
	log       *zap.Logger
	interval  time.Duration
	trigger   chan struct{}
}

// NewReloader creates a reloader. store may be nil, in which case only the
// routes file is used.
func NewReloader(holder *Holder, basePath string, resources []*models.Resource, global *cors.Registry, store database.CrossOriginStore, log *zap.Logger, reloadInterval time.Duration) *Reloader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reloader{
		holder:    holder,
		basePath:  basePath,
		resources: resources,
		global:    global,
		store:     store,
		log:       log,
		interval:  reloadInterval,
		trigger:   make(chan struct{}, 1),
	}
}

// Reload builds a new table and publishes it. When the overrides cannot be
// loaded the current table is kept; if there is none yet, the table is built
// from the routes file alone so the server can still start.
func (r *Reloader) Reload(ctx context.Context) error {
	ctx, span := telemetry.Tracer().Start(ctx, "route_table.reload")
	defer span.End()

	var overrides map[string]*models.CrossOrigin
	if r.store != nil {
		var err error
		overrides, err = r.store.Overrides(ctx)
		if err != nil {
			if r.holder.Load() != nil {
				r.log.Warn("failed_to_load_cross_origin_overrides_keeping_route_table", zap.Error(err))
				return fmt.Errorf("load cross origin overrides: %w", err)
			}
			r.log.Warn("failed_to_load_cross_origin_overrides_using_routes_file", zap.Error(err))
			overrides = nil
		}
	}

	resources := ApplyOverrides(r.resources, overrides, r.log)
	mappings, err := NewMappings(r.basePath, resources)
	if err != nil {
		r.log.Error("failed_to_build_route_table", zap.Error(err))
		return fmt.Errorf("build mappings: %w", err)
	}
	table := Build(mappings, r.global, r.log)
	r.holder.Store(table)
	span.SetAttributes(attribute.Int("routes", len(table.routes)))
	return nil
}

// Trigger requests an immediate reload. It never blocks; triggers arriving
// while one is pending are coalesced.
func (r *Reloader) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Start runs the reload loop until ctx is cancelled.
func (r *Reloader) Start(ctx context.Context) {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_ = r.Reload(ctx)
		case <-r.trigger:
			r.log.Info("route_table_reload_triggered")
			_ = r.Reload(ctx)
		}
	}
}

// ApplyOverrides returns copies of resources with stored cross-origin
// overrides replacing the routes file metadata. Overrides naming unknown
// resources or failing validation are logged and ignored.
func ApplyOverrides(resources []*models.Resource, overrides map[string]*models.CrossOrigin, log *zap.Logger) []*models.Resource {
	out := make([]*models.Resource, 0, len(resources))
	known := make(map[string]bool, len(resources))
	for _, res := range resources {
		cp := *res
		known[res.Name] = true
		if meta, ok := overrides[res.Name]; ok {
			if err := validation.ValidateCrossOrigin(meta); err != nil {
				if log != nil {
					log.Warn("cross_origin_override_invalid", zap.String("resource", res.Name), zap.Error(err))
				}
			} else {
				cp.CrossOrigin = meta.Clone()
			}
		}
		out = append(out, &cp)
	}
	for name := range overrides {
		if !known[name] && log != nil {
			log.Warn("cross_origin_override_for_unknown_resource", zap.String("resource", name))
		}
	}
	return out
}
