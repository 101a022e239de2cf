package zcl

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds all known ZCL cluster definitions.
type Registry struct {
	mu       sync.RWMutex
	clusters map[uint16]*ClusterDef
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		clusters: make(map[uint16]*ClusterDef),
		logger:   logger,
	}
}

// Register adds a cluster definition to the registry.
func (r *Registry) Register(c ClusterDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clusters[c.ID]; ok {
		existing.Merge(&c)
		r.logger.Debug("cluster merged", "id", fmt.Sprintf("0x%04X", c.ID), "name", existing.Name)
	} else {
		clone := c.DeepCopy()
		r.clusters[c.ID] = clone
		r.logger.Debug("cluster registered", "id", fmt.Sprintf("0x%04X", c.ID), "name", c.Name)
	}
}

// Get returns a cluster definition by ID, or nil if not found.
// The returned value is a deep copy; callers may modify it safely.
func (r *Registry) Get(id uint16) *ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clusters[id]
	if c == nil {
		return nil
	}
	return c.DeepCopy()
}

// Len returns the number of registered clusters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clusters)
}

// ClusterName returns the registered name for a cluster, or its hex ID.
func (r *Registry) ClusterName(id uint16) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.clusters[id]; c != nil {
		return c.Name
	}
	return fmt.Sprintf("0x%04X", id)
}

// AttributeType returns the declared data type of an attribute.
func (r *Registry) AttributeType(cluster, attr uint16) (uint8, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clusters[cluster]
	if c == nil {
		return 0, false
	}
	a := c.FindAttribute(attr)
	if a == nil {
		return 0, false
	}
	return a.Type, true
}
