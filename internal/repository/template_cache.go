package repository

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/vhvplatform/go-routine-service/internal/domain"
)

// Security constants for cache
const (
	maxCacheSize   = 1000 // Maximum number of cached templates
	maxCacheKeyLen = 512  // Maximum length of cache key
	maxBundleTasks = 500  // Maximum template tasks cached per bundle
)

// TemplateBundle is a routine template together with its template tasks
type TemplateBundle struct {
	Template *domain.RoutineTemplate
	Tasks    []*domain.TemplateTask
}

// TemplateCache holds cached template bundles with size controls
type TemplateCache struct {
	bundles map[string]*TemplateBundle
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]time.Time
	maxSize int // Maximum number of entries
}

// NewTemplateCache creates a new template cache with size limits
func NewTemplateCache(ttl time.Duration) *TemplateCache {
	return &TemplateCache{
		bundles: make(map[string]*TemplateBundle),
		entries: make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxCacheSize,
	}
}

// validateCacheKey validates cache key to prevent injection attacks
func validateCacheKey(key string) error {
	if len(key) == 0 {
		return errors.New("cache key cannot be empty")
	}
	if len(key) > maxCacheKeyLen {
		return errors.New("cache key exceeds maximum length")
	}
	if strings.ContainsAny(key, "\x00\n\r") {
		return errors.New("cache key contains invalid characters")
	}
	return nil
}

// Get retrieves a template bundle from cache
func (c *TemplateCache) Get(key string) (*TemplateBundle, bool) {
	if err := validateCacheKey(key); err != nil {
		return nil, false
	}

	c.mu.RLock()
	bundle, exists := c.bundles[key]
	entryTime, hasEntry := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if !hasEntry || time.Since(entryTime) > c.ttl {
		c.mu.Lock()
		delete(c.bundles, key)
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return bundle, true
}

// Set stores a template bundle in cache
func (c *TemplateCache) Set(key string, bundle *TemplateBundle) error {
	if err := validateCacheKey(key); err != nil {
		return err
	}

	// Bound the cached payload to prevent memory exhaustion
	if bundle != nil && len(bundle.Tasks) > maxBundleTasks {
		return errors.New("template bundle exceeds maximum cached size")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.bundles) >= c.maxSize && c.bundles[key] == nil {
		c.evictOldest()
	}

	c.bundles[key] = bundle
	c.entries[key] = time.Now()
	return nil
}

// evictOldest removes the oldest entry from cache (must be called with lock held)
func (c *TemplateCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entryTime := range c.entries {
		if first || entryTime.Before(oldestTime) {
			oldestKey = key
			oldestTime = entryTime
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.bundles, oldestKey)
		delete(c.entries, oldestKey)
	}
}

// Invalidate removes a template bundle from cache
func (c *TemplateCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.bundles, key)
	delete(c.entries, key)
}
