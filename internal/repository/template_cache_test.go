package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/vhvplatform/go-routine-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testBundle(name string) *TemplateBundle {
	return &TemplateBundle{
		Template: &domain.RoutineTemplate{
			ID:     primitive.NewObjectID(),
			UserID: "user-1",
			Name:   name,
		},
		Tasks: []*domain.TemplateTask{
			{Title: "Stretch", OrderIndex: 0, IsActive: true},
			{Title: "Plan the day", OrderIndex: 1, IsActive: true},
		},
	}
}

// TestTemplateCache tests the template caching functionality
func TestTemplateCache(t *testing.T) {
	cache := NewTemplateCache(1 * time.Second)

	bundle := testBundle("morning")
	key := "test-key"
	cache.Set(key, bundle)

	retrieved, found := cache.Get(key)
	if !found {
		t.Error("Expected to find cached bundle")
	}
	if retrieved.Template.Name != bundle.Template.Name {
		t.Errorf("Expected template name %s, got %s", bundle.Template.Name, retrieved.Template.Name)
	}

	// Test cache expiration
	time.Sleep(1100 * time.Millisecond)
	_, found = cache.Get(key)
	if found {
		t.Error("Expected cache entry to be expired")
	}
}

// TestTemplateCacheInvalidate tests cache invalidation
func TestTemplateCacheInvalidate(t *testing.T) {
	cache := NewTemplateCache(5 * time.Minute)

	key := "test-key"
	_ = cache.Set(key, testBundle("morning"))

	if _, found := cache.Get(key); !found {
		t.Error("Expected to find cached bundle")
	}

	cache.Invalidate(key)

	if _, found := cache.Get(key); found {
		t.Error("Expected cache entry to be invalidated")
	}
}

// TestTemplateCacheKeyValidation tests key validation rules
func TestTemplateCacheKeyValidation(t *testing.T) {
	cache := NewTemplateCache(5 * time.Minute)

	tests := []struct {
		name    string
		key     string
		bundle  *TemplateBundle
		wantErr bool
	}{
		{
			name:    "valid key",
			key:     "valid-key",
			bundle:  testBundle("morning"),
			wantErr: false,
		},
		{
			name:    "empty key",
			key:     "",
			bundle:  testBundle("morning"),
			wantErr: true,
		},
		{
			name:    "key too long",
			key:     string(make([]byte, 600)),
			bundle:  testBundle("morning"),
			wantErr: true,
		},
		{
			name:    "key with null byte",
			key:     "test\x00key",
			bundle:  testBundle("morning"),
			wantErr: true,
		},
		{
			name:    "key with newline",
			key:     "test\nkey",
			bundle:  testBundle("morning"),
			wantErr: true,
		},
		{
			name: "bundle too large",
			key:  "large-bundle",
			bundle: &TemplateBundle{
				Template: &domain.RoutineTemplate{Name: "huge"},
				Tasks:    make([]*domain.TemplateTask, maxBundleTasks+1),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cache.Set(tt.key, tt.bundle)
			if (err != nil) != tt.wantErr {
				t.Errorf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}

			if err == nil {
				if _, found := cache.Get(tt.key); !found {
					t.Error("Expected to find cached bundle after successful Set")
				}
			}
		})
	}
}

// TestTemplateCacheEviction tests that cache evicts oldest entries when full
func TestTemplateCacheEviction(t *testing.T) {
	cache := NewTemplateCache(1 * time.Minute)
	cache.maxSize = 5 // Set small size for testing

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("key-%d", i)
		if err := cache.Set(key, testBundle(key)); err != nil {
			t.Fatalf("Failed to set key %s: %v", key, err)
		}
		time.Sleep(10 * time.Millisecond) // Ensure different timestamps
	}

	if len(cache.bundles) != 5 {
		t.Errorf("Expected cache size 5, got %d", len(cache.bundles))
	}

	newKey := "key-new"
	if err := cache.Set(newKey, testBundle(newKey)); err != nil {
		t.Fatalf("Failed to set new key: %v", err)
	}

	if len(cache.bundles) != 5 {
		t.Errorf("Expected cache size 5 after eviction, got %d", len(cache.bundles))
	}

	if _, found := cache.Get(newKey); !found {
		t.Error("Expected to find new key after adding to full cache")
	}

	if _, found := cache.Get("key-0"); found {
		t.Error("Expected oldest key to be evicted")
	}
}

// BenchmarkTemplateCacheGet benchmarks cache retrieval
func BenchmarkTemplateCacheGet(b *testing.B) {
	cache := NewTemplateCache(5 * time.Minute)
	cache.Set("test-key", testBundle("morning"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Get("test-key")
	}
}
