package cache_test

import (
	"testing"
	"time"

	"github.com/sidu-provider/portal-api/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("token:abc", "uid-1")
	val, ok := c.Get("token:abc")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "uid-1" {
		t.Errorf("expected 'uid-1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("token:abc", "uid-1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("token:abc")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("token:abc", "uid-1")
	c.Delete("token:abc")

	_, ok := c.Get("token:abc")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_OverwriteRefreshesTTL(t *testing.T) {
	c := cache.New[int](80 * time.Millisecond)
	defer c.Close()

	c.Set("k", 1)
	time.Sleep(50 * time.Millisecond)
	c.Set("k", 2)
	time.Sleep(50 * time.Millisecond)

	val, ok := c.Get("k")
	if !ok {
		t.Fatal("expected refreshed entry to still be alive")
	}
	if val != 2 {
		t.Errorf("expected 2, got %d", val)
	}
}
