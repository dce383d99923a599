package ai

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCachedEmbedder(t *testing.T) {
	p := &fakeProvider{vec: []float32{0.5, 0.25}}
	cache := newMemCache()
	c := NewCachedEmbedder(p, cache, "test-model", time.Hour, nil, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		vec, err := c.Embed(ctx, "coffee shop")
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		if len(vec) != 2 || vec[0] != 0.5 {
			t.Fatalf("vec = %v", vec)
		}
	}
	if p.embeds != 1 {
		t.Errorf("provider called %d times, want 1", p.embeds)
	}
	if len(cache.data) != 1 {
		t.Fatalf("cache entries = %d", len(cache.data))
	}
	for k := range cache.data {
		if want := "embed:test-model:"; k[:len(want)] != want {
			t.Errorf("key %q lacks namespace", k)
		}
	}

	if _, err := c.Embed(ctx, "grocery store"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if p.embeds != 2 {
		t.Errorf("distinct text should miss the cache")
	}
}

func TestCachedEmbedderBypassesBrokenCache(t *testing.T) {
	p := &fakeProvider{vec: []float32{1}}
	cache := newMemCache()
	cache.getErr = errBoom
	cache.setErr = errBoom
	c := NewCachedEmbedder(p, cache, "m", time.Hour, nil, zerolog.Nop())

	vec, err := c.Embed(context.Background(), "x")
	if err != nil || len(vec) != 1 {
		t.Fatalf("Embed = %v, %v", vec, err)
	}
}

func TestCachedEmbedderIgnoresCorruptEntry(t *testing.T) {
	p := &fakeProvider{vec: []float32{1, 2, 3}}
	cache := newMemCache()
	c := NewCachedEmbedder(p, cache, "m", time.Hour, nil, zerolog.Nop())
	cache.data[c.key("x")] = []byte("not json")

	vec, err := c.Embed(context.Background(), "x")
	if err != nil || len(vec) != 3 {
		t.Fatalf("Embed = %v, %v", vec, err)
	}
	if p.embeds != 1 {
		t.Error("corrupt entry should trigger a provider call")
	}
}

func TestCachedEmbedderPropagatesProviderError(t *testing.T) {
	c := NewCachedEmbedder(&fakeProvider{err: errBoom}, newMemCache(), "m", time.Hour, nil, zerolog.Nop())
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected provider error")
	}
}
