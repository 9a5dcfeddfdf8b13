package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCodeDirectoryClaimResolveRelease(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	dir := NewCodeDirectory(client, time.Minute)
	ctx := context.Background()

	ok, err := dir.Claim(ctx, "ABC123", "session-1")
	if err != nil || !ok {
		t.Fatalf("expected first claim to win, ok=%v err=%v", ok, err)
	}

	// A second claim for the same code must lose.
	ok, err = dir.Claim(ctx, "ABC123", "session-2")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if ok {
		t.Fatalf("expected duplicate claim rejected")
	}

	sessionID, err := dir.Resolve(ctx, "ABC123")
	if err != nil || sessionID != "session-1" {
		t.Fatalf("expected session-1, got %q err=%v", sessionID, err)
	}

	if err := dir.Release(ctx, "ABC123"); err != nil {
		t.Fatalf("release: %v", err)
	}
	sessionID, err = dir.Resolve(ctx, "ABC123")
	if err != nil || sessionID != "" {
		t.Fatalf("expected retired code to resolve empty, got %q err=%v", sessionID, err)
	}
}
