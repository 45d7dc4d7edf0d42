package redis

import (
	"context"
	"testing"
	"time"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, 10*time.Minute)

	store.Save(app.NewSessionWithClock("abc", 42, sampleQuestions(), domain.DefaultPolicy(), time.Now))
	if !mr.Exists("sgd:exam:session:abc") {
		t.Fatalf("expected redis key to be set")
	}
	if v, _ := mr.Get("sgd:exam:session:abc"); v != "42" {
		t.Fatalf("expected candidate id in marker, got %q", v)
	}
	if live, err := store.Live(context.Background()); err != nil || live != 1 {
		t.Fatalf("expected 1 live session, got %d err=%v", live, err)
	}
	if _, ok := store.Get("abc"); !ok {
		t.Fatalf("expected local session")
	}

	store.Delete("abc")
	if mr.Exists("sgd:exam:session:abc") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("abc"); ok {
		t.Fatalf("expected local session removed")
	}
}

func TestSessionMarkerExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	store.Save(app.NewSessionWithClock("xyz", 1, sampleQuestions(), domain.DefaultPolicy(), time.Now))

	mr.FastForward(2 * time.Minute)
	if mr.Exists("sgd:exam:session:xyz") {
		t.Fatalf("expected marker to expire")
	}
}
