package memory

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestImageStorePutCopiesData(t *testing.T) {
	t.Parallel()

	store := NewImageStore()
	payload := []byte("content")
	uri, err := store.Put(context.Background(), "World_a.jpg", "image/jpeg", payload)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if uri != "memory://World_a.jpg" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored, ok := store.Get("World_a.jpg")
	if !ok || string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
}

func TestImageStoreNeverOverwrites(t *testing.T) {
	t.Parallel()

	store := NewImageStore()
	if _, err := store.Put(context.Background(), "a.jpg", "image/jpeg", []byte("one")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	_, err := store.Put(context.Background(), "a.jpg", "image/jpeg", []byte("two"))
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected os.ErrExist, got %v", err)
	}
	stored, _ := store.Get("a.jpg")
	if string(stored) != "one" {
		t.Fatalf("existing image replaced: %q", stored)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 image, got %d", store.Len())
	}
}

func TestImageStoreFailWith(t *testing.T) {
	t.Parallel()

	store := NewImageStore()
	boom := errors.New("disk full")
	store.FailWith(boom)
	if _, err := store.Put(context.Background(), "a.jpg", "", nil); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	store.FailWith(nil)
	if _, err := store.Put(context.Background(), "a.jpg", "", nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
}
