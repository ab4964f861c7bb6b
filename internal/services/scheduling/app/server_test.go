package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"
)

func TestServerServesHealthzAndShutsDown(t *testing.T) {
	const port = 18086
	server, err := NewServer(Config{
		Port:   port,
		DBPath: filepath.Join(t.TempDir(), "scheduling.db"),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe(ctx)
	}()

	healthURL := fmt.Sprintf("http://localhost:%d/healthz", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(healthURL)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("healthz status = %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became healthy: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("ListenAndServe: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewServerRequiresOpenableStore(t *testing.T) {
	_, err := NewServer(Config{DBPath: filepath.Join(t.TempDir(), "missing-dir", "no", "db.sqlite")})
	if err == nil {
		t.Fatal("expected error for unopenable store path")
	}
}
