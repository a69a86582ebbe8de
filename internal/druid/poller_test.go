// File path: internal/druid/poller_test.go
package druid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CLARIAH/cattle-druid/internal/cow"
	"github.com/CLARIAH/cattle-druid/internal/pairing"
	"github.com/CLARIAH/cattle-druid/internal/storage"
)

// fakeDruid is an httptest stand-in for the remote asset API. It serves a
// fixed asset list, hands out CSV/JSON bytes and records graph uploads.
type fakeDruid struct {
	mu       sync.Mutex
	assets   []string
	uploads  []string
	token    string
	failList bool
}

func (f *fakeDruid) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/datasets/alice/cows/assets/download", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		name := r.URL.Query().Get("fileName")
		switch {
		case strings.HasSuffix(name, ".csv"):
			fmt.Fprintf(w, "a,b\n1,2\n")
		case strings.HasSuffix(name, ".json"):
			fmt.Fprintf(w, "{}")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/datasets/alice/cows/assets", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.failList {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		parts := make([]string, 0, len(f.assets))
		for _, name := range f.assets {
			parts = append(parts, fmt.Sprintf(`{"assetName":%q,"identifier":"id-%s"}`, name, name))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(parts, ","))
	})
	mux.HandleFunc("/datasets/alice/cows/upload", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("upload without file part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if _, err := io.Copy(io.Discard, file); err != nil {
			t.Errorf("reading upload: %v", err)
		}
		f.mu.Lock()
		f.uploads = append(f.uploads, header.Filename)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func (f *fakeDruid) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+f.token
}

func (f *fakeDruid) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
	email string
	stems []string
}

func (n *recordingNotifier) NotifyGraphs(ctx context.Context, email, account string, stems []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.email = email
	n.stems = append([]string(nil), stems...)
}

// fakeEngine mirrors the cow package's test helper: the stand-in engine
// fails for inputs containing "broken".
func fakeEngine(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine script requires a POSIX shell")
	}
	script := `#!/bin/sh
mode="$1"
csv="$2"
case "$csv" in
*broken*) echo "engine exploded" >&2; exit 1 ;;
esac
case "$mode" in
build) printf '{}' > "$csv-metadata.json" ;;
convert) printf '<http://example.org/s> <http://example.org/p> "v" <http://example.org/g> .\n' > "$csv.nq" ;;
esac
`
	path := filepath.Join(t.TempDir(), "cow_tool")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return path
}

func newTestPoller(t *testing.T, fake *fakeDruid, notifier Notifier) (*Poller, *storage.Store, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	client := NewClient(server.URL, fake.token, 5*time.Second)
	invoker := cow.New(fakeEngine(t), time.Minute)
	return NewPoller(client, store, invoker, notifier, 0), store, server
}

func TestParseEvent(t *testing.T) {
	body := `{"assets":[{"assetName":"data.csv"}],"user":{"email":"a@example.org","accountName":"alice"}}`
	ev, err := ParseEvent(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.AssetName != "data.csv" || ev.Email != "a@example.org" || ev.AccountName != "alice" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseEventRejectsEmpty(t *testing.T) {
	if _, err := ParseEvent(strings.NewReader(`{"assets":[]}`)); err == nil {
		t.Fatal("expected error for payload without assets")
	}
	if _, err := ParseEvent(strings.NewReader(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestHandleEventPair(t *testing.T) {
	fake := &fakeDruid{assets: []string{"data.csv", "data.json", "other.csv"}, token: "secret"}
	notifier := &recordingNotifier{}
	poller, store, _ := newTestPoller(t, fake, notifier)

	ev := Event{AssetName: "data.csv", Email: "a@example.org", AccountName: "alice"}
	stems, err := poller.HandleEvent(context.Background(), "alice", "cows", ev)
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(stems) != 1 || stems[0] != "data" {
		t.Fatalf("stems = %v, want [data]", stems)
	}
	if got := fake.uploaded(); len(got) != 1 || got[0] != "data.csv.nq" {
		t.Fatalf("uploads = %v, want [data.csv.nq]", got)
	}
	// The trigger filter must have kept other.csv untouched.
	ws, err := store.Resolve("alice", "cows")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ws.Exists("other.csv") {
		t.Fatal("unrelated asset was fetched despite the trigger filter")
	}
	if notifier.calls != 1 || notifier.email != "a@example.org" {
		t.Fatalf("notifier calls=%d email=%q", notifier.calls, notifier.email)
	}
}

func TestHandleEventSingleBuildsSchema(t *testing.T) {
	fake := &fakeDruid{assets: []string{"solo.csv"}, token: "secret"}
	poller, store, _ := newTestPoller(t, fake, nil)

	stems, err := poller.HandleEvent(context.Background(), "alice", "cows", Event{AssetName: "solo.csv"})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(stems) != 1 || stems[0] != "solo" {
		t.Fatalf("stems = %v, want [solo]", stems)
	}
	ws, err := store.Resolve("alice", "cows")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ws.Exists("solo.csv" + cow.MetadataSuffix) {
		t.Fatal("single was converted without building a schema first")
	}
}

func TestHandleEventNoMatchingStem(t *testing.T) {
	fake := &fakeDruid{assets: []string{"data.csv", "data.json"}, token: "secret"}
	notifier := &recordingNotifier{}
	poller, _, _ := newTestPoller(t, fake, notifier)

	stems, err := poller.HandleEvent(context.Background(), "alice", "cows", Event{AssetName: "unrelated.csv", Email: "a@example.org"})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(stems) != 0 {
		t.Fatalf("stems = %v, want none", stems)
	}
	if notifier.calls != 0 {
		t.Fatal("notifier fired without successes")
	}
}

func TestHandleEventRemoteFailure(t *testing.T) {
	fake := &fakeDruid{assets: []string{"data.csv"}, token: "secret", failList: true}
	poller, _, _ := newTestPoller(t, fake, nil)

	_, err := poller.HandleEvent(context.Background(), "alice", "cows", Event{AssetName: "data.csv"})
	var remoteErr *RemoteAPIError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteAPIError, got %v", err)
	}
}

func TestHandleEventBadToken(t *testing.T) {
	fake := &fakeDruid{assets: []string{"data.csv"}, token: "secret"}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	client := NewClient(server.URL, "wrong", 5*time.Second)
	poller := NewPoller(client, store, cow.New(fakeEngine(t), time.Minute), nil, 0)

	_, err = poller.HandleEvent(context.Background(), "alice", "cows", Event{AssetName: "data.csv"})
	var remoteErr *RemoteAPIError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteAPIError for bad token, got %v", err)
	}
}

func TestBatchIsolation(t *testing.T) {
	// A build failure inside one item must not keep siblings from being
	// attempted and succeeding.
	fake := &fakeDruid{assets: []string{"broken.csv", "broken.json", "b.csv"}, token: "secret"}
	poller, store, _ := newTestPoller(t, fake, nil)

	ws, err := store.Resolve("alice", "cows")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	candidates, singles := pairing.Pair(fake.assets)
	successes := poller.processBatch(context.Background(), ws, "alice", "cows", candidates, singles)
	if len(successes) != 1 || successes[0] != "b" {
		t.Fatalf("successes = %v, want [b]", successes)
	}
	if got := fake.uploaded(); len(got) != 1 || got[0] != "b.csv.nq" {
		t.Fatalf("uploads = %v, want [b.csv.nq]", got)
	}
}

func TestCompanionWaitRespectsContext(t *testing.T) {
	fake := &fakeDruid{assets: []string{"data.csv"}, token: "secret"}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	client := NewClient(server.URL, "secret", 5*time.Second)
	poller := NewPoller(client, store, cow.New(fakeEngine(t), time.Minute), nil, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = poller.HandleEvent(ctx, "alice", "cows", Event{AssetName: "data.csv"})
	if err == nil {
		t.Fatal("expected context error during companion wait")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("companion wait ignored cancellation: took %s", time.Since(start))
	}
}
