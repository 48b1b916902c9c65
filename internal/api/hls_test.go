package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func writeOutput(t *testing.T, root, cameraID, name, content string) {
	t.Helper()
	dir := filepath.Join(root, cameraID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestServePlaylistAndSegment(t *testing.T) {
	env := newTestEnv(t)
	writeOutput(t, env.root, "front", "playlist.m3u8", "#EXTM3U\n")
	writeOutput(t, env.root, "front", "segment000000001.ts", "tsdata")

	resp := env.do(t, http.MethodGet, "/streams/front/playlist.m3u8", "")
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("Content-Type"); got != "application/vnd.apple.mpegurl" {
		t.Errorf("playlist content type = %q", got)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-cache" {
		t.Errorf("playlist cache control = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "#EXTM3U\n" {
		t.Errorf("playlist body = %q", body)
	}

	resp = env.do(t, http.MethodGet, "/streams/front/segment000000001.ts", "")
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("Content-Type"); got != "video/mp2t" {
		t.Errorf("segment content type = %q", got)
	}
}

func TestServeHLSRejects(t *testing.T) {
	env := newTestEnv(t)
	writeOutput(t, env.root, "front", "notes.txt", "secret")
	writeOutput(t, env.root, "front", "playlist.m3u8", "#EXTM3U\n")

	paths := []string{
		"/streams/front/notes.txt",
		"/streams/front/segment000000009.ts",
		"/streams/bad.id/playlist.m3u8",
		"/streams/front/..%2fplaylist.m3u8",
		"/streams/front/segment..ts",
		"/streams/missing/playlist.m3u8",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, p, "")
			if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 404", resp.StatusCode)
			}
		})
	}
}
