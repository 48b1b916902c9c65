package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/camnode/internal/ffmpeg"
)

// registerHLSRoutes serves the playlist and segments the transcoders write.
// Only the playlist and segment files of a valid camera id are reachable.
func (s *Server) registerHLSRoutes() {
	s.mux.HandleFunc("GET /streams/{camera_id}/{file}", s.serveHLS)
}

func (s *Server) serveHLS(w http.ResponseWriter, r *http.Request) {
	cameraID := r.PathValue("camera_id")
	file := r.PathValue("file")

	if ffmpeg.ValidateCameraID(cameraID) != nil || strings.ContainsAny(file, `/\`) || strings.Contains(file, "..") {
		http.NotFound(w, r)
		return
	}

	var contentType string
	switch {
	case file == ffmpeg.PlaylistName:
		contentType = "application/vnd.apple.mpegurl"
		w.Header().Set("Cache-Control", "no-cache")
	case strings.HasPrefix(file, ffmpeg.SegmentPrefix) && strings.HasSuffix(file, ffmpeg.SegmentSuffix):
		contentType = "video/mp2t"
	default:
		http.NotFound(w, r)
		return
	}

	dir := ffmpeg.OutputDir(s.streams.Settings().Transcode.OutputRoot, cameraID)
	f, err := os.Open(filepath.Join(dir, file))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Access-Control-Allow-Origin", s.cors.AllowOrigin)
	http.ServeContent(w, r, file, info.ModTime(), f)
}
