package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const healthText = "婚禮 Line Bot 服務\n狀態：伺服器正在運行\nWedding bot is running.\n"

func (s *Server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()

	for _, webhook := range s.cfg.Webhooks {
		pattern := "POST " + webhook.Path
		if webhook.Path == "/" {
			pattern = "POST /{$}"
		}
		mux.Handle(pattern, webhook.Handler)
	}

	mux.HandleFunc("GET /{$}", s.handleHealth)

	if s.cfg.PhotoDir != "" {
		mux.Handle("GET /pictures/", http.StripPrefix("/pictures/", staticFiles(s.cfg.PhotoDir)))
	}
	if s.cfg.Tables != nil {
		mux.Handle("GET /tables/", http.StripPrefix("/tables/", staticFiles(s.cfg.Tables.Dir())))
		mux.HandleFunc("GET /api/tables", s.handleListTables)
		mux.HandleFunc("GET /api/tables/{table}", s.handleTableImage)
	}
	if s.cfg.Stats != nil {
		mux.HandleFunc("GET /api/stats", s.handleStats)
	}

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "%s服務時間: %s\n", healthText, time.Now().Format(time.RFC3339))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: s.cfg.Stats()})
}

// staticFiles serves regular files from dir and refuses directory listings.
func staticFiles(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
