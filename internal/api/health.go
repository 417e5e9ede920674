package api

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"

	"propmarket.dapp/pmc/internal/types"
)

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns server health status
// @Response: {"status": "ok"}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns client version and build information
// @Response: {"version": "...", "build_time": "...", "go_ver": "...", "os_arch": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":    types.Version,
		"build_time": types.BuildTime,
		"go_ver":     runtime.Version(),
		"os_arch":    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	})
}

// @Title: Get Status Log
// @Route: GET /api/status?limit=50
// @Description: Returns the most recent status messages, newest first
// @Response: Array of {"timestamp", "text", "level"}
func (s *Service) HandleStatus(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.logger.GetRecent(limit))
}
