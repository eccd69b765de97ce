package web

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

const statusTemplate = `<!DOCTYPE html>
<html>
<head><title>meshbridge</title></head>
<body>
<h1>Trackers</h1>
<table border="1" cellpadding="4">
<tr><th>Mesh ID</th><th>Name</th><th>Last Seen</th><th>Shared</th></tr>
{{range .Trackers}}<tr><td>{{.MeshID}}</td><td>{{.Name}}</td><td>{{.LastSeenAgo}}</td><td>{{if .SharedWithUs}}*{{end}}</td></tr>
{{end}}</table>
<p><a href="/api/trackers">JSON</a> | <a href="/metrics">Metrics</a></p>
</body>
</html>
`

type trackerRow struct {
	MeshID       string
	Name         string
	LastSeenAgo  string
	SharedWithUs bool
}

// handleStatus renders the tracker table.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	log.Printf("Request from %s: %s", r.RemoteAddr, r.URL.String())

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var rows []trackerRow
	now := time.Now().Unix()
	for _, t := range s.trackers.Snapshot() {
		rows = append(rows, trackerRow{
			MeshID:       t.MeshID,
			Name:         t.Name,
			LastSeenAgo:  (time.Duration(now-t.LastSeen) * time.Second).String() + " ago",
			SharedWithUs: t.SharedWithUs,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, struct{ Trackers []trackerRow }{rows}); err != nil {
		log.Printf("Error rendering status page: %v", err)
	}
}

// handleTrackersAPI returns the registry as JSON, newest first.
func (s *Server) handleTrackersAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.trackers.Snapshot()); err != nil {
		log.Printf("Error encoding trackers: %v", err)
	}
}
