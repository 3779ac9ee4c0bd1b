package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/audit"
)

// handleListCommands returns recorded property writes across all devices.
// Query parameters: source, limit, offset.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	filter, ok := commandFilter(w, r)
	if !ok {
		return
	}
	s.writeCommands(w, r, filter)
}

// handleListDeviceCommands returns recorded property writes for one device.
func (s *Server) handleListDeviceCommands(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.devices.Get(id); err != nil {
		s.writeDeviceError(w, err)
		return
	}
	filter, ok := commandFilter(w, r)
	if !ok {
		return
	}
	filter.DeviceID = id
	s.writeCommands(w, r, filter)
}

func (s *Server) writeCommands(w http.ResponseWriter, r *http.Request, filter audit.Filter) {
	if s.commands == nil {
		writeJSON(w, http.StatusOK, audit.ListResult{Entries: []audit.Entry{}, Limit: filter.Limit, Offset: filter.Offset})
		return
	}
	res, err := s.commands.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing commands failed", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// commandFilter parses the query string. It writes a 400 and returns false
// on malformed input.
func commandFilter(w http.ResponseWriter, r *http.Request) (audit.Filter, bool) {
	q := r.URL.Query()
	filter := audit.Filter{Source: q.Get("source")}

	if filter.Source != "" && filter.Source != audit.SourceHub && filter.Source != audit.SourceAPI {
		writeBadRequest(w, "source must be hub or api")
		return audit.Filter{}, false
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, p.name+" must be a non-negative integer")
			return audit.Filter{}, false
		}
		*p.dst = n
	}
	return filter, true
}
