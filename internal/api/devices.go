package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/device"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/engine"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// commandTimeout bounds a property write or republish issued over HTTP.
const commandTimeout = 5 * time.Second

// deviceResponse is the JSON view of one device.
type deviceResponse struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	Model             string                 `json:"model"`
	Manufacturer      string                 `json:"manufacturer"`
	Properties        map[string]field.Value `json:"properties"`
	Registers         map[string]int         `json:"registers,omitempty"`
	TransformFailures uint64                 `json:"transform_failures"`
	QueueDepth        int                    `json:"queue_depth"`
}

func newDeviceResponse(d *device.Device, st device.State, withRegisters bool) deviceResponse {
	resp := deviceResponse{
		ID:                st.ID,
		Name:              st.Name,
		Model:             st.Model,
		Manufacturer:      d.Model().Manufacturer,
		Properties:        st.Properties,
		TransformFailures: st.TransformFailures,
		QueueDepth:        st.QueueDepth,
	}
	if withRegisters {
		resp.Registers = make(map[string]int, len(st.Registers))
		for id, raw := range st.Registers {
			resp.Registers[id.String()] = raw
		}
	}
	return resp
}

// setPropertyRequest is the body of PUT /devices/{id}/properties/{name}.
type setPropertyRequest struct {
	Value json.RawMessage `json:"value"`
}

// handleListDevices returns every device with its current properties.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.devices.List()
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		st, err := d.Snapshot(r.Context())
		if err != nil {
			s.writeDeviceError(w, err)
			return
		}
		out = append(out, newDeviceResponse(d, st, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": out,
		"count":   len(out),
	})
}

// handleGetDevice returns one device with its raw register cache.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.devices.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	st, err := d.Snapshot(r.Context())
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDeviceResponse(d, st, true))
}

// handleSetProperty writes one semantic value.
func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	var req setPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Value) == 0 {
		writeBadRequest(w, "value is required")
		return
	}
	v, err := decodeValue(req.Value)
	if err != nil {
		writeBadRequest(w, "value must be a string, number or boolean")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := s.devices.SetProperty(ctx, id, name, v); err != nil {
		s.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"property":  name,
		"value":     v,
		"status":    "accepted",
	})
}

// handleRepublish re-derives and republishes one device's properties.
func (s *Server) handleRepublish(w http.ResponseWriter, r *http.Request) {
	d, err := s.devices.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := d.Republish(ctx); err != nil {
		s.writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListFailures returns the recorded transform failures for a device.
func (s *Server) handleListFailures(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.devices.Get(id); err != nil {
		s.writeDeviceError(w, err)
		return
	}

	failures := []device.Failure{}
	if s.failures != nil {
		list, err := s.failures.List(r.Context(), id)
		if err != nil {
			s.logger.Error("listing transform failures failed", "device_id", id, "error", err)
			writeInternalError(w, "failed to list transform failures")
			return
		}
		if list != nil {
			failures = list
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"failures": failures,
		"count":    len(failures),
	})
}

// decodeValue keeps integers as int so enum and switch writes see the same
// types as MQTT commands.
func decodeValue(raw json.RawMessage) (field.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), nil
		}
		return x.Float64()
	case string, bool:
		return x, nil
	default:
		return nil, errors.New("unsupported value type")
	}
}

// writeDeviceError maps device and engine errors to HTTP statuses.
func (s *Server) writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, engine.ErrUnknownProperty):
		writeNotFound(w, err.Error())
	case errors.Is(err, engine.ErrNotWritable):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, engine.ErrTransformFailure):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, engine.ErrCascadeDepthExceeded):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, device.ErrDeviceStopped):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "device did not respond in time")
	default:
		s.logger.Error("device operation failed", "error", err)
		writeInternalError(w, "device operation failed")
	}
}
