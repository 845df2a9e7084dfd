package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/depthcore/internal/capture"
	"github.com/nerrad567/depthcore/internal/sensor"
	"github.com/nerrad567/depthcore/internal/structure"
)

// maxStartTimeout caps how long POST /start may block waiting for readiness.
const maxStartTimeout = 20 * time.Second

// SensorStore is the read side of the sensor registry. *sensor.Registry
// satisfies it.
type SensorStore interface {
	List(ctx context.Context) ([]sensor.Sensor, error)
	Get(ctx context.Context, serial string) (*sensor.Sensor, error)
	History(ctx context.Context, serial string, limit int) ([]sensor.EventEntry, error)
}

// Device is the live surface of an attached sensor. *structure.Device
// satisfies it.
type Device interface {
	Start(timeout time.Duration) bool
	Stop()
	Reboot() bool
	SetExposureGain(exposure, gain float32) bool
	ExposureGain() (exposure, gain float32)
	SetVisibleExposureGain(exposure, gain float32) bool
	VisibleExposureGain() (exposure, gain float32)
	Intrinsics() capture.Intrinsics
	Acceleration() capture.Vec3
	GyroRotationRate() capture.Vec3
	State() structure.State
	IsReady() bool
	IsStreaming() bool
	Stats() []structure.StreamStats
	SensorInfo() capture.SensorInfo
}

// DeviceLookup finds the Device attached to a serial.
type DeviceLookup func(serial string) (Device, bool)

// DevicesFromManager adapts a Manager to a DeviceLookup.
func DevicesFromManager(m *structure.Manager) DeviceLookup {
	return func(serial string) (Device, bool) {
		d, ok := m.DeviceBySerial(serial)
		if !ok {
			return nil, false
		}
		return d, true
	}
}

// LiveState is the state of an attached Device.
type LiveState struct {
	State       structure.State         `json:"state"`
	Ready       bool                    `json:"ready"`
	Streaming   bool                    `json:"streaming"`
	Temperature float32                 `json:"temperature"`
	Streams     []structure.StreamStats `json:"streams"`
}

// SensorView is a registry entry merged with live Device state.
type SensorView struct {
	sensor.Sensor
	Attached bool       `json:"attached"`
	Live     *LiveState `json:"live,omitempty"`
}

// ExposureGain is the body of GET and PUT /exposure.
type ExposureGain struct {
	Exposure *float32 `json:"exposure"`
	Gain     *float32 `json:"gain"`
}

type exposureResponse struct {
	Serial   string  `json:"serial"`
	Exposure float32 `json:"exposure"`
	Gain     float32 `json:"gain"`
	Visible  struct {
		Exposure float32 `json:"exposure"`
		Gain     float32 `json:"gain"`
	} `json:"visible"`
}

type setExposureRequest struct {
	ExposureGain
	Visible *ExposureGain `json:"visible,omitempty"`
}

type startRequest struct {
	TimeoutMS int `json:"timeout_ms"`
}

func (s *Server) view(sn sensor.Sensor) SensorView {
	v := SensorView{Sensor: sn}
	if d, ok := s.devices(sn.Serial); ok {
		v.Attached = true
		v.Live = &LiveState{
			State:       d.State(),
			Ready:       d.IsReady(),
			Streaming:   d.IsStreaming(),
			Temperature: d.SensorInfo().Temperature,
			Streams:     d.Stats(),
		}
	}
	return v
}

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.sensors.List(r.Context())
	if err != nil {
		s.logger.Error("listing sensors", "error", err)
		writeInternalError(w, "failed to list sensors")
		return
	}

	views := make([]SensorView, 0, len(sensors))
	for _, sn := range sensors {
		views = append(views, s.view(sn))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sensors": views,
		"count":   len(views),
	})
}

func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	sn, ok := s.lookupSensor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.view(*sn))
}

func (s *Server) handleSensorEvents(w http.ResponseWriter, r *http.Request) {
	sn, ok := s.lookupSensor(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.sensors.History(r.Context(), sn.Serial, limit)
	if err != nil {
		s.logger.Error("reading sensor history", "serial", sn.Serial, "error", err)
		writeInternalError(w, "failed to read sensor events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"serial": sn.Serial,
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleStartSensor(w http.ResponseWriter, r *http.Request) {
	serial, d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var req startRequest
	if err := decodeOptional(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.TimeoutMS < 0 {
		writeBadRequest(w, "timeout_ms must not be negative")
		return
	}

	timeout := min(time.Duration(req.TimeoutMS)*time.Millisecond, maxStartTimeout)
	if !d.Start(timeout) {
		writeRejected(w, "sensor did not accept the start request")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"serial":    serial,
		"streaming": d.IsStreaming(),
	})
}

func (s *Server) handleStopSensor(w http.ResponseWriter, r *http.Request) {
	serial, d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	d.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"serial": serial, "streaming": false})
}

func (s *Server) handleRebootSensor(w http.ResponseWriter, r *http.Request) {
	serial, d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	if !d.Reboot() {
		writeRejected(w, "sensor rejected the reboot request")
		return
	}
	s.logger.Info("sensor reboot requested via API", "serial", serial,
		"request_id", r.Context().Value(ctxKeyRequestID))
	writeJSON(w, http.StatusAccepted, map[string]any{"serial": serial})
}

func (s *Server) handleGetExposure(w http.ResponseWriter, r *http.Request) {
	serial, d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	resp := exposureResponse{Serial: serial}
	resp.Exposure, resp.Gain = d.ExposureGain()
	resp.Visible.Exposure, resp.Visible.Gain = d.VisibleExposureGain()
	writeJSON(w, http.StatusOK, resp)
}

// handleSetExposure applies exposure and gain. The sensor settles
// asynchronously, so the response is 202 and GET reflects the values later.
func (s *Server) handleSetExposure(w http.ResponseWriter, r *http.Request) {
	serial, d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var req setExposureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if msg := validateExposure(req.ExposureGain); msg != "" {
		writeBadRequest(w, msg)
		return
	}
	if req.Visible != nil {
		if msg := validateExposure(*req.Visible); msg != "" {
			writeBadRequest(w, "visible: "+msg)
			return
		}
	}

	if !d.SetExposureGain(*req.Exposure, *req.Gain) {
		writeRejected(w, "sensor rejected infrared exposure")
		return
	}
	if req.Visible != nil && !d.SetVisibleExposureGain(*req.Visible.Exposure, *req.Visible.Gain) {
		writeRejected(w, "sensor rejected visible exposure")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"serial": serial})
}

func (s *Server) handleGetIntrinsics(w http.ResponseWriter, r *http.Request) {
	_, d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.Intrinsics())
}

func (s *Server) handleGetIMU(w http.ResponseWriter, r *http.Request) {
	serial, d, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"serial":        serial,
		"acceleration":  d.Acceleration(),
		"rotation_rate": d.GyroRotationRate(),
	})
}

type rangeView struct {
	Mode capture.DepthRangeMode `json:"mode"`
	capture.RangeMM
}

func (s *Server) handleListRanges(w http.ResponseWriter, _ *http.Request) {
	ranges := make([]rangeView, 0, len(capture.RangePresets))
	for _, mode := range capture.RangePresets {
		minMM, maxMM, _ := capture.RangeToMM(mode)
		ranges = append(ranges, rangeView{Mode: mode, RangeMM: capture.RangeMM{Min: minMM, Max: maxMM}})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranges": ranges})
}

// lookupSensor resolves {serial} in the registry, writing 404 when unknown.
func (s *Server) lookupSensor(w http.ResponseWriter, r *http.Request) (*sensor.Sensor, bool) {
	serial := chi.URLParam(r, "serial")
	sn, err := s.sensors.Get(r.Context(), serial)
	if err != nil {
		if errors.Is(err, sensor.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return nil, false
		}
		s.logger.Error("reading sensor", "serial", serial, "error", err)
		writeInternalError(w, "failed to read sensor")
		return nil, false
	}
	return sn, true
}

// lookupDevice resolves {serial} to an attached Device. It writes 404 for
// a serial nothing knows and 409 for a known sensor with no Device.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (string, Device, bool) {
	serial := chi.URLParam(r, "serial")
	if d, ok := s.devices(serial); ok {
		return serial, d, true
	}
	if _, err := s.sensors.Get(r.Context(), serial); err != nil {
		writeNotFound(w, "sensor not found")
		return serial, nil, false
	}
	writeError(w, http.StatusConflict, ErrCodeNotAttached, "sensor is not attached")
	return serial, nil, false
}

func validateExposure(eg ExposureGain) string {
	switch {
	case eg.Exposure == nil || eg.Gain == nil:
		return "exposure and gain are required"
	case *eg.Exposure <= 0:
		return "exposure must be positive"
	case *eg.Gain < 0:
		return "gain must not be negative"
	}
	return ""
}

// decodeOptional decodes a JSON body, treating an empty body as zero values.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
