package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tummler-rov/autopilot-manager/board"
	"github.com/tummler-rov/autopilot-manager/detector"
)

type errorBody struct {
	Error   string           `json:"error"`
	Outcome detector.Outcome `json:"outcome,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleBoard serves the latest detection result. The resource exists only
// while a board is detected; a finished pass that found nothing is a 404
// that still names its outcome, so clients can tell a clean miss from a
// faulty bus.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	res := s.svc.Result()
	switch {
	case res == nil:
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no detection pass completed yet"})
	case res.Outcome != detector.OutcomeDetected:
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no board detected", Outcome: res.Outcome})
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

type candidateInfo struct {
	Platform     board.Platform              `json:"platform"`
	Manufacturer string                      `json:"manufacturer"`
	Kind         string                      `json:"kind"`
	Devices      map[string]board.BusAddress `json:"devices,omitempty"`
	Serials      []board.Serial              `json:"serials,omitempty"`
	USBIDs       []string                    `json:"usb_ids,omitempty"`
}

// handleBoards serves the supported model catalogue: the static candidates in
// probe order plus the USB models scanned for.
func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	var out []candidateInfo
	for _, cand := range s.svc.Candidates() {
		info := candidateInfo{
			Platform:     cand.Platform(),
			Manufacturer: cand.Manufacturer(),
			Serials:      cand.Serials(),
		}
		switch b := cand.(type) {
		case *board.I2CBoard:
			info.Kind = "i2c"
			info.Devices = b.Devices()
		case *board.SITLBoard:
			info.Kind = "sitl"
		default:
			info.Kind = "unknown"
		}
		out = append(out, info)
	}
	for _, target := range s.svc.USBTargets() {
		info := candidateInfo{
			Platform:     target.Platform,
			Manufacturer: target.Manufacturer,
			Kind:         "usb",
		}
		for _, id := range target.IDs {
			info.USBIDs = append(info.USBIDs, id.String())
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDetect requests a rescan. By default the pass runs asynchronously and
// the call returns 202 immediately; with ?wait=true the pass runs inline and
// the response carries its result.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "true" {
		res, err := s.svc.DetectOnce(r.Context())
		if err != nil {
			if errors.Is(err, detector.ErrDetectionInProgress) {
				writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	s.svc.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rescan requested"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleHost(w http.ResponseWriter, r *http.Request) {
	if s.host == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "host information not collected"})
		return
	}
	writeJSON(w, http.StatusOK, s.host)
}
