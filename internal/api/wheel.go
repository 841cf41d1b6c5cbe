package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/slot-tracker-go/internal/wheel"
	"github.com/MJE43/slot-tracker-go/internal/wheelsvc"
)

type SegmentPayload struct {
	ID        string  `json:"id"`
	Label     string  `json:"label" validate:"max=100"`
	Color     string  `json:"color" validate:"omitempty,hexcolor"`
	Weight    float64 `json:"weight"`
	TextColor string  `json:"textColor" validate:"omitempty,hexcolor"`
}

type SetSegmentsRequest struct {
	Segments []SegmentPayload `json:"segments" validate:"dive"`
}

type UpdateSegmentRequest struct {
	Label     *string  `json:"label" validate:"omitempty,max=100"`
	Color     *string  `json:"color" validate:"omitempty,hexcolor"`
	Weight    *float64 `json:"weight"`
	TextColor *string  `json:"textColor" validate:"omitempty,hexcolor"`
}

type SizeRequest struct {
	Width  int `json:"width" validate:"required,gt=40,lte=4096"`
	Height int `json:"height" validate:"required,gt=40,lte=4096"`
}

type SoundRequest struct {
	Enabled bool `json:"enabled"`
}

type VerifyRequest struct {
	SpinID     string `json:"spinId" validate:"required"`
	ServerSeed string `json:"serverSeed" validate:"required"`
}

func (s *Server) handleWheelView(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.wheel.View())
}

// handleSetSegments replaces the configuration. Weights are checked by the
// wheel itself so the error names the offending segment.
func (s *Server) handleSetSegments(w http.ResponseWriter, r *http.Request) {
	var req SetSegmentsRequest
	if !s.decode(w, r, &req) {
		return
	}
	segments := make([]wheel.Segment, len(req.Segments))
	for i, p := range req.Segments {
		segments[i] = wheel.Segment{
			ID:        p.ID,
			Label:     p.Label,
			Color:     p.Color,
			Weight:    p.Weight,
			TextColor: p.TextColor,
		}
	}
	v, err := s.wheel.SetSegments(r.Context(), segments)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, v)
}

func (s *Server) handleAddSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := s.wheel.AddSegment(r.Context())
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, seg)
}

func (s *Server) handleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	var req UpdateSegmentRequest
	if !s.decode(w, r, &req) {
		return
	}
	seg, err := s.wheel.UpdateSegment(r.Context(), chi.URLParam(r, "segmentID"), wheelsvc.SegmentUpdate{
		Label:     req.Label,
		Color:     req.Color,
		Weight:    req.Weight,
		TextColor: req.TextColor,
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, seg)
}

func (s *Server) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := s.wheel.DeleteSegment(r.Context(), chi.URLParam(r, "segmentID")); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetSize(w http.ResponseWriter, r *http.Request) {
	var req SizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	v, err := s.wheel.SetSize(r.Context(), wheel.Size{Width: req.Width, Height: req.Height})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, v)
}

func (s *Server) handleSetSound(w http.ResponseWriter, r *http.Request) {
	var req SoundRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.wheel.SetSound(r.Context(), req.Enabled); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, s.wheel.View())
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	started, err := s.wheel.Spin(r.Context())
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, started)
}

// handleAdvance samples one frame. Clients without the websocket drive the
// animation with it.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.wheel.Advance(r.Context()))
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.wheel.Layout())
}

// handleExportPreset returns the running wheel as a YAML preset file.
func (s *Server) handleExportPreset(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "exported"
	}
	data, err := wheel.MarshalPreset(s.wheel.Preset(name))
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".yaml"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	page, err := s.wheel.History(r.Context(), queryInt(r, "page", 1), queryInt(r, "perPage", 50))
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, page)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := s.wheel.ClearHistory(r.Context())
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.wheel.Verify(r.Context(), req.SpinID, req.ServerSeed)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, res)
}
