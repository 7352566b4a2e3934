package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"workshopcal/internal/config"
	"workshopcal/internal/dataset"
	"workshopcal/internal/filter"
	"workshopcal/internal/ics"
	appLog "workshopcal/internal/log"
	"workshopcal/internal/model"
)

// datasetTTL bounds how long a loaded dataset is served before the loader
// is consulted again.
const datasetTTL = 5 * time.Minute

// Loader provides the catalogue dataset.
type Loader interface {
	Load(ctx context.Context) (*model.Dataset, dataset.Report, error)
}

// Server exposes the catalogue, filtered calendar downloads and
// per-offering calendar links over HTTP.
type Server struct {
	cfg    *config.Config
	loader Loader
	mux    *http.ServeMux
	now    func() time.Time
	loc    *time.Location

	mu       sync.RWMutex
	ds       *model.Dataset
	loadedAt time.Time
	reload   singleflight.Group
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, loader Loader) *Server {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}
	s := &Server{
		cfg:    cfg,
		loader: loader,
		mux:    http.NewServeMux(),
		now:    time.Now,
		loc:    loc,
	}
	s.registerRoutes()
	return s
}

// SetDataset replaces the served dataset, e.g. after a scheduled reload.
func (s *Server) SetDataset(ds *model.Dataset) {
	s.mu.Lock()
	s.ds = ds
	s.loadedAt = s.now()
	s.mu.Unlock()
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="workshopcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/workshops", s.handleWorkshops)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("GET /api/offerings/{id}/links", s.handleLinks)
	s.mux.HandleFunc("GET /api/offerings/{id}/event.ics", s.handleEventICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// dataset returns the cached dataset, reloading it once the TTL has passed.
// Concurrent callers share one reload. A failed reload keeps serving the
// previous dataset for another TTL.
func (s *Server) dataset(ctx context.Context) (*model.Dataset, error) {
	s.mu.RLock()
	ds, loadedAt := s.ds, s.loadedAt
	s.mu.RUnlock()
	if ds != nil && s.now().Sub(loadedAt) < datasetTTL {
		return ds, nil
	}

	v, err, _ := s.reload.Do("dataset", func() (any, error) {
		fresh, _, err := s.loader.Load(context.WithoutCancel(ctx))
		if err == nil {
			s.SetDataset(fresh)
			return fresh, nil
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ds == nil {
			return nil, err
		}
		appLog.Error("dataset reload failed; serving previous copy", err)
		s.loadedAt = s.now()
		return s.ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Dataset), nil
}

func (s *Server) generator(title string) *ics.Generator {
	name := s.cfg.Calendar.Name
	if title != "" {
		name += ": " + title
	}
	return ics.NewGenerator(ics.Options{
		ProdID:   s.cfg.Calendar.ProdID,
		Name:     name,
		Desc:     s.cfg.Calendar.Description,
		Timezone: s.cfg.Timezone,
	})
}

func (s *Server) builder(ds *model.Dataset) *ics.Builder {
	return ics.NewBuilder(ds.Lookups, s.cfg.Calendar.UIDDomain)
}

// workshopsResponse is the JSON response shape for /api/workshops.
type workshopsResponse struct {
	Count     int           `json:"count"`
	Workshops []workshopDTO `json:"workshops"`
}

type workshopDTO struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary,omitempty"`
	Format      string        `json:"format"`
	Areas       []string      `json:"areas"`
	Instructors []string      `json:"instructors"`
	Tags        []string      `json:"tags"`
	Offerings   []offeringDTO `json:"offerings"`
}

type offeringDTO struct {
	ID              string    `json:"id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Location        string    `json:"location"`
	Capacity        int       `json:"capacity"`
	RegistrationURL string    `json:"registration_url,omitempty"`
}

// handleWorkshops returns the filtered catalogue.
//
// GET /api/workshops?area=a&format=online&q=python&sort=date
func (s *Server) handleWorkshops(w http.ResponseWriter, r *http.Request) {
	ds, err := s.dataset(r.Context())
	if err != nil {
		appLog.Error("api workshops: dataset unavailable", err)
		writeError(w, http.StatusServiceUnavailable, "failed to load workshops")
		return
	}

	selected := filter.Select(ds, filter.FromQuery(r.URL.Query()))
	resp := workshopsResponse{Count: len(selected), Workshops: make([]workshopDTO, 0, len(selected))}
	for _, ws := range selected {
		dto := workshopDTO{
			ID:          ws.ID,
			Title:       ws.Title,
			Summary:     ws.Summary,
			Format:      ds.Lookups.Label(model.KindFormat, ws.FormatID),
			Areas:       ds.Lookups.Names(model.KindArea, ws.AreaIDs),
			Instructors: ds.Lookups.Names(model.KindInstructor, ws.InstructorIDs),
			Tags:        ws.Tags,
			Offerings:   []offeringDTO{},
		}
		if dto.Tags == nil {
			dto.Tags = []string{}
		}
		for _, o := range ds.OfferingsFor(ws.ID) {
			loc := o.Location
			if strings.TrimSpace(loc) == "" {
				loc = ics.DefaultLocation
			}
			dto.Offerings = append(dto.Offerings, offeringDTO{
				ID:              o.ID,
				Start:           o.Start,
				End:             o.End,
				Location:        loc,
				Capacity:        o.Capacity,
				RegistrationURL: o.RegistrationURL,
			})
		}
		resp.Workshops = append(resp.Workshops, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendar returns one ICS document for the filtered selection.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ds, err := s.dataset(r.Context())
	if err != nil {
		appLog.Error("calendar: dataset unavailable", err)
		writeError(w, http.StatusServiceUnavailable, "failed to load workshops")
		return
	}

	selected := filter.Select(ds, filter.FromQuery(r.URL.Query()))
	records := s.builder(ds).Records(ds, selected)
	body := s.generator("").RenderDocument(records, s.now().In(s.loc))

	appLog.Debug("calendar rendered", "workshops", len(selected), "events", len(records))
	writeICS(w, "workshops.ics", body)
}

// offering resolves the {id} path value or writes a 404.
func (s *Server) offering(w http.ResponseWriter, r *http.Request) (*model.Dataset, model.Workshop, model.Offering, bool) {
	ds, err := s.dataset(r.Context())
	if err != nil {
		appLog.Error("offering: dataset unavailable", err)
		writeError(w, http.StatusServiceUnavailable, "failed to load workshops")
		return nil, model.Workshop{}, model.Offering{}, false
	}
	id := r.PathValue("id")
	o, ok := ds.Offering(id)
	if !ok {
		writeError(w, http.StatusNotFound, "offering not found")
		return nil, model.Workshop{}, model.Offering{}, false
	}
	ws, ok := ds.Workshop(o.WorkshopID)
	if !ok {
		writeError(w, http.StatusNotFound, "workshop not found")
		return nil, model.Workshop{}, model.Offering{}, false
	}
	return ds, ws, o, true
}

// handleLinks returns the five provider targets for one offering.
func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	ds, ws, o, ok := s.offering(w, r)
	if !ok {
		return
	}
	rec := s.builder(ds).FromOffering(ws, o)
	writeJSON(w, http.StatusOK, s.generator(ws.Title).Links(rec, s.now().In(s.loc)))
}

// handleEventICS serves the single-event document as a download.
func (s *Server) handleEventICS(w http.ResponseWriter, r *http.Request) {
	ds, ws, o, ok := s.offering(w, r)
	if !ok {
		return
	}
	rec := s.builder(ds).FromOffering(ws, o)
	body := s.generator(ws.Title).RenderDocument([]model.EventRecord{rec}, s.now().In(s.loc))
	writeICS(w, o.ID+".ics", body)
}

func writeICS(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", ics.MIMEType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
