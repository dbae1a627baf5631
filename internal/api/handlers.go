package api

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/fahrprobe/fahrprobe-cli/internal/catalog"
	"github.com/fahrprobe/fahrprobe-cli/internal/models"
	"github.com/fahrprobe/fahrprobe-cli/internal/scenario"
)

const maxBody = 10 * 1024 * 1024

type scenarioSummary struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Title      string            `json:"title"`
	Severity   scenario.Severity `json:"severity"`
	Blurb      string            `json:"blurb,omitempty"`
	Steps      int               `json:"steps"`
	DurationMS int64             `json:"duration_ms"`
}

type scenarioDetail struct {
	scenarioSummary
	NativeTitle string                    `json:"native_title,omitempty"`
	Description string                    `json:"description,omitempty"`
	StepCaption []string                  `json:"step_captions"`
	Lines       []string                  `json:"lines"`
	Initial     map[string]scenario.Value `json:"initial"`
}

func summarize(def *scenario.Definition) scenarioSummary {
	return scenarioSummary{
		ID:         def.ID,
		Name:       def.Name,
		Title:      def.Title,
		Severity:   def.Severity,
		Blurb:      def.Blurb,
		Steps:      len(def.Steps),
		DurationMS: def.Duration().Milliseconds(),
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "fahrprobe",
		"version": s.config.Version,
		"endpoints": []string{
			"/v1/scenarios", "/v1/active", "/v1/commands", "/v1/questions",
			"/v1/categories", "/v1/tips", "/v1/learned", "/v1/progress/export",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.GetStats())
}

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	defs := s.selector.Registry().Definitions()
	out := make([]scenarioSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, summarize(def))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDescribeScenario(w http.ResponseWriter, r *http.Request) {
	def, err := s.selector.Registry().Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, scenarioDetail{
		scenarioSummary: summarize(def),
		NativeTitle:     def.NativeTitle,
		Description:     def.Description,
		StepCaption:     def.Steps,
		Lines:           def.Lines(),
		Initial:         def.InitialValues(),
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.control(w, models.Control{Action: models.ActionSelect, Scenario: r.PathValue("id")})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := models.Action(r.PathValue("action"))
	if action == models.ActionSelect {
		s.writeError(w, http.StatusBadRequest, "use POST /v1/scenarios/{id}/select")
		return
	}
	s.control(w, models.Control{Action: action})
}

func (s *Server) control(w http.ResponseWriter, c models.Control) {
	err := s.ApplyControl(c)
	var valErr *models.ValidationError
	switch {
	case errors.As(err, &valErr):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, scenario.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrNoActive):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.selector.Active().Snapshot())
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	in := s.selector.Active()
	if in == nil {
		s.writeError(w, http.StatusNotFound, ErrNoActive.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, in.Snapshot())
}

type commandView struct {
	catalog.Command
	Learned bool `json:"learned"`
}

func (s *Server) commandViews(cmds []catalog.Command) []commandView {
	out := make([]commandView, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, commandView{Command: c, Learned: s.learned.Has(c.ID)})
	}
	return out
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	cats := r.URL.Query()["category"]
	s.writeJSON(w, http.StatusOK, s.commandViews(s.catalog.Commands(cats...)))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, ok := s.catalog.Command(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown command %q", r.PathValue("id")))
		return
	}
	s.writeJSON(w, http.StatusOK, commandView{Command: cmd, Learned: s.learned.Has(cmd.ID)})
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	questions := s.catalog.Questions(r.URL.Query().Get("category"))
	if questions == nil {
		questions = []catalog.Question{}
	}
	s.writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	type categoryView struct {
		catalog.Category
		Commands int `json:"commands"`
	}
	counts := s.catalog.CountByCategory()
	cats := s.catalog.Categories()
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryView{Category: c, Commands: counts[c.Key]})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTips(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.Tips())
}

func (s *Server) learnedSummary() map[string]any {
	return map[string]any{
		"ids":     s.learned.IDs(),
		"count":   s.learned.Len(),
		"total":   s.catalog.CommandCount(),
		"percent": s.learned.Percent(s.catalog.CommandCount()),
	}
}

func (s *Server) handleLearned(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.learnedSummary())
}

// knownCommand writes a 404 and returns false for ids not in the catalog.
func (s *Server) knownCommand(w http.ResponseWriter, id string) bool {
	if _, ok := s.catalog.Command(id); !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown command %q", id))
		return false
	}
	return true
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.knownCommand(w, id) {
		return
	}
	if err := s.learned.Add(id); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "learned": true})
}

func (s *Server) handleUnlearn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.knownCommand(w, id) {
		return
	}
	if err := s.learned.Remove(id); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "learned": false})
}

func (s *Server) handleToggleLearned(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.knownCommand(w, id) {
		return
	}
	learned, err := s.learned.Toggle(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "learned": learned})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	export := models.NewProgressExport(uuid.New().String(), models.ExportDevice{
		Platform:   runtime.GOOS,
		AppVersion: s.config.Version,
	}, s.learned.IDs())
	w.Header().Set("Content-Disposition", `attachment; filename="fahrprobe-progress.json"`)
	s.writeJSON(w, http.StatusOK, export)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := s.validateHeaders(r); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = r.Header.Get("X-Fahrprobe-Export-Id")
	}
	isDuplicate := s.idempotent.Exists(idempotencyKey)

	body, err := s.readBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	var export models.ProgressExport
	if err := json.Unmarshal(body, &export); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := export.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "schema validation failed: "+err.Error())
		return
	}

	added := 0
	if !isDuplicate {
		added, err = s.learned.Merge(s.catalog.Known(export.Learned))
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to store progress: "+err.Error())
			return
		}
		s.idempotent.Mark(idempotencyKey)
	}

	s.mu.Lock()
	s.stats.TotalImports++
	if isDuplicate {
		s.stats.TotalDuplicates++
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"receipt": models.NewImportReceipt(&export, added, isDuplicate),
	})
}

func (s *Server) validateHeaders(r *http.Request) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return fmt.Errorf("Content-Type must be application/json")
	}

	schema := r.Header.Get("X-Fahrprobe-Schema")
	if schema != "" && schema != models.ExportSchema {
		return fmt.Errorf("unsupported schema version: %s", schema)
	}

	if r.Header.Get("X-Fahrprobe-Export-Id") == "" {
		return fmt.Errorf("X-Fahrprobe-Export-Id header is required")
	}

	return nil
}

func (s *Server) readBody(r *http.Request) ([]byte, error) {
	var reader io.Reader = r.Body

	if s.config.AcceptGzip && r.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	return io.ReadAll(io.LimitReader(reader, maxBody))
}
