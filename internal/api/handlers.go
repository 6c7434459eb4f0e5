package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pdf2epub/internal/doctree"
	"github.com/dgallion1/pdf2epub/internal/markdown"
	"github.com/dgallion1/pdf2epub/internal/render"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	loaded := s.loadedAt
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "loaded_at": loaded})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.document())
}

// ChapterInfo lists a chapter in reading order.
type ChapterInfo struct {
	Index    int             `json:"index"`
	Section  doctree.Section `json:"section"`
	Title    string          `json:"title"`
	Elements int             `json:"elements"`
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	spine := s.document().Spine()
	out := make([]ChapterInfo, len(spine))
	for i, sc := range spine {
		out[i] = ChapterInfo{Index: sc.Index, Section: sc.Section, Title: sc.Title, Elements: len(sc.Elements)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	spine := s.document().Spine()
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 || idx >= len(spine) {
		jsonError(w, "chapter not found", http.StatusNotFound)
		return
	}

	body, err := s.renderer.RenderChapter(spine[idx].Chapter)
	if err != nil {
		s.log.Error().Err(err).Int("index", idx).Msg("render chapter")
		jsonError(w, "render failed", http.StatusInternalServerError)
		return
	}
	if strings.TrimSpace(body) == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/xhtml+xml; charset=utf-8")
	w.Write([]byte(body))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	doc := s.document()
	title := doc.Metadata.Title
	if title == "" {
		title = render.DefaultTitle
	}
	page, err := markdown.ToHTML(title, s.renderer.CSS(), markdown.Bytes(doc))
	if err != nil {
		s.log.Error().Err(err).Msg("render preview")
		jsonError(w, "preview failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"window": StatsWindow.String(),
		"routes": s.stats.Snapshot(),
	})
}
