// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package api is the read-only HTTP query boundary over the world graph.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/oklog/ulid/v2"

	"github.com/azimuth-mud/azimuth/internal/world"
)

// ObjectResponse is the serialized state of one object. Verb bodies and
// password hashes are never exposed.
type ObjectResponse struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Aliases    []string               `json:"aliases"`
	Parents    []string               `json:"parents"`
	Owner      string                 `json:"owner"`
	Location   string                 `json:"location,omitempty"`
	Player     bool                   `json:"player"`
	Level      string                 `json:"level,omitempty"`
	Properties map[string]world.Value `json:"properties"`
	Verbs      []string               `json:"verbs"`
	Contents   []string               `json:"contents"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error      string   `json:"error"`
	Candidates []string `json:"candidates,omitempty"`
}

// Handler serves the query endpoints.
type Handler struct {
	graph *world.Graph
}

// NewHandler creates a query handler over graph.
func NewHandler(graph *world.Graph) *Handler {
	return &Handler{graph: graph}
}

// Register mounts the query routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /data/{id}", h.handleData)
	mux.HandleFunc("GET /search/{name}", h.handleSearch)
}

// handleData returns one object by full id or unambiguous id prefix.
func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("id")
	var (
		resp    *ObjectResponse
		matches []ulid.ULID
	)
	_ = h.graph.View(func(v *world.View) error {
		matches = v.FindByPrefix(ref)
		if len(matches) == 1 {
			resp = objectResponse(v, matches[0])
		}
		return nil
	})

	switch {
	case len(matches) == 0 || resp == nil:
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no object matches " + ref})
	case len(matches) > 1:
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:      "identifier " + ref + " is ambiguous",
			Candidates: idStrings(matches),
		})
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleSearch returns ids of objects whose name or alias contains the
// search text, exact matches first.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var ids []ulid.ULID
	_ = h.graph.View(func(v *world.View) error {
		ids = v.Search(r.PathValue("name"))
		return nil
	})
	writeJSON(w, http.StatusOK, idStrings(ids))
}

func objectResponse(v *world.View, id ulid.ULID) *ObjectResponse {
	obj, err := v.Get(id)
	if err != nil {
		return nil
	}
	resp := &ObjectResponse{
		ID:         obj.ID.String(),
		Name:       obj.Name,
		Aliases:    append([]string{}, obj.Aliases...),
		Parents:    idStrings(obj.Parents),
		Owner:      obj.Owner.String(),
		Player:     obj.Player,
		Properties: obj.Properties,
		Verbs:      make([]string, 0, len(obj.Verbs)),
		Contents:   idStrings(v.Contents(id)),
	}
	if resp.Properties == nil {
		resp.Properties = map[string]world.Value{}
	}
	if obj.HasLocation() {
		resp.Location = obj.Location.String()
	}
	if obj.Player {
		resp.Level = obj.Level.String()
	}
	for _, verb := range obj.Verbs {
		resp.Verbs = append(resp.Verbs, verb.Name)
	}
	slices.Sort(resp.Verbs)
	return resp
}

func idStrings(ids []ulid.ULID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		slog.Debug("failed to write response", "status", status, "error", err)
	}
}
