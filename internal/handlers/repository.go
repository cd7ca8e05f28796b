package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/benvon/datarest/internal/database"
	"github.com/benvon/datarest/internal/mapping"
	"github.com/benvon/datarest/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize is the default page size for collection resources
	DefaultPageSize = 20
	// MaxPageSize is the maximum page size for collection resources
	MaxPageSize = 1000
)

// RepositoryHandler serves exported resources as HAL documents backed by an EntityStore.
type RepositoryHandler struct {
	store    database.EntityStore
	mappings *mapping.Mappings
	log      *zap.Logger
}

// NewRepositoryHandler creates a repository handler for the given mappings.
func NewRepositoryHandler(store database.EntityStore, mappings *mapping.Mappings, log *zap.Logger) *RepositoryHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RepositoryHandler{store: store, mappings: mappings, log: log}
}

// Link is a HAL link object.
type Link struct {
	Href string `json:"href"`
}

// PageMetadata describes one page of a collection resource.
type PageMetadata struct {
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
}

// RegisterRoutes registers the root document and, per exported resource, only
// the routes its capabilities support. r must be the router for the base path.
func (h *RepositoryHandler) RegisterRoutes(r *mux.Router) {
	if h.mappings.BasePath() != "" {
		r.HandleFunc("", h.Root).Methods(http.MethodGet, http.MethodHead)
	}
	r.HandleFunc("/", h.Root).Methods(http.MethodGet, http.MethodHead)

	for _, res := range h.mappings.Resources() {
		collection := "/" + res.RoutePath()
		item := collection + "/{id}"
		caps := res.Capabilities

		if caps.FindAll {
			r.HandleFunc(collection, h.withResource(res, h.FindAll)).Methods(http.MethodGet, http.MethodHead)
		}
		if caps.Save {
			r.HandleFunc(collection, h.withResource(res, h.Create)).Methods(http.MethodPost)
			r.HandleFunc(item, h.withResource(res, h.Replace)).Methods(http.MethodPut)
			r.HandleFunc(item, h.withResource(res, h.Patch)).Methods(http.MethodPatch)
		}
		if caps.FindOne {
			r.HandleFunc(item, h.withResource(res, h.FindOne)).Methods(http.MethodGet, http.MethodHead)
		}
		if caps.Delete {
			r.HandleFunc(item, h.withResource(res, h.Delete)).Methods(http.MethodDelete)
		}
		r.HandleFunc(collection, allowHandler(mapping.CollectionMethods(caps))).Methods(http.MethodOptions)
		r.HandleFunc(item, allowHandler(mapping.ItemMethods(caps))).Methods(http.MethodOptions)
	}
}

type resourceHandlerFunc func(w http.ResponseWriter, r *http.Request, res *models.Resource)

func (h *RepositoryHandler) withResource(res *models.Resource, fn resourceHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, res)
	}
}

// allowHandler answers plain OPTIONS requests with the methods a route supports.
func allowHandler(methods []string) http.HandlerFunc {
	allow := strings.Join(methods, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusNoContent)
	}
}

// Root lists the exported collection resources.
func (h *RepositoryHandler) Root(w http.ResponseWriter, r *http.Request) {
	links := map[string]Link{}
	for _, res := range h.mappings.Resources() {
		links[res.Name] = Link{Href: h.collectionHref(res)}
	}
	respondHAL(w, http.StatusOK, map[string]any{"_links": links})
}

// FindAll returns one page of a collection resource.
// Pages are zero-based: ?page=0&size=20.
func (h *RepositoryHandler) FindAll(w http.ResponseWriter, r *http.Request, res *models.Resource) {
	page, size, err := parsePaging(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entities, total, err := h.store.FindAll(r.Context(), res.Name, page, size)
	if err != nil {
		h.log.Error("failed_to_find_entities", zap.String("resource", res.Name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to retrieve entities")
		return
	}

	items := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		doc, err := h.entityDocument(res, e)
		if err != nil {
			h.log.Error("failed_to_render_entity", zap.String("resource", res.Name), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to render entity")
			return
		}
		items = append(items, doc)
	}

	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	self := fmt.Sprintf("%s?page=%d&size=%d", h.collectionHref(res), page, size)
	links := map[string]Link{"self": {Href: self}}
	if page+1 < totalPages {
		links["next"] = Link{Href: fmt.Sprintf("%s?page=%d&size=%d", h.collectionHref(res), page+1, size)}
	}
	if page > 0 {
		links["prev"] = Link{Href: fmt.Sprintf("%s?page=%d&size=%d", h.collectionHref(res), page-1, size)}
	}

	respondHAL(w, http.StatusOK, map[string]any{
		"_embedded": map[string]any{res.Name: items},
		"_links":    links,
		"page": PageMetadata{
			Size:          size,
			TotalElements: total,
			TotalPages:    totalPages,
			Number:        page,
		},
	})
}

// FindOne returns a single entity.
func (h *RepositoryHandler) FindOne(w http.ResponseWriter, r *http.Request, res *models.Resource) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}
	e, err := h.store.FindByID(r.Context(), res.Name, id)
	if err != nil {
		h.respondStoreError(w, res, err, "Failed to retrieve entity")
		return
	}
	h.respondEntity(w, http.StatusOK, res, e)
}

// Create stores a new entity and answers 201 with its location.
func (h *RepositoryHandler) Create(w http.ResponseWriter, r *http.Request, res *models.Resource) {
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}
	e := &models.Entity{Resource: res.Name, Body: body}
	if err := h.store.Save(r.Context(), e); err != nil {
		h.respondStoreError(w, res, err, "Failed to save entity")
		return
	}
	w.Header().Set("Location", h.itemHref(res, e.ID))
	h.respondEntity(w, http.StatusCreated, res, e)
}

// Replace stores the request body under the given id, creating the entity if
// it does not exist yet.
func (h *RepositoryHandler) Replace(w http.ResponseWriter, r *http.Request, res *models.Resource) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}

	status := http.StatusOK
	if _, err := h.store.FindByID(r.Context(), res.Name, id); errors.Is(err, database.ErrNotFound) {
		status = http.StatusCreated
	} else if err != nil {
		h.respondStoreError(w, res, err, "Failed to retrieve entity")
		return
	}

	e := &models.Entity{ID: id, Resource: res.Name, Body: body}
	if err := h.store.Save(r.Context(), e); err != nil {
		h.respondStoreError(w, res, err, "Failed to save entity")
		return
	}
	if status == http.StatusCreated {
		w.Header().Set("Location", h.itemHref(res, e.ID))
	}
	h.respondEntity(w, status, res, e)
}

// Patch merges the request body into an existing entity (JSON merge patch).
func (h *RepositoryHandler) Patch(w http.ResponseWriter, r *http.Request, res *models.Resource) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}
	patch, ok := decodeObject(w, r)
	if !ok {
		return
	}

	e, err := h.store.FindByID(r.Context(), res.Name, id)
	if err != nil {
		h.respondStoreError(w, res, err, "Failed to retrieve entity")
		return
	}
	merged, err := mergePatch(e.Body, patch)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	e.Body = merged
	if err := h.store.Save(r.Context(), e); err != nil {
		h.respondStoreError(w, res, err, "Failed to save entity")
		return
	}
	h.respondEntity(w, http.StatusOK, res, e)
}

// Delete removes an entity.
func (h *RepositoryHandler) Delete(w http.ResponseWriter, r *http.Request, res *models.Resource) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), res.Name, id); err != nil {
		h.respondStoreError(w, res, err, "Failed to delete entity")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RepositoryHandler) respondEntity(w http.ResponseWriter, status int, res *models.Resource, e *models.Entity) {
	doc, err := h.entityDocument(res, e)
	if err != nil {
		h.log.Error("failed_to_render_entity", zap.String("resource", res.Name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to render entity")
		return
	}
	respondHAL(w, status, doc)
}

func (h *RepositoryHandler) respondStoreError(w http.ResponseWriter, res *models.Resource, err error, message string) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Entity not found")
		return
	}
	h.log.Error("entity_store_error", zap.String("resource", res.Name), zap.Error(err))
	respondError(w, http.StatusInternalServerError, message)
}

// entityDocument renders e as its body object with a self link added.
func (h *RepositoryHandler) entityDocument(res *models.Resource, e *models.Entity) (map[string]any, error) {
	doc := map[string]any{}
	if len(e.Body) > 0 {
		if err := decodeJSON(e.Body, &doc); err != nil {
			return nil, fmt.Errorf("decode entity %s: %w", e.ID, err)
		}
	}
	self := Link{Href: h.itemHref(res, e.ID)}
	doc["_links"] = map[string]Link{"self": self, res.Name: self}
	return doc, nil
}

func (h *RepositoryHandler) collectionHref(res *models.Resource) string {
	return h.mappings.BasePath() + "/" + res.RoutePath()
}

func (h *RepositoryHandler) itemHref(res *models.Resource, id uuid.UUID) string {
	return h.collectionHref(res) + "/" + id.String()
}

// entityID parses the {id} path variable. Malformed ids cannot exist, so they are reported as 404.
func entityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Entity not found")
		return uuid.Nil, false
	}
	return id, true
}

// decodeObject reads a JSON object request body. HAL links in the body are dropped.
func decodeObject(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "Request body must be a JSON object")
		return nil, false
	}
	if obj == nil {
		respondError(w, http.StatusBadRequest, "Request body must be a JSON object")
		return nil, false
	}
	delete(obj, "_links")
	delete(obj, "_embedded")
	body, err := json.Marshal(obj)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return body, true
}

// mergePatch applies patch to target following RFC 7386: null removes a
// member, objects merge recursively, anything else replaces.
func mergePatch(target, patch json.RawMessage) (json.RawMessage, error) {
	var t, p map[string]any
	if len(target) > 0 {
		if err := decodeJSON(target, &t); err != nil {
			return nil, fmt.Errorf("stored entity is not a JSON object")
		}
	}
	if err := decodeJSON(patch, &p); err != nil {
		return nil, fmt.Errorf("patch must be a JSON object")
	}
	out, err := json.Marshal(mergeObject(t, p))
	if err != nil {
		return nil, fmt.Errorf("encode merged entity: %w", err)
	}
	return out, nil
}

// decodeJSON unmarshals data keeping numbers as json.Number, so integers
// beyond float64 precision survive a decode and re-encode.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func mergeObject(target, patch map[string]any) map[string]any {
	if target == nil {
		target = map[string]any{}
	}
	for k, v := range patch {
		if v == nil {
			delete(target, k)
			continue
		}
		if po, ok := v.(map[string]any); ok {
			to, _ := target[k].(map[string]any)
			target[k] = mergeObject(to, po)
			continue
		}
		target[k] = v
	}
	return target
}

func parsePaging(r *http.Request) (page, size int, err error) {
	size = DefaultPageSize
	q := r.URL.Query()
	if p := q.Get("page"); p != "" {
		page, err = strconv.Atoi(p)
		if err != nil || page < 0 {
			return 0, 0, fmt.Errorf("page must be a non-negative integer")
		}
	}
	if s := q.Get("size"); s != "" {
		size, err = strconv.Atoi(s)
		if err != nil || size < 1 {
			return 0, 0, fmt.Errorf("size must be a positive integer")
		}
		if size > MaxPageSize {
			size = MaxPageSize
		}
	}
	return page, size, nil
}
