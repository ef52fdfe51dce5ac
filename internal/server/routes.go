package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/wirefox/gramhook-server/api"
	errs "github.com/wirefox/gramhook-server/internal/err"
	"github.com/wirefox/gramhook-server/internal/model"
)

// echo route for testing purposes
func echoRoute(w http.ResponseWriter, r *http.Request) {
	// Create a map to hold the request data
	var data map[string]any

	// Decode the request body into the data map
	if r.ContentLength != 0 {
		if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
			if err := render.Decode(r, &data); err != nil {
				api.NewResponse().SetError("bad_request", err.Error()).BadRequest(w)

				return
			}
		} else {
			msg := fmt.Sprintf("Content-Type: %s", r.Header.Get("Content-Type"))

			api.NewResponse().SetError("bad_request", "Content-Type must be application/json", msg).BadRequest(w)

			return
		}
	}

	api.NewResponse().SetData(struct {
		URL     string         `json:"url"`
		Remote  string         `json:"remote"`
		Method  string         `json:"method"`
		Headers http.Header    `json:"headers"`
		Body    map[string]any `json:"body"`
	}{
		URL:     r.URL.String(),
		Remote:  r.RemoteAddr,
		Method:  r.Method,
		Headers: r.Header,
		Body:    data,
	}).Ok(w)
}

// routeRequest is the admin payload for creating or replacing a route.
type routeRequest struct {
	ChatID     int64  `json:"chat_id"`
	TopicID    int64  `json:"topic_id"`
	WebhookURL string `json:"webhook_url"`
	Note       string `json:"note,omitempty"`
}

func (req *routeRequest) validate() error {
	if req.ChatID == 0 {
		return errors.New("chat_id is required")
	}

	if req.TopicID < 0 {
		return errors.New("topic_id must not be negative")
	}

	endpoint, err := url.Parse(strings.TrimSpace(req.WebhookURL))
	if err != nil || endpoint.Host == "" || (endpoint.Scheme != "http" && endpoint.Scheme != "https") {
		return errors.New("webhook_url must be an absolute http(s) URL")
	}

	return nil
}

// listRoutesRoute returns every configured route, ordered by origin.
func (srv *Server) listRoutesRoute(w http.ResponseWriter, _ *http.Request) {
	routes, err := srv.db.Routes()
	if err != nil {
		api.NewResponse().SetError("storage_error", err.Error()).InternalServerError(w)

		return
	}

	api.NewResponse().SetData(map[string]any{
		"routes": routes,
		"count":  len(routes),
	}).Ok(w)
}

// upsertRouteRoute creates a route or replaces the endpoint of the route
// already bound to the same (chat_id, topic_id) pair.
func (srv *Server) upsertRouteRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := render.Decode(r, &req); err != nil {
		api.NewResponse().SetError("bad_request", err.Error()).BadRequest(w)

		return
	}

	if err := req.validate(); err != nil {
		api.NewResponse().SetError("bad_request", err.Error()).BadRequest(w)

		return
	}

	route := &model.Route{
		ChatID:     req.ChatID,
		TopicID:    req.TopicID,
		WebhookURL: strings.TrimSpace(req.WebhookURL),
		Note:       req.Note,
	}

	if err := srv.db.UpsertRoute(route); err != nil {
		api.NewResponse().SetError("storage_error", err.Error()).InternalServerError(w)

		return
	}

	// Re-read so the response carries the authoritative row, including
	// the id of a replaced route.
	stored, err := srv.db.RouteFor(req.ChatID, req.TopicID)
	if err != nil {
		api.NewResponse().SetError("storage_error", err.Error()).InternalServerError(w)

		return
	}

	api.NewResponse().SetData(stored).Ok(w)
}

// deleteRouteRoute removes a route by id.
func (srv *Server) deleteRouteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		api.NewResponse().SetError("bad_request", "route id must be a positive integer").BadRequest(w)

		return
	}

	if err := srv.db.DeleteRoute(id); err != nil {
		if errors.Is(err, errs.ErrorNoRoute) {
			api.NewResponse().SetError("not_found", "route does not exist").NotFound(w)

			return
		}

		api.NewResponse().SetError("storage_error", err.Error()).InternalServerError(w)

		return
	}

	api.NewResponse().SetData(map[string]any{"deleted": id}).Ok(w)
}
