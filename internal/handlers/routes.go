package handlers

import "net/http"

// Route binds a ServeMux pattern to a handler. Public routes skip auth.
type Route struct {
	Pattern string
	Handler http.HandlerFunc
	Public  bool
}

// Routes lists every endpoint served by h.
func (h *Handler) Routes() []Route {
	return []Route{
		{Pattern: "GET /healthz", Handler: h.Health, Public: true},
		{Pattern: "GET /openapi.yaml", Handler: OpenAPISpec, Public: true},
		{Pattern: "GET /docs", Handler: Docs, Public: true},
		{Pattern: "GET /api/v1/devices/health", Handler: h.Ping, Public: true},

		{Pattern: "POST /api/v1/devices", Handler: h.CreateDevice},
		{Pattern: "GET /api/v1/devices", Handler: h.ListDevices},
		{Pattern: "GET /api/v1/devices/{id}", Handler: h.GetDevice},
		{Pattern: "GET /api/v1/devices/brand/{brand}", Handler: h.ListDevicesByBrand},
		{Pattern: "GET /api/v1/devices/state/{state}", Handler: h.ListDevicesByState},
		{Pattern: "PUT /api/v1/devices/{id}", Handler: h.UpdateDevice},
		{Pattern: "PATCH /api/v1/devices/{id}", Handler: h.PatchDevice},
		{Pattern: "DELETE /api/v1/devices/{id}", Handler: h.DeleteDevice},
	}
}

// Mount registers every route on mux, wrapping non-public ones with protect.
// wrap, when non-nil, is applied to every route with its pattern.
func (h *Handler) Mount(mux *http.ServeMux, protect func(http.Handler) http.Handler, wrap func(pattern string, next http.Handler) http.Handler) {
	for _, rt := range h.Routes() {
		var next http.Handler = rt.Handler
		if !rt.Public {
			next = protect(next)
		}
		if wrap != nil {
			next = wrap(rt.Pattern, next)
		}
		mux.Handle(rt.Pattern, next)
	}
}
