package rest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type endpoint struct {
	apiVersion  string
	middlewares []echo.MiddlewareFunc
	groups      []*apiGroup
}

type apiGroup struct {
	prefix      string
	middlewares []echo.MiddlewareFunc
	routes      []*route
}

type route struct {
	method      string
	path        string
	handler     echo.HandlerFunc
	middlewares []echo.MiddlewareFunc
}

// routeMethods methods a route table may use
var routeMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
	http.MethodHead:   true,
}

// createEndpoint mount every group of def under its API version. It panics on an unknown method
// or on a method and path registered twice, both are mistakes in the route table.
func createEndpoint(app *echo.Echo, def *endpoint) {
	version := def.apiVersion
	if !strings.HasPrefix(version, "/") {
		version = "/" + version
	}
	root := app.Group(version, def.middlewares...)

	seen := make(map[string]bool)
	for _, group := range def.groups {
		echoGroup := root.Group(group.prefix, group.middlewares...)
		for _, api := range group.routes {
			if !routeMethods[api.method] {
				panic(fmt.Errorf("createEndpoint: unknown method %s", api.method))
			}
			key := api.method + " " + version + group.prefix + api.path
			if seen[key] {
				panic(fmt.Errorf("createEndpoint: duplicate route %s", key))
			}
			seen[key] = true
			echoGroup.Add(api.method, api.path, api.handler, api.middlewares...)
		}
	}
}
