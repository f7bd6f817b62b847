package httpapi

import (
	"net/http"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/httpjson"
)

// handleOpenAPI décrit l'API JSON (session, catalogue, ops).
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, openAPIDocument())
}

func openAPIDocument() map[string]any {
	ref := func(name string) map[string]any {
		return map[string]any{"$ref": "#/components/schemas/" + name}
	}
	jsonBody := func(description, schema string) map[string]any {
		return map[string]any{
			"description": description,
			"content": map[string]any{
				"application/json": map[string]any{"schema": ref(schema)},
			},
		}
	}
	jsonErr := jsonBody("Error", "Error")
	pageParam := func(name string, required bool) map[string]any {
		return map[string]any{
			"name":     name,
			"in":       "query",
			"required": required,
			"schema":   map[string]any{"type": "integer", "minimum": 1},
		}
	}
	str := map[string]any{"type": "string"}
	integer := map[string]any{"type": "integer"}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "Anime Catalog API",
			"version": "v1",
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"OpenAPIDocument": map[string]any{"type": "object", "additionalProperties": true},
				"Error": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error":  str,
						"code":   str,
						"fields": map[string]any{"type": "object", "additionalProperties": str},
					},
					"required": []any{"error"},
				},
				"UserProfile": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"displayName": map[string]any{"type": "string", "minLength": 2},
						"roleLabel":   map[string]any{"type": "string", "minLength": 2},
					},
					"required":             []any{"displayName", "roleLabel"},
					"additionalProperties": false,
				},
				"Session": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"authenticated": map[string]any{"type": "boolean"},
						"profile":       ref("UserProfile"),
					},
					"required": []any{"authenticated"},
				},
				"CatalogItem": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id": integer,
						"title": map[string]any{
							"type":       "object",
							"properties": map[string]any{"romaji": str, "english": str, "native": str},
						},
						"description": str,
						"coverImage": map[string]any{
							"type":       "object",
							"properties": map[string]any{"large": str, "medium": str},
						},
						"bannerImage":  str,
						"genres":       map[string]any{"type": "array", "items": str},
						"format":       str,
						"status":       str,
						"episodes":     integer,
						"duration":     integer,
						"seasonYear":   integer,
						"averageScore": integer,
						"popularity":   integer,
						"studios":      map[string]any{"type": "array", "items": str},
					},
					"required": []any{"id", "title"},
				},
				"PageInfo": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"total":       integer,
						"currentPage": integer,
						"lastPage":    integer,
						"hasNextPage": map[string]any{"type": "boolean"},
						"perPage":     integer,
					},
				},
				"CatalogPage": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"items":    map[string]any{"type": "array", "items": ref("CatalogItem")},
						"pageInfo": ref("PageInfo"),
						"stale":    map[string]any{"type": "boolean"},
					},
				},
				"PageLink": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"page":     integer,
						"ellipsis": map[string]any{"type": "boolean"},
						"current":  map[string]any{"type": "boolean"},
					},
				},
				"PageWindow": map[string]any{"type": "array", "items": ref("PageLink")},
				"PageState": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"status":    map[string]any{"type": "string", "enum": []any{"idle", "loading", "loaded", "loaded_stale", "failed"}},
						"page":      integer,
						"data":      ref("CatalogPage"),
						"previous":  ref("CatalogPage"),
						"error":     str,
						"errorCode": map[string]any{"type": "string", "enum": []any{"network_error", "http_status", "graphql_error", "decode_error"}},
						"window":    ref("PageWindow"),
						"version":   integer,
					},
					"required": []any{"status", "page", "version"},
				},
				"NavigateRequest": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action": map[string]any{"type": "string", "enum": []any{"prev", "next", "jump"}},
						"target": integer,
					},
					"required": []any{"action"},
				},
				"NavigateResponse": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"page":  integer,
						"url":   str,
						"moved": map[string]any{"type": "boolean"},
					},
				},
			},
		},
		"paths": map[string]any{
			"/api/v1/health": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": map[string]any{"description": "OK"}}},
			},
			"/api/v1/version": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": map[string]any{"description": "OK"}}},
			},
			"/api/v1/openapi.json": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": jsonBody("OK", "OpenAPIDocument")}},
			},
			"/api/v1/events": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": map[string]any{"description": "SSE (event: catalog.state)"}}},
			},
			"/api/v1/session": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": jsonBody("OK", "Session")}},
				"put": map[string]any{
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{"schema": ref("UserProfile")},
						},
					},
					"responses": map[string]any{
						"200": jsonBody("OK", "Session"),
						"400": jsonErr,
						"500": jsonErr,
					},
				},
				"delete": map[string]any{"responses": map[string]any{"204": map[string]any{"description": "Cleared"}, "500": jsonErr}},
			},
			"/api/v1/catalog": map[string]any{
				"get": map[string]any{
					"parameters": []any{pageParam("page", false)},
					"responses": map[string]any{
						"200": jsonBody("Loaded (possibly stale)", "PageState"),
						"202": jsonBody("Still loading", "PageState"),
						"401": jsonErr,
						"502": jsonBody("Fetch failed", "PageState"),
					},
				},
			},
			"/api/v1/catalog/state": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": jsonBody("OK", "PageState"), "401": jsonErr}},
			},
			"/api/v1/catalog/items/{id}": map[string]any{
				"get": map[string]any{
					"parameters": []any{map[string]any{"name": "id", "in": "path", "required": true, "schema": integer}},
					"responses": map[string]any{
						"200": jsonBody("OK", "CatalogItem"),
						"401": jsonErr,
						"404": jsonErr,
					},
				},
			},
			"/api/v1/catalog/navigate": map[string]any{
				"post": map[string]any{
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{"schema": ref("NavigateRequest")},
						},
					},
					"responses": map[string]any{
						"200": jsonBody("Target page", "NavigateResponse"),
						"400": jsonErr,
						"401": jsonErr,
					},
				},
			},
			"/api/v1/catalog/retry": map[string]any{
				"post": map[string]any{
					"responses": map[string]any{
						"200": jsonBody("OK", "PageState"),
						"202": jsonBody("Still loading", "PageState"),
						"401": jsonErr,
						"409": jsonErr,
						"502": jsonBody("Fetch failed", "PageState"),
					},
				},
			},
			"/api/v1/catalog/window": map[string]any{
				"get": map[string]any{
					"parameters": []any{
						pageParam("current", false),
						pageParam("last", true),
						pageParam("max", false),
					},
					"responses": map[string]any{"200": jsonBody("OK", "PageWindow"), "400": jsonErr},
				},
			},
		},
	}
}
