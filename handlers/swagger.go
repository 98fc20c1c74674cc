package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(r *gin.Engine) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>dflow-api - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "dflow-api", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } },
    "schemas": {
      "ModelFile": { "type": "object", "properties": { "model_file": { "type": "string", "format": "binary" } } }
    },
    "parameters": {
      "fenc": { "name": "fenc", "in": "query", "required": true, "schema": { "type": "string", "format": "byte" } },
      "username": { "name": "username", "in": "path", "required": true, "schema": { "type": "string", "minLength": 3, "pattern": "^[a-zA-Z0-9_-]+$" } },
      "id": { "name": "id", "in": "path", "required": true, "schema": { "type": "string" } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/user": {
      "post": { "summary": "Register a new user", "security": [], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"new_user":{"type":"object","properties":{"username":{"type":"string"},"email":{"type":"string"},"password":{"type":"string"}}}}}}}}, "responses": { "201": { "description": "user created" }, "400": { "description": "username or email taken" }, "422": { "description": "invalid input" } } }
    },
    "/user/login": {
      "post": { "summary": "Password login", "security": [], "requestBody": { "content": { "application/x-www-form-urlencoded": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "access and refresh tokens" }, "401": { "description": "authentication failed" } } }
    },
    "/user/refresh": {
      "post": { "summary": "Refresh access token", "security": [], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "new access token" }, "401": { "description": "invalid refresh" } } }
    },
    "/user/logout": {
      "post": { "summary": "Revoke refresh token and current access token", "responses": { "200": { "description": "logged out" } } }
    },
    "/user/me": { "get": { "summary": "Current user", "responses": { "200": { "description": "user" } } } },
    "/user/{username}": { "get": { "summary": "User by name", "parameters": [ { "$ref": "#/components/parameters/username" } ], "responses": { "200": { "description": "user" }, "400": { "description": "User does not exist" } } } },
    "/user/{username}/profile": { "get": { "summary": "User profile", "parameters": [ { "$ref": "#/components/parameters/username" } ], "responses": { "200": { "description": "profile" }, "400": { "description": "User profile does not exist" } } } },
    "/validation/file": { "post": { "summary": "Validate an uploaded model", "requestBody": { "content": { "multipart/form-data": { "schema": { "$ref": "#/components/schemas/ModelFile" } } } }, "responses": { "200": { "description": "{status, message}" } } } },
    "/validation/b64": { "post": { "summary": "Validate a base64 model", "parameters": [ { "$ref": "#/components/parameters/fenc" } ], "responses": { "200": { "description": "{status, message}" } } } },
    "/codegen/file": { "post": { "summary": "Generate code from an uploaded model", "requestBody": { "content": { "multipart/form-data": { "schema": { "$ref": "#/components/schemas/ModelFile" } } } }, "responses": { "200": { "description": "tar.gz", "content": { "application/x-tar": {} } }, "400": { "description": "generation failed" } } } },
    "/codegen/b64": { "post": { "summary": "Generate code from a base64 model", "parameters": [ { "$ref": "#/components/parameters/fenc" } ], "responses": { "200": { "description": "tar.gz", "content": { "application/x-tar": {} } }, "400": { "description": "generation failed" } } } },
    "/codegen/jobs": { "get": { "summary": "Codegen jobs of the current user", "responses": { "200": { "description": "jobs" } } } },
    "/codegen/jobs/{id}": { "get": { "summary": "Codegen job with download URL", "parameters": [ { "$ref": "#/components/parameters/id" } ], "responses": { "200": { "description": "job" }, "404": { "description": "unknown job" } } } },
    "/model": { "post": { "summary": "Store an uploaded model", "requestBody": { "content": { "multipart/form-data": { "schema": { "$ref": "#/components/schemas/ModelFile" } } } }, "responses": { "200": { "description": "stored model" } } } },
    "/model/b64": { "post": { "summary": "Store a base64 model", "parameters": [ { "$ref": "#/components/parameters/fenc" } ], "responses": { "200": { "description": "stored model" } } } },
    "/model/{id}": {
      "get": { "summary": "Model by id", "parameters": [ { "$ref": "#/components/parameters/id" } ], "responses": { "200": { "description": "model" }, "400": { "description": "Model does not exist" } } },
      "delete": { "summary": "Delete own model", "parameters": [ { "$ref": "#/components/parameters/id" } ], "responses": { "200": { "description": "deleted" }, "403": { "description": "not the owner" } } }
    },
    "/model/{id}/file": { "get": { "summary": "Model download", "parameters": [ { "$ref": "#/components/parameters/id" } ], "responses": { "200": { "description": ".dflow file" } } } },
    "/user/{username}/model/last": { "get": { "summary": "Latest model of a user", "parameters": [ { "$ref": "#/components/parameters/username" } ], "responses": { "200": { "description": "model" }, "400": { "description": "Model does not exist" } } } },
    "/user/{username}/model/last/file": { "get": { "summary": "Latest model download", "parameters": [ { "$ref": "#/components/parameters/username" } ], "responses": { "200": { "description": ".dflow file" } } } },
    "/user/{username}/models": { "get": { "summary": "All models of a user, newest first", "parameters": [ { "$ref": "#/components/parameters/username" } ], "responses": { "200": { "description": "models" } } } },
    "/merge": { "get": { "summary": "Merge the latest model of every user", "responses": { "200": { "description": "merged .dflow file" }, "400": { "description": "Model storage is empty!" }, "422": { "description": "a model could not be merged" } } } },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
