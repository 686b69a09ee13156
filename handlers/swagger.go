package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the todo API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>todomini - Swagger</title>
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
  "info": { "title": "todomini", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Poll": {
        "type": "object",
        "properties": {
          "timestamp": { "type": "number", "description": "epoch seconds" },
          "files": { "type": "object", "additionalProperties": { "type": "string" } },
          "modifiedTimestamps": { "type": "object", "additionalProperties": { "type": "number" } },
          "creation_timestamps": { "type": "object", "additionalProperties": { "type": "number" }, "deprecated": true }
        },
        "required": ["timestamp"]
      },
      "Write": {
        "type": "object",
        "properties": { "filename": { "type": "string" }, "content": { "type": "string" }, "delete": { "type": "string" } }
      }
    }
  },
  "paths": {
    "/{folder}": {
      "parameters": [ { "name": "folder", "in": "path", "required": true, "schema": { "type": "string" } } ],
      "get": {
        "summary": "Long-poll a folder for changes",
        "parameters": [
          { "name": "since", "in": "query", "schema": { "type": "number" }, "description": "alias: timestamp" },
          { "name": "maxWait", "in": "query", "schema": { "type": "integer", "minimum": 0, "maximum": 25 }, "description": "alias: live_for" },
          { "name": "delete", "in": "query", "schema": { "type": "string" }, "description": "legacy delete" }
        ],
        "responses": { "200": { "description": "poll result", "content": { "application/json": { "schema": { "$ref": "#/components/schemas/Poll" } } } } }
      },
      "post": {
        "summary": "Upsert (filename + content) or delete (delete) a todo file",
        "requestBody": { "content": {
          "application/json": { "schema": { "$ref": "#/components/schemas/Write" } },
          "application/x-www-form-urlencoded": { "schema": { "$ref": "#/components/schemas/Write" } }
        } },
        "responses": {
          "200": { "description": "epoch seconds, or null when the filename was rejected" },
          "404": { "description": "neither filename+content nor delete supplied" }
        }
      }
    },
    "/api/v1/folders/{folder}/documents": {
      "get": {
        "summary": "List a folder's documents with created/modified times",
        "parameters": [ { "name": "folder", "in": "path", "required": true, "schema": { "type": "string" } } ],
        "responses": { "200": { "description": "folder listing" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "exposition format" } } } }
  },
  "security": [ { "bearer": [] } ]
}`
