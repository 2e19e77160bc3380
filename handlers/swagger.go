package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves a Swagger UI page and the OpenAPI document for the
// conversion API.
//   - GET /swagger/index.html -> HTML page that loads the OpenAPI JSON
//   - GET /swagger/doc.json   -> machine-readable OpenAPI JSON
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
    <title>filconv API</title>
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

// OpenAPI document for the public routes.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "filconv", "version": "v1.0.0" },
  "paths": {
    "/upload-convert": {
      "post": {
        "summary": "Convert an uploaded file and return it as an attachment",
        "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"file":{"type":"string","format":"binary"},"outputFormat":{"type":"string"}}}}}},
        "responses": { "200": { "description": "converted file" }, "400": { "description": "missing file or format" }, "500": { "description": "conversion failed" } }
      }
    },
    "/api/convert": {
      "post": {
        "summary": "Convert and return a single-use download URL",
        "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"file":{"type":"string","format":"binary"},"outputFormat":{"type":"string"}}}}}},
        "responses": { "200": { "description": "downloadUrl and originalFileName" }, "400": { "description": "no file" }, "500": { "description": "conversion failed" } }
      }
    },
    "/merge-files": {
      "post": {
        "summary": "Merge two or more PDFs in upload order",
        "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"filesToMerge":{"type":"array","items":{"type":"string","format":"binary"}},"outputFormat":{"type":"string"}}}}}},
        "responses": { "200": { "description": "downloadUrl and fileName" }, "400": { "description": "fewer than two files or not PDF" } }
      }
    },
    "/api/compress": {
      "post": { "summary": "Compress a PDF", "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"fileToCompress":{"type":"string","format":"binary"}}}}}}, "responses": { "200": { "description": "downloadUrl, sizes" }, "400": { "description": "not a PDF" } } }
    },
    "/api/split": {
      "post": { "summary": "Split a PDF into a zip of parts", "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"fileToSplit":{"type":"string","format":"binary"},"splitMethod":{"type":"string","example":"every:2"}}}}}}, "responses": { "200": { "description": "downloadUrl, parts" }, "400": { "description": "not a PDF or bad method" } } }
    },
    "/split-pdf": {
      "post": { "summary": "Alias of /api/split", "responses": { "200": { "description": "downloadUrl, parts" } } }
    },
    "/upload-for-edit": {
      "post": { "summary": "Upload a PDF for the editor", "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"pdfFile":{"type":"string","format":"binary"}}}}}}, "responses": { "200": { "description": "fileId" }, "400": { "description": "not a PDF" }, "413": { "description": "larger than 50 MiB" } } }
    },
    "/download-pdf-for-edit/{fileId}": {
      "get": { "summary": "Fetch an editor file", "parameters": [{"name":"fileId","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "PDF" }, "404": { "description": "not found" } } }
    },
    "/downloads/{filename}": {
      "get": { "summary": "Single-use download of a converted or merged file", "parameters": [{"name":"filename","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "file" }, "404": { "description": "not found" } } }
    },
    "/download/compressed/{filename}": {
      "get": { "summary": "Single-use download of a compressed PDF", "parameters": [{"name":"filename","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "file" }, "404": { "description": "not found" } } }
    },
    "/download/split/{filename}": {
      "get": { "summary": "Single-use download of a split archive", "parameters": [{"name":"filename","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "zip" }, "404": { "description": "not found" } } }
    },
    "/signup": {
      "post": { "summary": "Create an account", "requestBody": { "content": { "application/x-www-form-urlencoded": { "schema": {"type":"object","properties":{"username":{"type":"string"},"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "303": { "description": "redirect to register-success.html" }, "500": { "description": "signup failed" } } }
    },
    "/login": {
      "post": { "summary": "Log in and receive session cookies", "requestBody": { "content": { "application/x-www-form-urlencoded": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "303": { "description": "redirect to index.html" }, "401": { "description": "unknown user or wrong password" } } }
    },
    "/refresh": {
      "post": { "summary": "Refresh the access token", "responses": { "200": { "description": "new access token" }, "401": { "description": "invalid refresh" } } }
    },
    "/logout": {
      "post": { "summary": "Revoke the access token and end the session", "responses": { "200": { "description": "logged out" } } }
    },
    "/api/me": {
      "get": { "summary": "Current user", "responses": { "200": { "description": "user" }, "401": { "description": "no valid token" } } }
    },
    "/api/history": {
      "get": { "summary": "Recent operations of the current user", "responses": { "200": { "description": "entries" } } }
    },
    "/api/history/{id}": {
      "get": { "summary": "One operation of the current user", "responses": { "200": { "description": "entry" }, "404": { "description": "not found or not yours" } } }
    },
    "/boot-id": { "get": { "summary": "Process boot id", "responses": { "200": { "description": "bootId" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
