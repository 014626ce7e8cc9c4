package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.String(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>prepwise-auth — Swagger</title>
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

// Minimal OpenAPI document describing the auth and profile endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "prepwise-auth", "version": "v0.1.0" },
  "paths": {
    "/api/auth/signup": {
      "post": {
        "summary": "Register a new user",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"name":{"type":"string"},"email":{"type":"string"},"password":{"type":"string"},"confirmPassword":{"type":"string"}}}}}},
        "responses": { "201": { "description": "user, accessToken and refreshToken returned" }, "400": { "description": "validation failure" } }
      }
    },
    "/api/auth/signin": {
      "post": {
        "summary": "Sign in with email and password",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "user, accessToken and refreshToken returned" }, "401": { "description": "invalid email or password" } }
      }
    },
    "/api/auth/refresh": {
      "post": { "summary": "Exchange a refresh token for a new token pair", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "new token pair; the old refresh token is consumed" }, "401": { "description": "invalid or expired refresh token" } } }
    },
    "/api/auth/signout": {
      "post": { "summary": "Sign out and invalidate the refresh session", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "signed out (idempotent)" } } }
    },
    "/api/auth/google/mobile": {
      "post": { "summary": "Authenticate with a Google ID token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"idToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "user, accessToken and refreshToken returned" }, "401": { "description": "assertion rejected" } } }
    },
    "/api/auth/profile": {
      "get": { "summary": "Get the authenticated user's profile", "responses": { "200": { "description": "user profile" }, "401": { "description": "unauthorized" } } }
    },
    "/api/auth/verify": {
      "get": { "summary": "Verify the presented access token", "responses": { "200": { "description": "token is valid" }, "401": { "description": "unauthorized" } } }
    },
    "/api/user/profile": {
      "put": { "summary": "Update the display name", "responses": { "200": { "description": "updated profile" } } },
      "delete": { "summary": "Delete the account and all its sessions", "responses": { "200": { "description": "account deleted" } } }
    },
    "/api/user/avatar": {
      "post": { "summary": "Upload an avatar image (multipart field 'avatar')", "responses": { "200": { "description": "stored; profile returned with avatarUrl" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
