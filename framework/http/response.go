package http

import (
	"encoding/json"
	"net/http"
)

// Response wraps http.ResponseWriter with JSON envelope helpers. Every
// body it writes is JSON.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// JSON sends a JSON response.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, Envelope{"data": v})
}

// Created sends 201 JSON: {"data": v} with an optional Location header.
func (res *Response) Created(v any, location ...string) {
	if len(location) > 0 && location[0] != "" {
		res.w.Header().Set("Location", location[0])
	}
	res.JSON(http.StatusCreated, Envelope{"data": v})
}

// NoContent sends 204 with no body.
func (res *Response) NoContent() {
	res.w.WriteHeader(http.StatusNoContent)
}

// Error sends {"message": message} with status.
func (res *Response) Error(status int, message string) {
	res.JSON(status, Envelope{"message": message})
}

// Unauthorized sends 401 with a bearer challenge.
func (res *Response) Unauthorized(message ...string) {
	res.w.Header().Set("WWW-Authenticate", `Bearer`)
	res.JSON(http.StatusUnauthorized, Envelope{"message": first(message, "Unauthenticated.")})
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	res.JSON(http.StatusNotFound, Envelope{"message": first(message, "Not found.")})
}

// ServerError sends 500. The default message reveals nothing about the
// failure.
func (res *Response) ServerError(message ...string) {
	res.JSON(http.StatusInternalServerError, Envelope{"message": first(message, "Server Error.")})
}

// Envelope is a JSON object body.
type Envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
