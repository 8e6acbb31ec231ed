// Package testutil provides a mock management API for client and provider tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock management API.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requests          map[string]int
	lastRequestHeader http.Header
}

// NewMockAPI starts a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests[r.URL.Path]++
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		WriteError(w, http.StatusNotFound, "NotFound", "no such endpoint: "+r.URL.Path)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all request counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence answers the requests to path with resps in order; the last
// response repeats once the sequence is exhausted.
func (m *MockAPI) SetSequence(path string, resps ...MockResponse) {
	var (
		mu sync.Mutex
		i  int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[min(i, len(resps)-1)]
		i++
		mu.Unlock()
		writeResponse(w, resp)
	})
}

// SetPages serves a paginated listing at path. Each page is a JSON object
// holding its items under attribute, and every page announces the total in
// the X-Pages header.
func (m *MockAPI) SetPages(path, attribute string, pages [][]map[string]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if v := r.URL.Query().Get("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "InvalidParameter", "bad page "+v)
				return
			}
			page = n
		}
		if page < 1 || page > len(pages) {
			WriteError(w, http.StatusBadRequest, "InvalidParameter", fmt.Sprintf("page %d out of range", page))
			return
		}

		w.Header().Set("X-Pages", strconv.Itoa(len(pages)))
		WriteJSON(w, http.StatusOK, map[string]any{attribute: pages[page-1]})
	})
}

// SetThrottled rejects the first n requests to path with a Throttling error
// envelope and then answers with resp.
func (m *MockAPI) SetThrottled(path string, n int, resp MockResponse) {
	resps := make([]MockResponse, 0, n+1)
	for i := 0; i < n; i++ {
		resps = append(resps, NewThrottleResponse())
	}
	m.SetSequence(path, append(resps, resp)...)
}

// RequestCount returns the number of requests made to path.
func (m *MockAPI) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// TotalRequests returns the number of requests made to the server.
func (m *MockAPI) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes an API error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]any{
		"Error": map[string]string{"Code": code, "Message": message},
	})
}

func errorBody(code, message string) string {
	b, _ := json.Marshal(map[string]any{
		"Error": map[string]string{"Code": code, "Message": message},
	})
	return string(b)
}

// NewJSONResponse creates a 200 OK response carrying data.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: data}
}

// NewThrottleResponse creates a 400 response with a Throttling error code.
func NewThrottleResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       errorBody("Throttling", "Rate exceeded"),
	}
}

// NewTooManyRequestsResponse creates a bare 429 response.
func NewTooManyRequestsResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusTooManyRequests}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       errorBody("InternalError", "Internal server error"),
	}
}

// NewErrorResponse creates a response with an arbitrary error envelope.
func NewErrorResponse(status int, code, message string) MockResponse {
	return MockResponse{StatusCode: status, Body: errorBody(code, message)}
}
