//go:build tools

// Package tools lists the development tools used on studentdash. They are
// installed with `go install` and kept out of go.mod.
package tools

// air reloads the dashboard on template or Go changes (NODE_ENV=development):
//
//	go install github.com/air-verse/air@v1.63.0
//
// mockgen regenerates internal/mocks; the go:generate lines pin its version:
//
//	go generate ./internal/mocks
