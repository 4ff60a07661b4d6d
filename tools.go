//go:build tools

// Package tools imports development dependencies to ensure they're
// tracked in go.mod. Install with: go install -tags tools ./...
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "golang.org/x/tools/cmd/goimports"
	_ "gotest.tools/gotestsum"
)
