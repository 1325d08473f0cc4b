//go:build tools
// +build tools

// Package tools pins the developer tooling used by this module (see the tool
// block in go.mod, e.g. `go tool staticcheck ./...`).
package tools

import (
	_ "github.com/dkorunic/betteralign/cmd/betteralign"
	_ "golang.org/x/perf/cmd/benchstat"
	_ "golang.org/x/tools/cmd/deadcode"
	_ "golang.org/x/tools/cmd/godoc"
	_ "honnef.co/go/tools/cmd/staticcheck"
)
