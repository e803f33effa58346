//go:build tools

// Package lint pins the linters run over go-protorecon. The tools live in
// their own module, declared with tool directives in tools/lint/go.mod, so
// the library's go.mod only lists what the schema pipeline imports.
//
// From the repository root:
//
//	go tool -modfile=tools/lint/go.mod golangci-lint run ./...
//	go tool -modfile=tools/lint/go.mod staticcheck ./...
package lint
