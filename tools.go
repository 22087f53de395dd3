//go:build tools

// Package tools tracks the code generators run by go generate (mockgen),
// so go.mod and go.sum keep them pinned.
package chat_pipeline

import (
	_ "go.uber.org/mock/mockgen"
)
