//go:build tools
// +build tools

// Package tools pins the code generators run through go generate
// (mockgen for contract/contract.go) as module dependencies.
package chat_realtime

import (
	_ "go.uber.org/mock/mockgen"
)
