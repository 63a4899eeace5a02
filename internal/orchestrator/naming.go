package orchestrator

import (
	"fmt"
	"strings"

	"conduit/internal/registry"
)

// QualifyToolName prefixes a tool name with its server identifier so tools
// from different servers never collide in the model's view.
func QualifyToolName(server, tool string) string {
	return server + registry.Separator + tool
}

// SplitToolName resolves a qualified name back to its server identifier and
// tool name. The split happens at the first separator only; tool names may
// themselves contain separators, server identifiers may not.
func SplitToolName(qualified string) (server, tool string, err error) {
	server, tool, found := strings.Cut(qualified, registry.Separator)
	if !found || server == "" || tool == "" {
		return "", "", fmt.Errorf("tool name %q is not of the form <server>%s<tool>", qualified, registry.Separator)
	}
	return server, tool, nil
}
