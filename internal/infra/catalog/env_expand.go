package catalog

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// expandNodeEnv replaces ${VAR} references in string scalars and returns
// the names of variables that were not set.
func expandNodeEnv(root *yaml.Node) []string {
	missing := make(map[string]struct{})
	expandNode(root, missing)
	return missingList(missing)
}

func expandNode(node *yaml.Node, missing map[string]struct{}) {
	if node == nil {
		return
	}
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			expandNode(child, missing)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			expandNode(node.Content[i+1], missing)
		}
	case yaml.SequenceNode:
		for _, child := range node.Content {
			expandNode(child, missing)
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			expandNode(node.Alias, missing)
		}
	case yaml.ScalarNode:
		expandScalar(node, missing)
	}
}

func expandScalar(node *yaml.Node, missing map[string]struct{}) {
	if node.Tag != "" && node.Tag != "!!str" {
		return
	}
	if !strings.Contains(node.Value, "$") {
		return
	}
	expanded := expandEnvWithTracking(node.Value, missing)
	if expanded == node.Value {
		return
	}
	node.Tag = "!!str"
	node.Value = expanded
}

func expandEnvWithTracking(value string, missing map[string]struct{}) string {
	if !strings.Contains(value, "$") {
		return value
	}
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		missing[key] = struct{}{}
		return ""
	})
}

func missingList(missing map[string]struct{}) []string {
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
