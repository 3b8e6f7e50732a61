package utils

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

/**
 * Expand a command line template
 * @param {[]string} argv - Command and arguments, each may contain {{.Field}} references
 * @param {interface{}} data - Template data (e.g. port, working directory)
 * @returns {[]string} Expanded argv
 * @returns {error} Returns error if any element fails to parse or execute
 * @description
 * - Elements without "{{" are returned unchanged
 * - Empty argv is an error
 */
func ExpandCommandLine(argv []string, data interface{}) ([]string, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	result := make([]string, 0, len(argv))
	for _, arg := range argv {
		if !strings.Contains(arg, "{{") {
			result = append(result, arg)
			continue
		}
		tmpl, err := template.New("arg").Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse arg template '%s': %w", arg, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("failed to execute arg template '%s': %w", arg, err)
		}
		result = append(result, strings.TrimSpace(buf.String()))
	}
	return result, nil
}

// MergeEnv 在base上追加/覆盖KEY=VALUE形式的环境变量，后面的同名变量覆盖前面的
func MergeEnv(base []string, extra ...string) []string {
	index := make(map[string]int, len(base)+len(extra))
	result := make([]string, 0, len(base)+len(extra))
	for _, kv := range append(append([]string{}, base...), extra...) {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if pos, ok := index[key]; ok {
			result[pos] = kv
			continue
		}
		index[key] = len(result)
		result = append(result, kv)
	}
	return result
}
