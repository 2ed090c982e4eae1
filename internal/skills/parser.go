// Package skills implements the three-tier skill registry (spec §4.9):
// project skills override global skills override builtin skills by name,
// with a lazily-loaded L2 body and optional resource files.
package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// SkillFilename is the expected filename for a skill's definition.
const SkillFilename = "SKILL.md"

const frontmatterDelimiter = "---"

// parsed is the raw result of parsing one SKILL.md file, before the
// registry attaches Source/Path.
type parsed struct {
	meta models.SkillMeta
	body string
}

// parseSkillFile parses a SKILL.md file's hand-rolled frontmatter (simple
// "key: value" lines, with tags as a bracketed comma list) plus its
// markdown body. Grounded on the teacher's splitFrontmatter scanner
// approach (internal/skills/parser.go), using a minimal key:value format
// rather than full YAML since spec §4.9 only needs name/description/tags.
func parseSkillFile(path string) (*parsed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill file: %w", err)
	}
	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	meta, err := parseFrontmatter(frontmatter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if meta.Name == "" {
		meta.Name = filepath.Base(filepath.Dir(path))
	}
	if meta.Description == "" {
		return nil, fmt.Errorf("%s: description is required", path)
	}
	return &parsed{meta: meta, body: strings.TrimSpace(body)}, nil
}

func splitFrontmatter(data []byte) (frontmatter, body string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() {
		return "", "", fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return "", "", fmt.Errorf("missing opening frontmatter delimiter")
	}

	var fmLines []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			closed = true
			break
		}
		fmLines = append(fmLines, line)
	}
	if !closed {
		return "", "", fmt.Errorf("missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}
	return strings.Join(fmLines, "\n"), strings.Join(bodyLines, "\n"), nil
}

// parseFrontmatter reads "key: value" lines; tags is a bracketed,
// comma-separated list: tags: [a, b, c].
func parseFrontmatter(raw string) (models.SkillMeta, error) {
	var meta models.SkillMeta
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "name":
			meta.Name = strings.Trim(value, `"'`)
		case "description":
			meta.Description = strings.Trim(value, `"'`)
		case "tags":
			meta.Tags = parseTagList(value)
		}
	}
	return meta, nil
}

func parseTagList(value string) []string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
