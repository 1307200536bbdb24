// Package catalog 提供内置的默认产线与质检标签目录。
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Line 默认产线
type Line struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// Catalog 默认目录
type Catalog struct {
	Version       int      `yaml:"version"`
	Lines         []Line   `yaml:"lines"`
	Defects       []string `yaml:"defects"`
	Modifications []string `yaml:"modifications"`
	Rejections    []string `yaml:"rejections"`
}

// Default 解析内置目录
func Default() (*Catalog, error) {
	return Parse(defaultsYAML)
}

// Parse 解析 YAML 目录并去除空白/重复项
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("解析默认目录失败: %w", err)
	}
	if c.Version <= 0 {
		return nil, fmt.Errorf("默认目录缺少 version")
	}

	seen := make(map[int64]struct{}, len(c.Lines))
	lines := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ID <= 0 {
			return nil, fmt.Errorf("产线 id 非法: %d", l.ID)
		}
		if _, ok := seen[l.ID]; ok {
			continue
		}
		seen[l.ID] = struct{}{}
		l.Name = strings.TrimSpace(l.Name)
		if l.Name == "" {
			l.Name = fmt.Sprintf("Production Line %d", l.ID)
		}
		lines = append(lines, l)
	}
	c.Lines = lines
	c.Defects = dedupe(c.Defects)
	c.Modifications = dedupe(c.Modifications)
	c.Rejections = dedupe(c.Rejections)
	return &c, nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
