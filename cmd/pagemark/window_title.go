package main

import (
	"fmt"
	"strings"
)

const programTitle = "Pagemark"

type titleOptions struct {
	URL      string
	Title    string
	Strategy string
}

func windowTitle(opts titleOptions) string {
	parts := []string{programTitle}

	if title := strings.TrimSpace(opts.Title); title != "" {
		parts = append(parts, title)
	}
	if u := strings.TrimSpace(opts.URL); u != "" {
		parts = append(parts, u)
	}
	if s := strings.TrimSpace(opts.Strategy); s != "" {
		parts = append(parts, fmt.Sprintf("%s renderer", s))
	}
	if v := strings.TrimSpace(version); v != "" {
		parts = append(parts, "v"+v)
	}
	return strings.Join(parts, " - ")
}
