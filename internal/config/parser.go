package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/example/pagemark/internal/theme"
)

// Parse reads configuration from an io.Reader.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()
	scanner := bufio.NewScanner(r)

	// Context for parsing
	var currentSection string
	var currentTheme *theme.Theme
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		// Handle Sections
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(line, "["), "]"))
			currentTheme = nil

			if strings.HasPrefix(currentSection, "theme.") {
				themeName := strings.TrimPrefix(currentSection, "theme.")
				// Start with defaults so missing keys are fine
				currentTheme = theme.Default()
				currentTheme.Name = themeName
				cfg.Themes[themeName] = currentTheme
			}
			continue
		}

		// Parse Key = Value or Key: Value
		var parts []string
		if strings.Contains(line, "=") {
			parts = strings.SplitN(line, "=", 2)
		} else if strings.Contains(line, ":") {
			parts = strings.SplitN(line, ":", 2)
		} else {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		// Remove quotes if present
		if len(value) >= 2 && strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
			value = value[1 : len(value)-1]
		}

		var err error
		switch {
		case currentTheme != nil:
			err = theme.SetField(currentTheme, key, value)
		case currentSection == "":
			err = setRootField(cfg, key, value)
		case currentSection == "draw":
			err = setDrawField(&cfg.Draw, key, value)
		case currentSection == "browser":
			err = setBrowserField(&cfg.Browser, key, value)
		case currentSection == "notify":
			err = setNotifyField(&cfg.Notify, key, value)
		case currentSection == "inbox":
			setInboxField(&cfg.Inbox, key, value)
		}
		if err != nil {
			section := currentSection
			if section == "" {
				section = "root"
			}
			return nil, fmt.Errorf("line %d: error in section [%s]: %w", lineNo, section, err)
		}
	}

	return cfg, scanner.Err()
}

func setRootField(cfg *Config, key, value string) error {
	switch key {
	case "endpoint":
		cfg.Endpoint = value
	case "color":
		if _, err := theme.ParseColor(value); err != nil {
			return fmt.Errorf("invalid color %q: %w", value, err)
		}
		cfg.Color = value
	case "tool":
		cfg.Tool = value
	case "strategy":
		cfg.Strategy = value
	case "width", "height":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s %q", key, value)
		}
		if key == "width" {
			cfg.Width = n
		} else {
			cfg.Height = n
		}
	case "save_dir":
		cfg.SaveDir = value
	case "theme":
		cfg.Theme = value
	}
	return nil
}

func setDrawField(d *Draw, key, value string) error {
	var dst *float64
	switch key {
	case "min_drag":
		dst = &d.MinDrag
	case "arrow_head_length":
		dst = &d.ArrowHeadLength
	case "arrow_head_angle":
		dst = &d.ArrowHeadAngle
	case "stroke_width":
		dst = &d.StrokeWidth
	case "font_size":
		dst = &d.FontSize
	default:
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < 0 {
		return fmt.Errorf("invalid number for key %s: %q", key, value)
	}
	*dst = v
	return nil
}

func setBrowserField(b *Browser, key, value string) error {
	switch key {
	case "remote_url":
		b.RemoteURL = value
	case "panel_selector":
		b.PanelSelector = value
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for key %s: %w", key, err)
		}
		b.Timeout = d
	case "stealth", "headful":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for key %s: %w", key, err)
		}
		if key == "stealth" {
			b.Stealth = v
		} else {
			b.Headful = v
		}
	}
	return nil
}

func setNotifyField(n *Notify, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean for key %s: %w", key, err)
	}
	switch key {
	case "capture":
		n.Capture = b
	case "delegate":
		n.Delegate = b
	case "copy":
		n.Copy = b
	}
	return nil
}

func setInboxField(in *Inbox, key, value string) {
	switch key {
	case "listen":
		in.Listen = value
	case "db":
		in.DB = value
	case "dir":
		in.Dir = value
	case "forward_url":
		in.ForwardURL = value
	}
}
