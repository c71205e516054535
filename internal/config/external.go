package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// resolveExternalPath returns path as-is if absolute, otherwise joins it with root.
func resolveExternalPath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// loadFeedFiles reads each file in FeedFiles and appends its feeds to
// c.Mirror.Feeds with duplicate detection on the feed URL. YAML files hold a
// list of feeds; any other file is plain text with one URL per line.
func (c *Config) loadFeedFiles(root string) error {
	if len(c.FeedFiles) == 0 {
		return nil
	}

	sources := make(map[string]string, len(c.Mirror.Feeds))
	for _, feed := range c.Mirror.Feeds {
		sources[feedKey(feed.URL)] = "inline config"
	}

	for _, relPath := range c.FeedFiles {
		absPath := resolveExternalPath(root, relPath)
		data, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("load feed file %q: %w", relPath, err)
		}

		feeds, err := parseFeedFile(absPath, data)
		if err != nil {
			return fmt.Errorf("parse feed file %q: %w", relPath, err)
		}

		for _, feed := range feeds {
			key := feedKey(feed.URL)
			if existing, ok := sources[key]; ok {
				return fmt.Errorf("feed %q defined in both %s and %q", feed.URL, existing, relPath)
			}
			sources[key] = relPath
			c.Mirror.Feeds = append(c.Mirror.Feeds, feed)
		}
	}

	return nil
}

func parseFeedFile(path string, data []byte) ([]FeedConfig, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var feeds []FeedConfig
		if err := yaml.Unmarshal(data, &feeds); err != nil {
			return nil, err
		}
		return feeds, nil
	}

	var feeds []FeedConfig
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		feeds = append(feeds, FeedConfig{URL: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return feeds, nil
}

func feedKey(url string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(url), "/"))
}
