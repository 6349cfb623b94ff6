// Package ingest implements the offline department-catalog indexing job.
// It reads a catalog file, embeds each department profile, and upserts
// the points into the vector index. Re-running with an unchanged catalog
// is a no-op apart from refreshed timestamps: departments are keyed by
// name and index points by (department, language).
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/uzsupport/murojaat/ai"
	"github.com/uzsupport/murojaat/store"
)

// CatalogEntry is one department in the catalog file. The top-level
// fields are the canonical (Uzbek) profile; Profiles adds per-language
// overrides.
type CatalogEntry struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Keywords    []string                  `json:"keywords"`
	IsActive    *bool                     `json:"is_active"`
	Profiles    map[string]CatalogProfile `json:"profiles"`
}

// CatalogProfile is a per-language department profile.
type CatalogProfile struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// Job runs catalog ingestion.
type Job struct {
	store    *store.Store
	embedder ai.EmbeddingService
	model    string
}

// NewJob creates an ingestion job.
func NewJob(s *store.Store, embedder ai.EmbeddingService, model string) *Job {
	return &Job{store: s, embedder: embedder, model: model}
}

// Run ingests the catalog at path. Returns the number of index points
// written.
func (j *Job) Run(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read catalog: %w", err)
	}

	var entries []CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parse catalog: %w", err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("catalog is empty")
	}

	written := 0
	for _, entry := range entries {
		n, err := j.ingestEntry(ctx, entry)
		if err != nil {
			return written, fmt.Errorf("ingest %q: %w", entry.Name, err)
		}
		written += n
	}

	slog.Info("ingest: catalog indexed", "departments", len(entries), "points", written)
	return written, nil
}

func (j *Job) ingestEntry(ctx context.Context, entry CatalogEntry) (int, error) {
	if entry.Name == "" {
		return 0, fmt.Errorf("department name is required")
	}

	isActive := true
	if entry.IsActive != nil {
		isActive = *entry.IsActive
	}

	department, err := j.store.UpsertDepartment(ctx, &store.UpsertDepartment{
		Name:        entry.Name,
		Description: entry.Description,
		Keywords:    strings.Join(entry.Keywords, ", "),
		IsActive:    isActive,
	})
	if err != nil {
		return 0, err
	}
	if !isActive {
		slog.Info("ingest: skipping inactive department", "department", entry.Name)
		return 0, nil
	}

	profiles := entry.Profiles
	if len(profiles) == 0 {
		profiles = map[string]CatalogProfile{
			"uz": {Name: entry.Name, Description: entry.Description, Keywords: entry.Keywords},
		}
	}

	langs := make([]string, 0, len(profiles))
	texts := make([]string, 0, len(profiles))
	for lang, p := range profiles {
		if p.Name == "" {
			p.Name = entry.Name
		}
		if p.Description == "" {
			p.Description = entry.Description
		}
		profiles[lang] = p
		langs = append(langs, lang)
		texts = append(texts, profileText(p))
	}

	vectors, err := j.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed profiles: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	for i, lang := range langs {
		p := profiles[lang]
		if _, err := j.store.UpsertDepartmentProfile(ctx, &store.DepartmentProfile{
			DepartmentID: department.ID,
			Lang:         lang,
			Name:         p.Name,
			Description:  p.Description,
			Keywords:     strings.Join(p.Keywords, ", "),
			Embedding:    vectors[i],
			Model:        j.model,
		}); err != nil {
			return i, err
		}
	}

	return len(langs), nil
}

// profileText is the text that gets embedded for one index point:
// name + description + keywords.
func profileText(p CatalogProfile) string {
	parts := []string{p.Name}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if len(p.Keywords) > 0 {
		parts = append(parts, strings.Join(p.Keywords, ", "))
	}
	return strings.Join(parts, "\n")
}
