package source

import (
	"strconv"
	"time"

	"github.com/groundkit/groundkit/internal/domain"
)

// buildFields converts a Source into a flat map for HSET.
func buildFields(src *domain.Source) map[string]string {
	return map[string]string{
		"origin":          string(src.Origin),
		"title":           src.Title,
		"content_ref":     src.ContentRef,
		"status":          string(src.Status),
		"error":           src.Error,
		"generation":      strconv.FormatInt(src.Generation, 10),
		"chunk_count":     itoa(src.ChunkCount),
		"embedding_count": itoa(src.EmbeddingCount),
		"fallback_count":  itoa(src.FallbackCount),
		"refresh_sec":     itoa(int(src.RefreshEvery / time.Second)),
		"created_at":      src.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":      src.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// parseFields converts a flat hash map back into a Source.
func parseFields(id string, m map[string]string) domain.Source {
	src := domain.Source{
		ID:         id,
		Origin:     domain.Origin(m["origin"]),
		Title:      m["title"],
		ContentRef: m["content_ref"],
		Status:     domain.State(m["status"]),
		Error:      m["error"],
	}
	src.Generation, _ = strconv.ParseInt(m["generation"], 10, 64)
	src.ChunkCount = atoi(m["chunk_count"])
	src.EmbeddingCount = atoi(m["embedding_count"])
	src.FallbackCount = atoi(m["fallback_count"])
	src.RefreshEvery = time.Duration(atoi(m["refresh_sec"])) * time.Second
	src.CreatedAt = parseTime(m["created_at"])
	src.UpdatedAt = parseTime(m["updated_at"])
	return src
}

func itoa(n int) string { return strconv.Itoa(n) }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
