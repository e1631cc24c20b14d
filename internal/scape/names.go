package scape

import "strings"

// NormalizeName canonicalizes a user supplied scape name. Case, underscores
// and spaces are folded, and a "scape" prefix or "sim" suffix is dropped when
// the remainder names a registered scape. Unknown names come back folded but
// otherwise unchanged.
func NormalizeName(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.NewReplacer("_", "-", " ", "-").Replace(normalized)
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}

	registry.mu.RLock()
	defer registry.mu.RUnlock()
	for _, candidate := range nameCandidates(normalized) {
		if _, ok := registry.m[candidate]; ok {
			return candidate
		}
		compact := strings.ReplaceAll(candidate, "-", "")
		for registered := range registry.m {
			if strings.ReplaceAll(registered, "-", "") == compact {
				return registered
			}
		}
	}
	return normalized
}

func nameCandidates(normalized string) []string {
	candidates := []string{normalized}
	stripped := strings.Trim(strings.TrimPrefix(normalized, "scape"), "-")
	if stripped != "" && stripped != normalized {
		candidates = append(candidates, stripped)
	}
	for _, c := range append([]string(nil), candidates...) {
		if trimmed := strings.Trim(strings.TrimSuffix(c, "sim"), "-"); trimmed != "" && trimmed != c {
			candidates = append(candidates, trimmed)
		}
	}
	return candidates
}
