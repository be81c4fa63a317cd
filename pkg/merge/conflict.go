package merge

import (
	"sort"

	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
)

// ConflictInfo reports how two catalogs' identifier sets relate.
// Diagnostic only: it never changes merge outcomes.
type ConflictInfo struct {
	TotalConflicts     int      `json:"totalConflicts"`
	ConflictingAPIs    []string `json:"conflictingAPIs"`
	PrimaryOnlyCount   int      `json:"primaryOnlyCount"`
	SecondaryOnlyCount int      `json:"secondaryOnlyCount"`
}

// GetConflictInfo compares the identifier sets of two catalogs.
func GetConflictInfo(primary, secondary map[string]catalog.API) ConflictInfo {
	info := ConflictInfo{}
	for id := range primary {
		if _, ok := secondary[id]; ok {
			info.ConflictingAPIs = append(info.ConflictingAPIs, id)
		} else {
			info.PrimaryOnlyCount++
		}
	}
	for id := range secondary {
		if _, ok := primary[id]; !ok {
			info.SecondaryOnlyCount++
		}
	}
	sort.Strings(info.ConflictingAPIs)
	info.TotalConflicts = len(info.ConflictingAPIs)
	return info
}
