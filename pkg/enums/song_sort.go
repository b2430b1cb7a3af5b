package enums

import "strings"

// SongSort selects the catalog ordering.
type SongSort string

const (
	SongSortTitleAsc   SongSort = "title_asc"
	SongSortTitleDesc  SongSort = "title_desc"
	SongSortArtistAsc  SongSort = "artist_asc"
	SongSortArtistDesc SongSort = "artist_desc"
)

var validSongSorts = []SongSort{
	SongSortTitleAsc,
	SongSortTitleDesc,
	SongSortArtistAsc,
	SongSortArtistDesc,
}

func (s SongSort) IsValid() bool {
	for _, candidate := range validSongSorts {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSongSort never fails: unknown or empty keys fall back to title_asc.
func ParseSongSort(value string) SongSort {
	candidate := SongSort(strings.ToLower(strings.TrimSpace(value)))
	if candidate.IsValid() {
		return candidate
	}
	return SongSortTitleAsc
}
