package models

// CatalogTitle is the human title resolved for an IMDB id.
type CatalogTitle struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Year  int    `json:"year"`
	// Aliases holds the original-language title when it differs.
	Aliases []string `json:"aliases,omitempty"`
}

type TMDBFindResponse struct {
	MovieResults []TMDBMovie `json:"movie_results"`
	TVResults    []TMDBTV    `json:"tv_results"`
}

type TMDBMovie struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
}

type TMDBTV struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	FirstAirDate string `json:"first_air_date"`
}
