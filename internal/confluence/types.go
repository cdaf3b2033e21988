package confluence

// Page is a v2 page.
type Page struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Status  string  `json:"status"`
	SpaceID string  `json:"spaceId"`
	Version Version `json:"version"`
	Body    struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Links Links `json:"_links"`
}

// Version is a page version.
type Version struct {
	Number int `json:"number"`
}

// Links holds relative links of a page or search hit.
type Links struct {
	WebUI string `json:"webui"`
}

// PageList is a v2 page collection.
type PageList struct {
	Results []Page `json:"results"`
}

// SearchResponse is the body of the legacy CQL search endpoint.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
	Size    int         `json:"size"`
}

// SearchHit is one CQL search result.
type SearchHit struct {
	Content struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
		Links Links  `json:"_links"`
	} `json:"content"`
	Title        string `json:"title"`
	Excerpt      string `json:"excerpt"`
	URL          string `json:"url"`
	LastModified string `json:"lastModified"`
}

// DisplayTitle prefers the content title over the highlighted hit title.
func (h SearchHit) DisplayTitle() string {
	if h.Content.Title != "" {
		return h.Content.Title
	}
	return h.Title
}

// WebUI returns the relative web link of the hit.
func (h SearchHit) WebUI() string {
	if h.Content.Links.WebUI != "" {
		return h.Content.Links.WebUI
	}
	return h.URL
}

// PageSummary is the compact result of SearchInSpace.
type PageSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

// CreatePageParams describes a page to create or upsert.
type CreatePageParams struct {
	SpaceID  string
	Title    string
	Body     string
	ParentID string
}
