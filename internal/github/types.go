package github

// PullRequest is the subset of pull request fields we read.
type PullRequest struct {
	Number       int    `json:"number"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	State        string `json:"state"`
	HTMLURL      string `json:"html_url"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	ChangedFiles int    `json:"changed_files"`
	User         struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// PullRequestFile is one changed file.
type PullRequestFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch,omitempty"`
}

// ReviewComment is an inline review comment.
type ReviewComment struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
	Body string `json:"body"`
}

// ReviewRequest is the body of a create-review call.
type ReviewRequest struct {
	Body     string          `json:"body"`
	Event    ReviewEvent     `json:"event"`
	Comments []ReviewComment `json:"comments,omitempty"`
}

// Review is a submitted review.
type Review struct {
	ID      int64  `json:"id"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}
