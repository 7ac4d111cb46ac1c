package bulk_downloader

import (
	"fmt"
	"time"
)

// A Post is a submission on the platform that links to some external media. Resolvers treat it as read-only.
type Post struct {
	ID        string
	URL       string
	Title     string
	Author    string
	Subreddit string
	Permalink string
	CreatedAt time.Time
}

func (p *Post) String() string {
	return fmt.Sprintf("Post{ID:%#v, URL:%#v}", p.ID, p.URL)
}
