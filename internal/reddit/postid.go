package reddit

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/alanbriolat/bulk-downloader/util"
)

var ErrInvalidPostID = errors.New("invalid post ID")

var idPattern = regexp.MustCompile(`^[0-9a-z]{1,13}$`)

// ParsePostID extracts a submission ID from a bare ID ("lu8l8g", "t3_lu8l8g"), a short link
// ("https://redd.it/lu8l8g") or a permalink ("https://www.reddit.com/r/x/comments/lu8l8g/title/").
func ParsePostID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if id := strings.TrimPrefix(s, "t3_"); idPattern.MatchString(id) {
		return id, nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPostID, s)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	var id string
	switch host := strings.ToLower(u.Hostname()); {
	case host == "redd.it":
		id = parts[0]
	case util.HostMatches(host, "reddit.com"):
		for i := 0; i+1 < len(parts); i++ {
			if parts[i] == "comments" {
				id = parts[i+1]
				break
			}
		}
	}
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPostID, s)
	}
	return id, nil
}
