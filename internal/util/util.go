package util

import (
	"fmt"
	"hash/fnv"
	"strings"
)

const (
	KB = 1024
	MB = KB * 1024
	GB = MB * 1024

	SitePrimary = "https://www.mediafire.com"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
}

// ComposeLink rebuilds the canonical link for parsed url parts.
// It returns an empty string when there is nothing to link to.
func ComposeLink(folderKey, fileKey, name string) string {
	if name == "" || (folderKey == "" && fileKey == "") {
		return ""
	}

	if folderKey != "" {
		link := fmt.Sprintf("%s/folder/%s/%s/folder", SitePrimary, folderKey, name)
		if fileKey != "" {
			link = fmt.Sprintf("%s/file/%s", link, fileKey)
		}

		return link
	}

	return fmt.Sprintf("%s/file/%s/%s/file", SitePrimary, fileKey, name)
}

var separators = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")

// SafeName turns a remote file or folder name into a single path segment.
// ok is false when nothing usable is left.
func SafeName(name string) (string, bool) {
	name = separators.Replace(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "", false
	}

	return name, true
}

func FormatMB(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
}

// SelectUserAgent picks a user agent. The same proxy always gets the same agent.
func SelectUserAgent(proxy string) string {
	if proxy == "" {
		return userAgents[0]
	}

	h := fnv.New32a()
	h.Write([]byte(proxy))

	return userAgents[h.Sum32()%uint32(len(userAgents))]
}
