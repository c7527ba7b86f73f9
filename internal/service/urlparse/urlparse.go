package urlparse

import (
	"regexp"
	"strings"

	"github.com/jgivc/mfdl/internal/common"
	"github.com/jgivc/mfdl/internal/entity"
)

const (
	folderLookup      = "/folder/"
	fileLookup        = "/file/"
	filePremiumLookup = "/file_premium/"
)

var (
	// The key is searched for anywhere in the link so that path depth changes do not break parsing.
	fileKeyRegexp = regexp.MustCompile(`\W(\w{14,})\W`)
)

// Parse classifies a link as a folder link (optionally pinning a file) or a file link.
//
//	https://www.mediafire.com/folder/aoxkjmx3y/awesometitle/
//	https://www.mediafire.com/folder/aoxkjmx3y/awesometitle/folder/file/oxteykmx3y12ab
//	https://www.mediafire.com/file/oxteykmx3y12ab/fstaj.rar/file
func Parse(rawURL string) (entity.ParsedURL, error) {
	var parsed entity.ParsedURL

	switch {
	case strings.Contains(rawURL, folderLookup):
		parts := strings.Split(strings.SplitN(rawURL, folderLookup, 2)[1], "/")
		parsed.FolderKey = parts[0]
		if len(parts) > 1 {
			parsed.Name = parts[1]
		}

		if rest := strings.SplitN(rawURL, fileLookup, 2); len(rest) == 2 {
			parsed.FileKey = strings.Split(rest[1], "/")[0]
		}
	case strings.Contains(rawURL, fileLookup), strings.Contains(rawURL, filePremiumLookup):
		url := strings.ReplaceAll(rawURL, " ", "")
		if !fileKeyRegexp.MatchString(url) {
			return entity.ParsedURL{}, common.NewValidationError("file id not found in '%s'", url)
		}

		lookup := fileLookup
		if !strings.Contains(url, fileLookup) {
			lookup = filePremiumLookup
		}

		parts := strings.Split(strings.SplitN(url, lookup, 2)[1], "/")
		parsed.FileKey = parts[0]
		if len(parts) > 1 {
			parsed.Name = parts[1]
		}
	default:
		return entity.ParsedURL{}, common.NewValidationError("not a valid link '%s'", rawURL)
	}

	if parsed.FolderKey == "" && parsed.FileKey == "" {
		return entity.ParsedURL{}, common.NewValidationError("no key found in '%s'", rawURL)
	}

	if parsed.Name == "" {
		return entity.ParsedURL{}, common.NewValidationError("no name found in '%s'", rawURL)
	}

	return parsed, nil
}
