// Package filter decides which discovered files are excluded from a run.
// A file matching any configured filter is not downloaded.
package filter

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/jgivc/mfdl/internal/config"
	"github.com/jgivc/mfdl/internal/entity"
	"github.com/jgivc/mfdl/internal/util"
)

const dateLayout = "2006-01-02"

type Filter interface {
	Match(file *entity.FileInfo) bool
	String() string
}

type nameFilter struct {
	re *regexp.Regexp
}

func (f *nameFilter) Match(file *entity.FileInfo) bool {
	return f.re.MatchString(file.Filename)
}

func (f *nameFilter) String() string {
	return fmt.Sprintf("name filter '%s'", f.re)
}

type extFilter struct {
	exts map[string]struct{}
}

func (f *extFilter) Match(file *entity.FileInfo) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(file.Filename)), ".")
	_, ok := f.exts[ext]

	return ok
}

func (f *extFilter) String() string {
	exts := make([]string, 0, len(f.exts))
	for ext := range f.exts {
		exts = append(exts, ext)
	}

	return fmt.Sprintf("extension filter %v", exts)
}

// sizeFilter matches files outside of [min, max]. Zero bounds are open.
type sizeFilter struct {
	min, max int64
}

func (f *sizeFilter) Match(file *entity.FileInfo) bool {
	size := file.Size.Int64()

	return (f.min > 0 && size < f.min) || (f.max > 0 && size > f.max)
}

func (f *sizeFilter) String() string {
	return fmt.Sprintf("size filter [%s, %s]", util.FormatMB(f.min), util.FormatMB(f.max))
}

// dateFilter matches files created before after or later than before. Zero bounds are open.
type dateFilter struct {
	after, before time.Time
}

func (f *dateFilter) Match(file *entity.FileInfo) bool {
	created := file.CreatedAt()
	if created.IsZero() {
		return false
	}

	return (!f.after.IsZero() && created.Before(f.after)) || (!f.before.IsZero() && !created.Before(f.before))
}

func (f *dateFilter) String() string {
	return fmt.Sprintf("date filter [%s, %s)", formatDate(f.after), formatDate(f.before))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "*"
	}

	return t.Format(dateLayout)
}

// FromConfig compiles filter rules. Each non empty field of a rule becomes a separate filter.
func FromConfig(rules []config.FilterConfig) ([]Filter, error) {
	var filters []Filter

	for i, rule := range rules {
		if rule.Name != "" {
			re, err := regexp.Compile(rule.Name)
			if err != nil {
				return nil, fmt.Errorf("filter %d: invalid name pattern: %w", i, err)
			}
			filters = append(filters, &nameFilter{re: re})
		}

		if len(rule.Ext) > 0 {
			f := &extFilter{exts: make(map[string]struct{}, len(rule.Ext))}
			for _, ext := range rule.Ext {
				f.exts[strings.TrimPrefix(strings.ToLower(ext), ".")] = struct{}{}
			}
			filters = append(filters, f)
		}

		if rule.MinSize < 0 || rule.MaxSize < 0 || (rule.MaxSize > 0 && rule.MaxSize < rule.MinSize) {
			return nil, fmt.Errorf("filter %d: invalid size range %d..%d", i, rule.MinSize, rule.MaxSize)
		}

		if rule.MinSize > 0 || rule.MaxSize > 0 {
			filters = append(filters, &sizeFilter{min: rule.MinSize, max: rule.MaxSize})
		}

		if rule.After != "" || rule.Before != "" {
			f := &dateFilter{}

			var err error
			if f.after, err = parseDate(rule.After); err != nil {
				return nil, fmt.Errorf("filter %d: %w", i, err)
			}

			if f.before, err = parseDate(rule.Before); err != nil {
				return nil, fmt.Errorf("filter %d: %w", i, err)
			}

			filters = append(filters, f)
		}
	}

	return filters, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}

	return t, nil
}

// MatchAny returns the first filter matching file or nil.
func MatchAny(file *entity.FileInfo, filters []Filter) Filter {
	for _, f := range filters {
		if f.Match(file) {
			return f
		}
	}

	return nil
}
