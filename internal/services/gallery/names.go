package gallery

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NameGenerator issues blob filenames of the form <unix-millis><ext>.
// Names never repeat within a process: a second call in the same
// millisecond advances to the next one.
type NameGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewNameGenerator(now func() time.Time) *NameGenerator {
	if now == nil {
		now = time.Now
	}
	return &NameGenerator{now: now}
}

// Next returns a fresh filename carrying the extension of original.
func (g *NameGenerator) Next(original string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms

	return strconv.FormatInt(ms, 10) + extension(original)
}

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// extension keeps the lower-cased client extension only when it is plainly one.
func extension(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if !safeExt.MatchString(ext) {
		return ""
	}
	return ext
}
