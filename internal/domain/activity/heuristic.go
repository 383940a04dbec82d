package activity

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
)

// BadgeSelector matches elements that usually carry unread counters.
const BadgeSelector = `.notification, .badge, .counter, [class*="notification"], [class*="badge"], [class*="counter"]`

var (
	titleCount = regexp.MustCompile(`\((\d+)\)`)
	anyDigits  = regexp.MustCompile(`\d+`)
)

// Heuristic detects activity from title changes and badge counters.
type Heuristic struct {
	// Selector overrides BadgeSelector.
	Selector string
	// XPath, when set, replaces the selector for counting badges.
	XPath  string
	Logger *zap.Logger
}

// Detect reports a changed title that looks like an unread indicator, or
// a rise in the badge count.
func (h Heuristic) Detect(prev, cur Snapshot) (Signal, bool) {
	if cur.Title != prev.Title && unreadTitle(cur.Title) {
		count := 1
		if m := titleCount.FindStringSubmatch(cur.Title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				count = n
			}
		}
		return signalFor(count), true
	}

	if cur.HTML == "" {
		return Signal{}, false
	}
	now := h.badges(cur.HTML)
	if now > 0 && now > h.badges(prev.HTML) {
		return signalFor(now), true
	}
	return Signal{}, false
}

func unreadTitle(title string) bool {
	lower := strings.ToLower(title)
	return strings.ContainsAny(title, "(•*") ||
		anyDigits.MatchString(title) ||
		strings.Contains(lower, "new") ||
		strings.Contains(lower, "message")
}

// badges sums the counters in markup. A badge without digits counts as one.
func (h Heuristic) badges(markup string) int {
	if markup == "" {
		return 0
	}
	if h.XPath != "" {
		return h.xpathBadges(markup)
	}

	doc, err := loadDocument(markup)
	if err != nil {
		h.logger().Debug("Unparseable snapshot", zap.Error(err))
		return 0
	}
	selector := h.Selector
	if selector == "" {
		selector = BadgeSelector
	}

	total := 0
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		// Nested badge elements are counted once, at the innermost level
		if s.Find(selector).Length() > 0 {
			return
		}
		total += badgeValue(s.Text())
	})
	return total
}

func (h Heuristic) xpathBadges(markup string) int {
	doc, err := loadNode(markup)
	if err != nil {
		h.logger().Debug("Unparseable snapshot", zap.Error(err))
		return 0
	}
	nodes, err := htmlquery.QueryAll(doc, h.XPath)
	if err != nil {
		h.logger().Warn("Invalid badge xpath", zap.String("xpath", h.XPath), zap.Error(err))
		return 0
	}
	total := 0
	for _, n := range nodes {
		total += badgeValue(htmlquery.InnerText(n))
	}
	return total
}

func badgeValue(text string) int {
	if m := anyDigits.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	return 1
}

func (h Heuristic) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
