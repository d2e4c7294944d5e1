package lanzou

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"lanzoufetch/internal"
)

const (
	unsharedMarker = "文件取消分享了"
	passwordMarker = "function down_p()"
	titleSuffix    = " 蓝奏云"
	sizeLabel      = "大小："
	decoyFileLine  = "//url : '/ajaxm.php?file=1',//"
)

var (
	blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	passwordSignPattern = regexp.MustCompile(`'sign':'(.*?)',`)
	iframeSignPattern   = regexp.MustCompile(`wp_sign = '(.*?)'`)
	// the quoted ajaxm URL must not contain another '/' after the id
	fileIDPattern = regexp.MustCompile(`url\s*:\s*'/ajaxm\.php\?file=(\d+)[^/']*'`)
)

// extractRule pulls one candidate value out of a parsed page
type extractRule struct {
	name string
	fn   func(doc *goquery.Document) string
}

// fileNameRules are tried in order; the first non-empty result wins
var fileNameRules = []extractRule{
	{"n_box_3fn", func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find(".n_box_3fn").First().Text())
	}},
	{"b_span", func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find(".b span").First().Text())
	}},
	{"title", func(doc *goquery.Document) string {
		return strings.Replace(doc.Find("title").First().Text(), titleSuffix, "", 1)
	}},
}

// fileSizeRules are tried in order; the first non-empty result wins
var fileSizeRules = []extractRule{
	{"n_filesize", func(doc *goquery.Document) string {
		return strings.TrimSpace(strings.Replace(doc.Find(".n_filesize").First().Text(), sizeLabel, "", 1))
	}},
	{"p7_sibling", func(doc *goquery.Document) string {
		sel := doc.Find("span.p7").First()
		if sel.Length() == 0 {
			return ""
		}
		return strings.TrimSpace(nodeText(sel.Get(0).NextSibling))
	}},
}

// nodeText returns the text content of n, which may be a text node
func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

func firstMatch(doc *goquery.Document, rules []extractRule) string {
	for _, rule := range rules {
		if v := rule.fn(doc); v != "" {
			internal.LogDebug("extracted %q via rule %s", v, rule.name)
			return v
		}
	}
	return ""
}

// ParseSharePage inspects a share page body. Missing elements yield empty
// fields; only an unparsable document is an error.
func ParseSharePage(body string) (*internal.SharePageInfo, error) {
	info := &internal.SharePageInfo{
		Unshared:         strings.Contains(body, unsharedMarker),
		RequiresPassword: strings.Contains(body, passwordMarker),
	}
	if HasChallenge(body) {
		info.Challenge = ExtractChallenge(body)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, internal.NewExtractionError(internal.MsgResolveFailed).WithCause(err)
	}

	info.FileName = firstMatch(doc, fileNameRules)
	info.FileSize = firstMatch(doc, fileSizeRules)
	if src, ok := doc.Find("iframe").First().Attr("src"); ok {
		info.IframePath = src
	}

	if info.RequiresPassword {
		info.Sign, info.FileID = PasswordPageTokens(body)
	}

	return info, nil
}

// PasswordPageTokens pulls sign and file id from a password page after
// removing block comments, which often hold stale decoy values.
func PasswordPageTokens(body string) (sign, fileID string) {
	clean := blockCommentPattern.ReplaceAllString(body, "")
	return matchOne(clean, passwordSignPattern), matchOne(clean, fileIDPattern)
}

// IframePageTokens pulls sign and file id from the download iframe page
// after removing the commented-out decoy file line.
func IframePageTokens(body string) (sign, fileID string) {
	sign = matchOne(body, iframeSignPattern)
	fileID = matchOne(strings.Replace(body, decoyFileLine, "", 1), fileIDPattern)
	return sign, fileID
}

func matchOne(text string, re *regexp.Regexp) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
