package names

import (
	"regexp"
	"strings"
	"unicode"
)

// HanExtractor finds candidate CJK proper names: short runs of Han
// characters that repeat across the document and are not everyday
// vocabulary.
type HanExtractor struct {
	MinCount int // minimum occurrences across the document, default 2
}

var hanRunRe = regexp.MustCompile(`\p{Han}{2,4}`)

// hanStopWords are common words that look like names to the length
// heuristic but never are.
var hanStopWords = map[string]struct{}{
	"你好": {}, "谢谢": {}, "什么": {}, "怎么": {}, "知道": {}, "可以": {},
	"这样": {}, "那样": {}, "这个": {}, "那个": {}, "现在": {}, "时候": {},
	"地方": {}, "事情": {}, "问题": {}, "朋友": {}, "家人": {}, "今天": {},
	"明天": {}, "昨天": {}, "时间": {}, "工作": {}, "生活": {}, "学习": {},
	"学生": {}, "老师": {}, "医生": {}, "警察": {}, "男人": {}, "女人": {},
	"孩子": {}, "父母": {}, "家庭": {}, "关系": {}, "感觉": {}, "心情": {},
	"想法": {}, "意思": {}, "故事": {}, "电影": {}, "电视": {}, "音乐": {},
	"国家": {}, "城市": {}, "位置": {}, "方向": {}, "重要": {}, "主要": {},
	"基本": {}, "一般": {}, "普通": {}, "特别": {}, "非常": {}, "比较": {},
}

func (e HanExtractor) Extract(texts []string) []string {
	minCount := e.MinCount
	if minCount <= 0 {
		minCount = 2
	}

	counts := make(map[string]int)
	for _, text := range texts {
		for _, match := range hanRunRe.FindAllString(text, -1) {
			if _, stop := hanStopWords[match]; stop {
				continue
			}
			counts[match]++
		}
	}

	var out []string
	for candidate, n := range counts {
		if n >= minCount {
			out = append(out, candidate)
		}
	}
	return out
}

// LatinExtractor finds capitalized tokens that repeat across the
// document and never occur lowercased, which filters out words that
// are only capitalized at sentence starts.
type LatinExtractor struct {
	MinCount int // minimum capitalized occurrences, default 2
}

var latinTokenRe = regexp.MustCompile(`[A-Za-z][a-z]+`)

func (e LatinExtractor) Extract(texts []string) []string {
	minCount := e.MinCount
	if minCount <= 0 {
		minCount = 2
	}

	capitalized := make(map[string]int)
	lowercase := make(map[string]struct{})
	for _, text := range texts {
		for _, token := range latinTokenRe.FindAllString(text, -1) {
			first := rune(token[0])
			if unicode.IsUpper(first) {
				capitalized[token]++
			} else {
				lowercase[token] = struct{}{}
			}
		}
	}

	var out []string
	for token, n := range capitalized {
		if n < minCount {
			continue
		}
		if _, seen := lowercase[strings.ToLower(token)]; seen {
			continue
		}
		out = append(out, token)
	}
	return out
}
