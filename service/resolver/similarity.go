/*
 * @module service/resolver/similarity
 * @description 词序无关的名称相似度：分词排序后按最长公共子序列计算 0-100 分
 * @architecture 纯函数工具
 * @stateFlow 预处理 -> 分词 -> 排序 -> 拼接 -> Indel相似度
 * @rules 相同输入必然得到相同分数；两个空串得100分
 * @dependencies golang.org/x/text/unicode/norm
 * @refs resolver.go
 */

package resolver

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Processor 名称预处理函数
type Processor func(string) string

// 内置预处理器
var processors = map[string]Processor{
	"nfc":  NFC,
	"full": FullProcess,
}

// GetProcessor 按名称获取预处理器，空名称返回默认的NFC
func GetProcessor(name string) (Processor, bool) {
	if name == "" {
		return NFC, true
	}
	p, ok := processors[name]
	return p, ok
}

// NFC 统一为NFC组合形式，不做大小写或标点处理
func NFC(s string) string {
	return norm.NFC.String(s)
}

// FullProcess NFC后转小写，非字母数字字符替换为空格
func FullProcess(s string) string {
	s = strings.ToLower(norm.NFC.String(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return ' '
	}, s)
}

// SortTokens 按空白分词、排序并用单个空格拼接
func SortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// TokenSortRatio 计算两个名称的词序无关相似度
func TokenSortRatio(a, b string) float64 {
	return ratio(SortTokens(NFC(a)), SortTokens(NFC(b)))
}

// ratio 基于Indel距离的归一化相似度：100 * 2*LCS / (len(a)+len(b))
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return 100 * float64(2*lcsLength(ra, rb)) / float64(total)
}

// lcsLength 最长公共子序列长度，两行滚动数组
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
