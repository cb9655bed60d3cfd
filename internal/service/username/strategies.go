package username

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
)

// 每个策略产生的候选数
const candidatesPerStrategy = 3

const alphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"

var themedSuffixes = []string{"_hq", "_dev", ".io", "_x", "_real", "_one", "_app"}

// randSource 并发安全的随机数源
type randSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newRandSource(seed uint64) *randSource {
	return &randSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *randSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// strategy 冲突解决策略，每次调用产生一批候选
type strategy struct {
	name     string
	generate func(base string, rnd *randSource) []string
}

var strategies = []strategy{
	{name: "numeric_suffix", generate: numericSuffix},
	{name: "alphanumeric_suffix", generate: alphanumericSuffix},
	{name: "sequential_suffix", generate: sequentialSuffix},
	{name: "structural", generate: structural},
}

// numericSuffix 随机两位数后缀
func numericSuffix(base string, rnd *randSource) []string {
	out := make([]string, 0, candidatesPerStrategy)
	for i := 0; i < candidatesPerStrategy; i++ {
		out = append(out, fit(base, strconv.Itoa(10+rnd.IntN(90))))
	}
	return out
}

// alphanumericSuffix 随机三位字母数字后缀
func alphanumericSuffix(base string, rnd *randSource) []string {
	out := make([]string, 0, candidatesPerStrategy)
	for i := 0; i < candidatesPerStrategy; i++ {
		var b strings.Builder
		for j := 0; j < 3; j++ {
			b.WriteByte(alphanumeric[rnd.IntN(len(alphanumeric))])
		}
		out = append(out, fit(base, b.String()))
	}
	return out
}

// sequentialSuffix 从随机起点开始递增，避免并发分配都从 1 开始撞车
func sequentialSuffix(base string, rnd *randSource) []string {
	start := 1 + rnd.IntN(900)
	out := make([]string, 0, candidatesPerStrategy)
	for i := 0; i < candidatesPerStrategy; i++ {
		out = append(out, fit(base, strconv.Itoa(start+i)))
	}
	return out
}

// structural 去元音、反转、主题后缀
func structural(base string, rnd *randSource) []string {
	return []string{
		Sanitize(removeVowels(base)),
		Sanitize(reverse(base)),
		fit(base, themedSuffixes[rnd.IntN(len(themedSuffixes))]),
	}
}

func removeVowels(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune("aeiou", r) {
			return -1
		}
		return r
	}, s)
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
