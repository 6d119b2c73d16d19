package processor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-gota/gota/dataframe"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	separators   = strings.NewReplacer("/", " ", "-", " ", ".", " ")
	underscoreRe = regexp.MustCompile(`_+`)
)

// ToSnake 把原始列名转换为 snake_case，重复调用结果不变
func ToSnake(s string) string {
	// 1. 去空白并转小写(先转小写，保证结果里只剩字母数字和下划线)
	s = cases.Lower(language.Und).String(strings.TrimSpace(s))

	// 2. 分隔符替换为空格
	s = separators.Replace(s)

	// 3. 其余非字母数字字符替换为下划线
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' {
			return r
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return '_'
	}, s)

	// 4. 按空白切分后用下划线连接，并合并连续下划线
	s = strings.Join(strings.Fields(s), "_")
	return underscoreRe.ReplaceAllString(s, "_")
}

// ColumnNormalizer 规范化所有列名并保证列名唯一
type ColumnNormalizer struct{}

func (ColumnNormalizer) Name() string { return "normalize_columns" }

func (ColumnNormalizer) Process(df *dataframe.DataFrame) error {
	names := NormalizeNames(df.Names())
	if err := df.SetNames(names...); err != nil {
		return eris.Wrap(err, "normalize: set names")
	}
	return nil
}

// NormalizeNames 空名称记为 unnamed_<位置>，重复名称追加 _2, _3 ...
func NormalizeNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		name := ToSnake(r)
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i)
		}
		if seen[name] {
			base := name
			for n := 2; seen[name]; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
			}
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
