package vision

import (
	"math"
	"strings"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"furniq/internal/model"
)

type scoredLabel struct {
	Description string
	Score       float64
}

// categoryKeywords 把英文识别标签映射到目录分类。
var categoryKeywords = map[string]string{
	"lamp":        "Lampe",
	"lampshade":   "Lampe",
	"light":       "Lampe",
	"lighting":    "Lampe",
	"chandelier":  "Lampe",
	"table":       "Tisch",
	"desk":        "Tisch",
	"dining":      "Tisch",
	"sofa":        "Sofa",
	"couch":       "Sofa",
	"loveseat":    "Sofa",
	"chair":       "Stuhl",
	"armchair":    "Stuhl",
	"stool":       "Stuhl",
	"shelf":       "Regal",
	"shelving":    "Regal",
	"bookcase":    "Regal",
	"cabinet":     "Regal",
	"bed":         "Bett",
	"mattress":    "Bett",
	"wardrobe":    "Schrank",
	"closet":      "Schrank",
	"dresser":     "Kommode",
	"sideboard":   "Kommode",
	"rug":         "Teppich",
	"carpet":      "Teppich",
	"mirror":      "Spiegel",
}

// styleKeywords 把识别标签映射为目录风格。
var styleKeywords = map[string]string{
	"scandinavian": "Skandinavisch",
	"nordic":       "Skandinavisch",
	"minimalist":   "Minimalistisch",
	"minimalism":   "Minimalistisch",
	"industrial":   "Industrial",
	"loft":         "Industrial",
	"bohemian":     "Boho",
	"boho":         "Boho",
	"rattan":       "Boho",
	"wicker":       "Boho",
	"macrame":      "Boho",
	"rustic":       "Landhaus",
	"farmhouse":    "Landhaus",
	"cottage":      "Landhaus",
	"vintage":      "Landhaus",
}

// materialKeywords 识别标签中的材质词。
var materialKeywords = map[string]string{
	"wood":      "Holz",
	"wooden":    "Holz",
	"oak":       "Holz",
	"pine":      "Holz",
	"metal":     "Metall",
	"steel":     "Metall",
	"iron":      "Metall",
	"glass":     "Glas",
	"leather":   "Leder",
	"fabric":    "Stoff",
	"textile":   "Stoff",
	"velvet":    "Samt",
	"marble":    "Marmor",
	"concrete":  "Beton",
	"bamboo":    "Bambus",
	"plastic":   "Kunststoff",
}

// mapLabels 把识别标签归约为一条分析结果。
//
// 分类、风格、材质各取得分最高的命中标签。同一标签内从末尾的词
// 向前匹配：英文名词短语的中心词在最后（"desk lamp" 是灯，不是桌），
// 修饰词不得抢占中心词的槽位。两个风格线索都缺席时结合材质推断：
// 金属/混凝土偏 Industrial，藤编偏 Boho。
func mapLabels(labels []scoredLabel, colors []string) model.AnalysisResult {
	var result model.AnalysisResult
	result.Colors = colors

	bestCategory, bestStyle, bestMaterial := 0.0, 0.0, 0.0
	for _, label := range labels {
		words := strings.Fields(strings.ToLower(label.Description))
		if cat, ok := headwordMatch(words, categoryKeywords); ok && label.Score > bestCategory {
			result.Category = cat
			bestCategory = label.Score
		}
		if style, ok := headwordMatch(words, styleKeywords); ok && label.Score > bestStyle {
			result.Style = style
			bestStyle = label.Score
		}
		if mat, ok := headwordMatch(words, materialKeywords); ok && label.Score > bestMaterial {
			result.Material = mat
			bestMaterial = label.Score
		}
	}

	if result.Style == "" {
		switch result.Material {
		case "Metall", "Beton":
			result.Style = "Industrial"
		case "Bambus":
			result.Style = "Boho"
		}
	}

	result.Confidence = labels[0].Score
	result.Description = labels[0].Description
	result.SearchTerms = buildSearchTerms(result)
	return result
}

// headwordMatch 在一个标签的词序列里由后向前找第一个命中词典的词。
func headwordMatch(words []string, dict map[string]string) (string, bool) {
	for i := len(words) - 1; i >= 0; i-- {
		if v, ok := dict[words[i]]; ok {
			return v, true
		}
	}
	return "", false
}

// buildSearchTerms 组合分类、风格、材质与主色为搜索词。
func buildSearchTerms(r model.AnalysisResult) []string {
	terms := make([]string, 0, 4)
	if r.Category != "" {
		terms = append(terms, r.Category)
		if r.Style != "" {
			terms = append(terms, r.Style+" "+r.Category)
		}
		if r.Material != "" {
			terms = append(terms, r.Category+" "+r.Material)
		}
		if len(r.Colors) > 0 {
			terms = append(terms, r.Category+" "+r.Colors[0])
		}
	} else if r.Style != "" {
		terms = append(terms, r.Style+" Möbel")
	}
	return terms
}

// namedColor 参考色板，主色按欧氏距离匹配最近的德语颜色名。
type namedColor struct {
	name    string
	r, g, b float64
}

var palette = []namedColor{
	{"Weiß", 245, 245, 245},
	{"Schwarz", 20, 20, 20},
	{"Grau", 130, 130, 130},
	{"Braun", 120, 75, 40},
	{"Beige", 222, 202, 170},
	{"Rot", 190, 40, 40},
	{"Grün", 55, 130, 70},
	{"Blau", 50, 80, 170},
	{"Gelb", 230, 200, 60},
	{"Orange", 230, 130, 40},
	{"Rosa", 230, 160, 180},
}

// dominantColorNames 把主色列表映射为最多 max 个去重的颜色名，
// 按像素占比从高到低。
func dominantColorNames(colors []*visionpb.ColorInfo, max int) []string {
	names := make([]string, 0, max)
	seen := make(map[string]bool)
	for _, info := range colors {
		if info == nil || info.Color == nil {
			continue
		}
		name := nearestColorName(float64(info.Color.Red), float64(info.Color.Green), float64(info.Color.Blue))
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
		if len(names) >= max {
			break
		}
	}
	return names
}

func nearestColorName(r, g, b float64) string {
	best := palette[0].name
	bestDist := math.MaxFloat64
	for _, c := range palette {
		dist := (r-c.r)*(r-c.r) + (g-c.g)*(g-c.g) + (b-c.b)*(b-c.b)
		if dist < bestDist {
			bestDist = dist
			best = c.name
		}
	}
	return best
}
