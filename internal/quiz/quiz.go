package quiz

import "furniq/internal/model"

// Styles 已知风格标签的声明顺序。
//
// 平票时按此顺序取第一个命中项——这是刻意固定的契约，
// 不依赖 map 迭代等偶然顺序。
var Styles = []string{
	"Skandinavisch",
	"Minimalistisch",
	"Industrial",
	"Boho",
	"Landhaus",
}

// Questions 返回风格测试的静态题目集（五题，每题四个选项）。
func Questions() []model.QuizQuestion {
	return questions
}

var questions = []model.QuizQuestion{
	{
		ID:   1,
		Text: "Welche Farbwelt spricht dich am meisten an?",
		Options: []model.QuizOption{
			{Key: "A", Label: "Helles Holz und Weiß", Style: "Skandinavisch"},
			{Key: "B", Label: "Schwarz, Grau und Beton", Style: "Industrial"},
			{Key: "C", Label: "Erdtöne und warme Muster", Style: "Boho"},
			{Key: "D", Label: "Creme und Naturtöne", Style: "Landhaus"},
		},
	},
	{
		ID:   2,
		Text: "Wie soll sich dein Wohnzimmer anfühlen?",
		Options: []model.QuizOption{
			{Key: "A", Label: "Hell und luftig", Style: "Skandinavisch"},
			{Key: "B", Label: "Aufgeräumt und reduziert", Style: "Minimalistisch"},
			{Key: "C", Label: "Gemütlich und verspielt", Style: "Boho"},
			{Key: "D", Label: "Rustikal und bodenständig", Style: "Landhaus"},
		},
	},
	{
		ID:   3,
		Text: "Welches Material darf nicht fehlen?",
		Options: []model.QuizOption{
			{Key: "A", Label: "Helles Birkenholz", Style: "Skandinavisch"},
			{Key: "B", Label: "Rohstahl und Leder", Style: "Industrial"},
			{Key: "C", Label: "Rattan und Makramee", Style: "Boho"},
			{Key: "D", Label: "Massive Eiche", Style: "Landhaus"},
		},
	},
	{
		ID:   4,
		Text: "Wie viel Dekoration brauchst du?",
		Options: []model.QuizOption{
			{Key: "A", Label: "So wenig wie möglich", Style: "Minimalistisch"},
			{Key: "B", Label: "Ein paar Kerzen und Textilien", Style: "Skandinavisch"},
			{Key: "C", Label: "Viele Pflanzen und Körbe", Style: "Boho"},
			{Key: "D", Label: "Fabriklampen und alte Schilder", Style: "Industrial"},
		},
	},
	{
		ID:   5,
		Text: "Dein Traum-Esstisch ist …",
		Options: []model.QuizOption{
			{Key: "A", Label: "Schlicht, hell, funktional", Style: "Skandinavisch"},
			{Key: "B", Label: "Eine alte Werkbank", Style: "Industrial"},
			{Key: "C", Label: "Niedrig, mit Sitzkissen", Style: "Boho"},
			{Key: "D", Label: "Eine lange Bauerntafel", Style: "Landhaus"},
		},
	},
}

// Classify 把一次测试的作答映射为主导风格标签。
//
// 每个已知风格从零计数开始；每条作答按题目 ID 与选项键解析出绑定
// 的风格并 +1。无法解析的作答（未知题目或未知选项）静默跳过，
// 不会使整次分类失败。最终取计数最高的风格，平票按 Styles 的声明
// 顺序决出。纯函数：相同作答（不论顺序）总是得到相同结果。
func Classify(answers []model.QuizAnswer) string {
	counts := make(map[string]int, len(Styles))
	for _, s := range Styles {
		counts[s] = 0
	}

	byID := make(map[int]model.QuizQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		for _, opt := range q.Options {
			if opt.Key == a.SelectedOption {
				counts[opt.Style]++
				break
			}
		}
	}

	best := Styles[0]
	bestCount := counts[best]
	for _, s := range Styles[1:] {
		if counts[s] > bestCount {
			best = s
			bestCount = counts[s]
		}
	}
	return best
}
