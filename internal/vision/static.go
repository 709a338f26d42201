package vision

import (
	"context"

	"furniq/internal/model"
)

// StaticAnalyzer 是没有配置视觉服务时的后备分析器，
// 对任何图片返回固定的占位结果，保证分析链路仍可走通。
type StaticAnalyzer struct {
	result model.AnalysisResult
}

// NewStaticAnalyzer 创建后备分析器。
func NewStaticAnalyzer() *StaticAnalyzer {
	return &StaticAnalyzer{
		result: model.AnalysisResult{
			Category:    "Lampe",
			Style:       "Skandinavisch",
			Colors:      []string{"Weiß", "Holz"},
			Material:    "Holz",
			Description: "Skandinavische Lampe aus hellem Holz",
			Confidence:  0.5,
			SearchTerms: []string{"Lampe", "Skandinavisch Lampe", "Lampe Holz"},
		},
	}
}

// Analyze 返回固定结果。
func (s *StaticAnalyzer) Analyze(_ context.Context, _ string) (model.AnalysisResult, error) {
	return s.result, nil
}

// Close 无须释放资源。
func (s *StaticAnalyzer) Close() error {
	return nil
}
