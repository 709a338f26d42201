package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"furniq/internal/model"
	"furniq/internal/pkg/ratelimit"
)

// ErrNoAnnotations 表示识别服务没有返回任何可用标签。
var ErrNoAnnotations = errors.New("no usable annotations")

// Analyzer 分析家具照片，产出分类、风格等标签。
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string) (model.AnalysisResult, error)
	Close() error
}

// GCPAnalyzer 基于 Cloud Vision 的图片分析器。
//
// 它负责：
//  1. 对图片做标签识别与主色提取
//  2. 把英文标签映射到目录的分类/风格词表
//  3. 生成用于购物搜索的查询词
type GCPAnalyzer struct {
	client  *vision.ImageAnnotatorClient
	limiter *ratelimit.RateLimiter
	logger  *slog.Logger
	timeout time.Duration
}

// NewGCPAnalyzer 创建分析器。credentialsFile 为空时使用
// 默认应用凭据。limiter 可以为 nil。
func NewGCPAnalyzer(ctx context.Context, credentialsFile string, limiter *ratelimit.RateLimiter, logger *slog.Logger) (*GCPAnalyzer, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	return &GCPAnalyzer{
		client:  client,
		limiter: limiter,
		logger:  logger,
		timeout: 30 * time.Second,
	}, nil
}

// Close 释放底层连接。
func (a *GCPAnalyzer) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}

// Analyze 对图片 URL 做一次识别并映射为目录标签。
func (a *GCPAnalyzer) Analyze(ctx context.Context, imageURL string) (model.AnalysisResult, error) {
	if imageURL == "" {
		return model.AnalysisResult{}, errors.New("image url is empty")
	}

	if a.limiter != nil {
		if err := a.limiter.Acquire(ctx); err != nil {
			return model.AnalysisResult{}, fmt.Errorf("vision rate limit: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{
			Source: &visionpb.ImageSource{ImageUri: imageURL},
		},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 15},
			{Type: visionpb.Feature_IMAGE_PROPERTIES},
		},
	}

	br := &visionpb.BatchAnnotateImagesRequest{Requests: []*visionpb.AnnotateImageRequest{req}}
	resp, err := a.client.BatchAnnotateImages(ctx, br)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return model.AnalysisResult{}, ErrNoAnnotations
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return model.AnalysisResult{}, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	labels := make([]scoredLabel, 0, len(r0.LabelAnnotations))
	for _, ann := range r0.LabelAnnotations {
		if ann == nil || ann.Description == "" {
			continue
		}
		labels = append(labels, scoredLabel{
			Description: ann.Description,
			Score:       float64(ann.Score),
		})
	}
	if len(labels) == 0 {
		return model.AnalysisResult{}, ErrNoAnnotations
	}

	var colors []string
	if props := r0.ImagePropertiesAnnotation; props != nil && props.DominantColors != nil {
		colors = dominantColorNames(props.DominantColors.Colors, 3)
	}

	result := mapLabels(labels, colors)
	a.logger.Info("image analyzed",
		slog.String("category", result.Category),
		slog.String("style", result.Style),
		slog.Float64("confidence", result.Confidence))
	return result, nil
}
