package core

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/mikey/ransomware-detector/internal/utils"
	"go.uber.org/zap"
)

// DetectorService is the core service for ransomware detection
type DetectorService struct {
	predictor    Predictor
	explainer    Explainer
	narrator     Narrator
	cache        CacheRepository
	allowlist    Allowlist
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	threshold    float64
}

// NewDetectorService creates a new detector service. explainer, narrator,
// cache and allowlist may be nil.
func NewDetectorService(
	predictor Predictor,
	explainer Explainer,
	narrator Narrator,
	cache CacheRepository,
	allowlist Allowlist,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
	threshold float64,
) *DetectorService {
	return &DetectorService{
		predictor:    predictor,
		explainer:    explainer,
		narrator:     narrator,
		cache:        cache,
		allowlist:    allowlist,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
		threshold:    threshold,
	}
}

// Analyze classifies the sample at req.Path and optionally explains it
func (s *DetectorService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisReport, error) {
	start := time.Now()

	digest, err := utils.HashFile(req.Path, utils.DefaultHashChunkSize)
	if err != nil {
		return nil, err
	}

	filename := req.DisplayName
	if filename == "" {
		filename = filepath.Base(req.Path)
	}

	report := &AnalysisReport{
		AnalysisID: uuid.NewString(),
		Filename:   filename,
		SHA256:     digest,
		AnalyzedAt: start,
	}
	if mt, err := mimetype.DetectFile(req.Path); err == nil {
		report.MimeType = mt.String()
	}

	// Check allowlist first
	if s.allowlist != nil && s.allowlist.IsAllowlisted(digest) {
		s.logger.Info("Skipping analysis for allowlisted sample",
			zap.String("sha256", digest),
			zap.String("action", "allowlist_bypass"))

		report.Label = LabelBenign
		report.Source = SourceAllowlist
		report.Duration = time.Since(start)
		return report, nil
	}

	prediction := s.lookupCache(ctx, digest, filename)
	if prediction != nil {
		report.Source = SourceCache
	} else {
		prediction, err = s.predictor.Predict(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		if prediction.SHA256 != digest {
			s.logger.Warn("Sample changed during analysis",
				zap.String("path", req.Path),
				zap.String("before", digest),
				zap.String("after", prediction.SHA256))
		}
		prediction.Filename = filename
		report.Source = SourceModel
		s.storeCache(ctx, prediction)
	}

	report.Prediction = prediction
	report.Label = prediction.Label
	report.Probability = prediction.Probability
	report.IsRansomware = s.IsRansomware(report)

	if req.Explain && s.explainer != nil {
		explanation, err := s.explainer.ExplainPrediction(ctx, prediction)
		if err != nil {
			s.logger.Warn("Explanation failed", zap.String("sha256", digest), zap.Error(err))
			report.ExplanationError = fmt.Sprintf("explanation unavailable: %v", err)
		} else {
			report.Explanation = explanation
		}
	}

	if s.narrator != nil {
		narrative, err := s.narrator.Narrate(ctx, report)
		if err != nil {
			s.logger.Warn("Narration failed", zap.String("sha256", digest), zap.Error(err))
		} else {
			report.Narrative = narrative
		}
	}

	report.Duration = time.Since(start)

	s.logger.Info("Sample analyzed",
		zap.String("analysis_id", report.AnalysisID),
		zap.String("filename", report.Filename),
		zap.String("sha256", report.SHA256),
		zap.String("label", report.Label),
		zap.Float64("prob", report.Probability),
		zap.String("source", report.Source),
		zap.Duration("duration", report.Duration))

	return report, nil
}

func (s *DetectorService) lookupCache(ctx context.Context, digest, filename string) *PredictionResult {
	if !s.cacheEnabled {
		return nil
	}

	entry, err := s.cache.Get(ctx, digest)
	if err != nil {
		return nil
	}

	s.logger.Debug("Cache hit for sample", zap.String("sha256", digest))
	return &PredictionResult{
		Filename:    filename,
		SHA256:      entry.SHA256,
		Probability: entry.Probability,
		Label:       entry.Label,
		Features:    entry.Features,
	}
}

func (s *DetectorService) storeCache(ctx context.Context, prediction *PredictionResult) {
	if !s.cacheEnabled {
		return
	}

	now := time.Now()
	entry := &CacheEntry{
		SHA256:      prediction.SHA256,
		Filename:    prediction.Filename,
		Label:       prediction.Label,
		Probability: prediction.Probability,
		Features:    prediction.Features,
		LastSeen:    now,
		ExpiresAt:   now.Add(s.cacheTTL),
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Error("Failed to update cache", zap.Error(err))
	}
}

// IsRansomware applies the detection threshold to a report
func (s *DetectorService) IsRansomware(report *AnalysisReport) bool {
	if report.Source == SourceAllowlist {
		return false
	}
	return report.Probability >= s.threshold
}
