package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/modeling"
	"github.com/yourusername/prop-edge/internal/models"
	"github.com/yourusername/prop-edge/internal/repository"
	"github.com/yourusername/prop-edge/internal/stats"
)

// Engine prices props: it resolves a model, persists its prediction, and
// turns prediction plus market line into a deduplicated Valuation row.
//
// Valuate returns models.ErrPriceUnavailable whenever a price cannot be
// produced (missing prop, no default model, prediction failure). Callers must
// treat that as "no price", never as zero EV.
type Engine struct {
	props       repository.PropRepository
	predictions repository.PredictionRepository
	valuations  repository.ValuationRepository
	registry    *modeling.Registry
	log         *logrus.Entry
}

// NewEngine creates a valuation engine
func NewEngine(
	props repository.PropRepository,
	predictions repository.PredictionRepository,
	valuations repository.ValuationRepository,
	registry *modeling.Registry,
	logger *logrus.Logger,
) *Engine {
	return &Engine{
		props:       props,
		predictions: predictions,
		valuations:  valuations,
		registry:    registry,
		log:         logger.WithField("component", "valuation_engine"),
	}
}

// Valuate prices one prop. When modelVersionID is empty the prop type's
// default model is used. Re-valuating an identical (prop, model, line,
// schema) combination is an idempotent read: the stored row comes back
// verbatim.
func (e *Engine) Valuate(ctx context.Context, propID int64, modelVersionID string) (*models.Valuation, error) {
	started := time.Now()

	prop, err := e.props.GetProp(ctx, propID)
	if err != nil {
		metrics.RecordValuationUnavailable()
		if errors.Is(err, models.ErrNotFound) {
			e.log.WithField("prop_id", propID).Warn("prop not found in catalog")
			return nil, models.ErrPriceUnavailable
		}
		e.log.WithField("prop_id", propID).WithError(err).Warn("prop catalog unavailable")
		return nil, models.ErrPriceUnavailable
	}

	model, err := e.resolveModel(prop.PropType, modelVersionID)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"prop_id":          propID,
			"model_version_id": modelVersionID,
			"prop_type":        prop.PropType,
		}).WithError(err).Warn("no model available")
		metrics.RecordValuationUnavailable()
		return nil, models.ErrPriceUnavailable
	}

	prediction, err := model.Predict(ctx, prop.PlayerID, prop.PropType, nil)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"prop_id":          propID,
			"model_version_id": model.VersionID(),
		}).WithError(err).Warn("prediction failed")
		metrics.RecordValuationUnavailable()
		return nil, models.ErrPriceUnavailable
	}

	stored, err := e.predictions.GetOrCreate(ctx, &models.ModelPrediction{
		ModelVersionID:     model.VersionID(),
		PropID:             prop.PropID,
		PlayerID:           prop.PlayerID,
		PropType:           prop.PropType,
		Mean:               prediction.Mean,
		Variance:           prediction.Variance,
		DistributionFamily: prediction.Family,
		SampleSize:         prediction.SampleSize,
		FeaturesHash:       prediction.FeaturesHash,
	})
	if err != nil {
		return nil, fmt.Errorf("persisting prediction: %w", err)
	}

	probOver := stats.ProbOverLine(prop.OfferedLine, stored.Mean, stored.Variance, stored.DistributionFamily)
	ev, _ := stats.SidedExpectedValue(probOver, prop.PayoutSchema)

	valuation := &models.Valuation{
		ModelPredictionID: stored.ID,
		ModelVersionID:    stored.ModelVersionID,
		PropID:            prop.PropID,
		OfferedLine:       prop.OfferedLine,
		FairLine:          stats.FairLine(stored.Mean, stored.Variance, stored.DistributionFamily),
		ProbOver:          probOver,
		ProbUnder:         1 - probOver,
		ExpectedValue:     ev,
		PayoutSchema:      prop.PayoutSchema,
		VolatilityScore:   stats.VolatilityScore(stored.Mean, stored.Variance),
		ValuationHash:     models.ComputeValuationHash(prop.PropID, stored.ModelVersionID, prop.OfferedLine, prop.PayoutSchema),
	}

	result, err := e.valuations.GetOrCreate(ctx, valuation)
	if err != nil {
		return nil, fmt.Errorf("persisting valuation: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"prop_id":          prop.PropID,
		"model_version_id": result.ModelVersionID,
		"offered_line":     result.OfferedLine,
		"fair_line":        result.FairLine,
		"expected_value":   result.ExpectedValue,
		"valuation_hash":   result.ValuationHash,
	}).Debug("valuated prop")
	metrics.RecordValuation(time.Since(started).Seconds())

	return result, nil
}

func (e *Engine) resolveModel(propType models.PropType, modelVersionID string) (modeling.Model, error) {
	if modelVersionID != "" {
		return e.registry.GetModel(modelVersionID)
	}
	return e.registry.GetDefaultModel(propType)
}
