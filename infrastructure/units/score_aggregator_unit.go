package units

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/logging"
	"github.com/ahrav/go-qra/internal/ports"
	"github.com/ahrav/go-qra/internal/scoring"
)

var _ ports.Unit = (*ScoreAggregatorUnit)(nil)

// ScoreAggregatorUnit turns filtered judgments into per-task and
// per-system scores.
//
// State Requirements:
//   - domain.KeyFilteredJudgments
//
// State Updates:
//   - domain.KeyTaskScores
//   - domain.KeySystemMetrics
//   - domain.KeySignificance, when Significance is set
type ScoreAggregatorUnit struct {
	name   string
	config ScoreAggregatorConfig
	tracer trace.Tracer
	logger *slog.Logger
}

// ScoreAggregatorConfig controls score aggregation.
type ScoreAggregatorConfig struct {
	// GroupBy keys the task score table: "task_id" or "dataset_item".
	GroupBy string `yaml:"group_by" json:"group_by" validate:"required,oneof=task_id dataset_item"`

	// Significance runs a one-way ANOVA over the task score table,
	// followed by Tukey's HSD when the ANOVA is defined.
	Significance bool `yaml:"significance" json:"significance"`

	// Alpha is the family-wise error rate of the Tukey test. Zero selects
	// scoring.DefaultAlpha.
	Alpha float64 `yaml:"alpha" json:"alpha" validate:"omitempty,gt=0,lt=1"`
}

// DefaultScoreAggregatorConfig groups by task id and runs the ANOVA.
func DefaultScoreAggregatorConfig() ScoreAggregatorConfig {
	return ScoreAggregatorConfig{GroupBy: string(scoring.GroupByTask), Significance: true, Alpha: scoring.DefaultAlpha}
}

// NewScoreAggregatorUnit creates a score aggregator unit.
func NewScoreAggregatorUnit(name string, config ScoreAggregatorConfig) (*ScoreAggregatorUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ScoreAggregatorUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("score-aggregator-unit"),
		logger: logging.New(TypeScoreAggregator).With(slog.String("unit", name)),
	}, nil
}

// Name returns the unit id.
func (u *ScoreAggregatorUnit) Name() string { return u.name }

// Execute computes the score tables.
func (u *ScoreAggregatorUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "ScoreAggregatorUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeScoreAggregator),
			attribute.String("unit.id", u.name),
			attribute.String("config.group_by", u.config.GroupBy),
		),
	)
	defer span.End()

	judgments, err := domain.MustGet(state, domain.KeyFilteredJudgments)
	if err != nil {
		return state, fail(span, err)
	}

	table, err := scoring.TaskScores(judgments, scoring.GroupBy(u.config.GroupBy))
	if err != nil {
		return state, fail(span, fmt.Errorf("task scores: %w", err))
	}
	metrics, err := scoring.SystemMetrics(judgments)
	if err != nil {
		return state, fail(span, fmt.Errorf("system metrics: %w", err))
	}

	for _, m := range metrics {
		attrs := []any{
			slog.String("system", m.System.String()),
			slog.Int("wins", m.Wins),
			slog.Int("losses", m.Losses),
		}
		if m.BestWorstScale != nil {
			attrs = append(attrs, slog.Float64("best_worst_scale", *m.BestWorstScale))
		}
		u.logger.DebugContext(ctx, "system metrics", attrs...)
	}
	span.SetAttributes(
		attribute.Int("task_scores.rows", len(table.Rows)),
		attribute.Bool("task_scores.balanced", table.Balanced()),
	)

	next := domain.With(state, domain.KeyTaskScores, table)
	next = domain.With(next, domain.KeySystemMetrics, metrics)

	if u.config.Significance {
		sig := scoring.OneWayANOVA(table)
		if sig.Defined {
			sig.Tukey = scoring.TukeyHSD(table, u.config.Alpha)
			u.logger.InfoContext(ctx, "one-way anova", slog.Float64("f", sig.F), slog.Float64("p", sig.P))
			for _, c := range sig.Tukey {
				u.logger.DebugContext(ctx, "tukey hsd",
					slog.String("group1", c.SystemA.String()),
					slog.String("group2", c.SystemB.String()),
					slog.Float64("meandiff", c.MeanDiff),
					slog.Float64("p_adj", c.P),
					slog.Bool("reject", c.Reject))
			}
		} else {
			u.logger.WarnContext(ctx, "one-way anova undefined", slog.String("reason", sig.Reason))
		}
		next = domain.With(next, domain.KeySignificance, sig)
	}
	return next, nil
}

// Validate checks the configuration.
func (u *ScoreAggregatorUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from YAML.
func (u *ScoreAggregatorUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultScoreAggregatorConfig()
	if err := decodeParameters(params, &config); err != nil {
		return err
	}
	u.config = config
	return nil
}

// NewScoreAggregatorFromConfig creates a ScoreAggregatorUnit from a
// configuration map.
func NewScoreAggregatorFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultScoreAggregatorConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewScoreAggregatorUnit(id, cfg)
}
