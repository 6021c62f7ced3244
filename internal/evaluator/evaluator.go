package evaluator

import (
	"github.com/ARodriguezHacks/covid-calendar/internal/domain"

	"go.uber.org/zap"
)

// Evaluator 暴露与指导评估器（服务层使用，带日志和规则参数）
type Evaluator struct {
	policy Policy
	logger *zap.Logger
}

// NewEvaluator 创建评估器
func NewEvaluator(policy Policy, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		policy: policy,
		logger: logger,
	}
}

// Policy 当前隔离规则
func (e *Evaluator) Policy() Policy {
	return e.policy
}

// Reconcile 评估成员状态跳变后的暴露变更
func (e *Evaluator) Reconcile(
	person *domain.Person,
	household []*domain.Person,
	wasContagious bool,
	existing []domain.ExposureEvent,
) domain.ExposureChanges {
	contagious := IsContagious(person)
	changes := ReconcileExposures(person, household, contagious, wasContagious, existing)

	if contagious != wasContagious {
		e.logger.Debug("Contagious status changed",
			zap.String("person_id", person.ID),
			zap.Bool("contagious", contagious),
			zap.Int("to_add", len(changes.ToAdd)),
			zap.Int("to_remove", len(changes.ToRemove)),
		)
	}

	return changes
}

// Guidance 计算家庭指导
func (e *Evaluator) Guidance(household []*domain.Person) []domain.GuidanceResult {
	results := e.policy.HouseholdGuidance(household)

	for _, r := range results {
		if r.Date == nil {
			e.logger.Debug("No guidance available",
				zap.String("person_id", r.Person.ID),
			)
		}
	}

	return results
}
