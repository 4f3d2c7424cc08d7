package rules

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"inboxpilot/internal/model"
	"inboxpilot/internal/repository"
)

var ErrRuleNotFound = errors.New("rule not found")

// Service owns rule CRUD. Configs are validated on write so the
// evaluation path only meets malformed configs that predate a
// validation change, and every mutation is scoped to the owning user.
type Service struct {
	rules  *repository.RuleRepository
	logger *zap.Logger
}

func NewService(rules *repository.RuleRepository, logger *zap.Logger) *Service {
	return &Service{rules: rules, logger: logger}
}

func (s *Service) validate(ru *model.AutomationRule) error {
	if ru.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if _, err := ParseTrigger(ru.TriggerType, ru.TriggerConfig); err != nil {
		return err
	}
	if _, err := ParseAction(ru.ActionType, ru.ActionConfig); err != nil {
		return err
	}
	// Schedule rules fire without an item, so only item-independent
	// actions make sense.
	if ru.TriggerType == model.TriggerSchedule && ru.ActionType != model.ActionNotify {
		return fmt.Errorf("schedule rules support the notify action only")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, ru *model.AutomationRule) error {
	if err := s.validate(ru); err != nil {
		return err
	}
	if err := s.rules.Create(ctx, ru); err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	s.logger.Info("rule created",
		zap.Int("rule_id", ru.ID),
		zap.Int("user_id", ru.UserID),
		zap.String("trigger", string(ru.TriggerType)),
		zap.String("action", string(ru.ActionType)))
	return nil
}

func (s *Service) List(ctx context.Context, userID int) ([]model.AutomationRule, error) {
	return s.rules.ListByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, id, userID int) (*model.AutomationRule, error) {
	ru, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return nil, ErrRuleNotFound
	}
	if ru.UserID != userID {
		return nil, ErrRuleNotFound
	}
	return ru, nil
}

func (s *Service) Update(ctx context.Context, ru *model.AutomationRule) error {
	if err := s.validate(ru); err != nil {
		return err
	}
	ok, err := s.rules.Update(ctx, ru)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if !ok {
		return ErrRuleNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id, userID int) error {
	ok, err := s.rules.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if !ok {
		return ErrRuleNotFound
	}
	s.logger.Info("rule deleted", zap.Int("rule_id", id), zap.Int("user_id", userID))
	return nil
}

// CreateFromTemplate instantiates a built-in template for a user.
func (s *Service) CreateFromTemplate(ctx context.Context, userID int, templateID string) (*model.AutomationRule, error) {
	tpl, ok := TemplateByID(templateID)
	if !ok {
		return nil, fmt.Errorf("unknown template: %s", templateID)
	}
	ru := tpl.Instantiate(userID)
	if err := s.Create(ctx, ru); err != nil {
		return nil, err
	}
	return ru, nil
}
