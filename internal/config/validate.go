package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/relrun/relrun/internal/relerr"
	"github.com/relrun/relrun/internal/step"
)

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New()
	})
	return validatorInst
}

// Validate performs schema validation on the ambient Settings block plus the
// structural checks the original step-kind rules require: a step whose kind
// is Singleton can only be configured with a Singleton step definition (the
// most permissive kind is Singleton itself, so Shared/Discover definitions
// would put more than one plugin on a step that must have exactly one).
func Validate(cfg *Config) error {
	if err := validatorInstance().Struct(cfg.Settings); err != nil {
		return relerr.NewConfigError("settings", "invalid settings", err)
	}

	for s, def := range cfg.Steps {
		if s.Kind() != step.Singleton {
			continue
		}
		if def.Kind != StepDefinitionSingleton {
			return relerr.NewConfigError(
				fmt.Sprintf("steps.%s", s),
				fmt.Sprintf("wrong step kind for %q: expected singleton, got %s", s, stepDefinitionKindName(def.Kind)),
				nil,
			)
		}
	}

	for s, def := range cfg.Steps {
		for _, name := range stepDefinitionPluginNames(def) {
			if !cfg.Plugins.Contains(name) {
				return relerr.NewConfigError(
					fmt.Sprintf("steps.%s", s),
					fmt.Sprintf("references undeclared plugin %q", name),
					nil,
				)
			}
		}
	}

	return nil
}

func stepDefinitionPluginNames(def StepDefinition) []string {
	switch def.Kind {
	case StepDefinitionSingleton:
		return []string{def.Singleton}
	case StepDefinitionShared:
		return def.Shared
	default:
		return nil
	}
}

func stepDefinitionKindName(k StepDefinitionKind) string {
	switch k {
	case StepDefinitionDiscover:
		return "discover"
	case StepDefinitionSingleton:
		return "singleton"
	case StepDefinitionShared:
		return "shared"
	default:
		return "unknown"
	}
}
