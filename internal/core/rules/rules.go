// Package rules holds the business checks applied to a receipt after the
// vision model has read it: fake threshold, beneficiary allow-list and the
// service catalog used to label payments from the chat history.
package rules

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Service is an item of the catalog customers pay for
type Service struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type Rules struct {
	// FakeConfidenceThreshold: a receipt flagged as fake is rejected only above this confidence
	FakeConfidenceThreshold int           `yaml:"fake_confidence_threshold"`
	SupportPhone            string        `yaml:"support_phone"`
	Beneficiaries           []string      `yaml:"beneficiaries"`
	Services                []Service     `yaml:"services"`
	ServiceMinScore         float64       `yaml:"service_min_score"`
	HistoryWindow           int           `yaml:"history_window"`
	LockTTL                 time.Duration `yaml:"lock_ttl"`
}

// Default returns the rules used when no RULES_FILE is configured
func Default() *Rules {
	r := &Rules{
		FakeConfidenceThreshold: 85,
		SupportPhone:            "0980757208",
		Beneficiaries:           []string{"Comercial Andina S.A."},
		Services: []Service{
			{Name: "Internet Hogar", Aliases: []string{"internet", "plan hogar", "wifi"}},
			{Name: "Television", Aliases: []string{"tv", "cable", "television"}},
			{Name: "Telefonia", Aliases: []string{"telefono", "linea fija"}},
		},
		ServiceMinScore: 0.8,
		HistoryWindow:   10,
		LockTTL:         30 * time.Second,
	}
	return r
}

// Load reads rules from a YAML file. Missing keys keep their default value.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	r := Default()
	r.Beneficiaries = nil
	r.Services = nil
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rules) Validate() error {
	if r.FakeConfidenceThreshold < 0 || r.FakeConfidenceThreshold > 100 {
		return fmt.Errorf("fake_confidence_threshold must be between 0 and 100, got %d", r.FakeConfidenceThreshold)
	}
	if len(r.Beneficiaries) == 0 {
		return errors.New("at least one beneficiary is required")
	}
	if r.ServiceMinScore <= 0 || r.ServiceMinScore > 1 {
		return fmt.Errorf("service_min_score must be in (0, 1], got %v", r.ServiceMinScore)
	}
	if r.HistoryWindow < 0 {
		return fmt.Errorf("history_window cannot be negative")
	}
	if r.LockTTL <= 0 {
		r.LockTTL = 30 * time.Second
	}
	return nil
}
