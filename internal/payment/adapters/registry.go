package adapters

import (
	"strings"

	"github.com/smallbiznis/covera/internal/payment/domain"
)

type Registry struct {
	collectors map[string]domain.Collector
}

func NewRegistry(collectors ...domain.Collector) *Registry {
	registry := &Registry{collectors: map[string]domain.Collector{}}
	for _, collector := range collectors {
		if collector == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(collector.Provider()))
		if provider == "" {
			continue
		}
		registry.collectors[provider] = collector
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	_, err := r.Collector(provider)
	return err == nil
}

func (r *Registry) Collector(provider string) (domain.Collector, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	collector, ok := r.collectors[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return collector, nil
}
