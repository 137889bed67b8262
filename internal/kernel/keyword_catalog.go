package kernel

import (
	"context"
	"fmt"
	"sort"

	"wedding-bot/pkg/chat"
)

// kernelKeywordCatalog exposes kernel keyword registrations through ServiceRegistry.
type kernelKeywordCatalog struct {
	kernel *Kernel
}

// ListKeywords returns one entry per keyword sorted by module then keyword name.
func (c *kernelKeywordCatalog) ListKeywords(ctx context.Context) ([]chat.RegisteredKeyword, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	if c == nil || c.kernel == nil {
		return nil, fmt.Errorf("list keywords: nil catalog")
	}

	c.kernel.mu.RLock()
	unique := make(map[string]chat.RegisteredKeyword, len(c.kernel.keywords))
	for _, registration := range c.kernel.keywords {
		key := registration.moduleName + "\x00" + registration.spec.Name
		unique[key] = chat.RegisteredKeyword{
			ModuleName: registration.moduleName,
			Keyword:    cloneKeywordSpec(registration.spec),
		}
	}
	c.kernel.mu.RUnlock()

	keywords := make([]chat.RegisteredKeyword, 0, len(unique))
	for _, keyword := range unique {
		keywords = append(keywords, keyword)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].ModuleName == keywords[j].ModuleName {
			return keywords[i].Keyword.Name < keywords[j].Keyword.Name
		}
		return keywords[i].ModuleName < keywords[j].ModuleName
	})

	return keywords, nil
}

var _ chat.KeywordCatalog = (*kernelKeywordCatalog)(nil)
