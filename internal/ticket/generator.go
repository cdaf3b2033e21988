// Package ticket turns free-text requests into validated ticket breakdowns,
// enriches them with related wiki pages and issues, and creates them in Jira.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/config"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/models"
)

// LanguageAuto asks the generator to detect the request language.
const LanguageAuto = "auto"

// TextGenerator produces LLM completions.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// RelatedResourceSearcher finds resources for a keyword string.
type RelatedResourceSearcher interface {
	SearchRelatedResources(ctx context.Context, keywords string) []models.RelatedResource
}

// EnrichOptions controls GenerateEnrichedBreakdown.
type EnrichOptions struct {
	// Language is auto, en or ja.
	Language     string
	EnableSearch bool
}

// OptionsFromConfig returns the enrichment options configured for the
// process.
func OptionsFromConfig(cfg config.TicketConfig) EnrichOptions {
	return EnrichOptions{Language: cfg.Language, EnableSearch: cfg.EnableSearch}
}

// Generator builds breakdowns with an LLM.
type Generator struct {
	llm       TextGenerator
	resources RelatedResourceSearcher
	now       func() time.Time
	log       *zap.SugaredLogger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithResources sets the related resource searcher used for enrichment.
func WithResources(r RelatedResourceSearcher) GeneratorOption {
	return func(g *Generator) { g.resources = r }
}

// WithClock overrides the clock used for draft ids.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the generator logger.
func WithLogger(l *zap.SugaredLogger) GeneratorOption {
	return func(g *Generator) { g.log = l }
}

// NewGenerator creates a Generator.
func NewGenerator(llm TextGenerator, opts ...GeneratorOption) *Generator {
	g := &Generator{llm: llm, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	g.log = logging.OrDefault(g.log)
	return g
}

// GenerateBreakdown breaks request into drafts written in lang. An empty lang
// is detected from the request. LLM errors are returned; unparseable replies
// yield the fallback breakdown.
func (g *Generator) GenerateBreakdown(ctx context.Context, request string, lang models.Language) (models.TicketBreakdown, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return models.TicketBreakdown{}, errors.New("request is required")
	}
	if lang == "" {
		lang = DetectLanguage(request)
	}

	prompt := breakdownPrompt(lang)
	if lang == models.LanguageBilingual {
		prompt = bilingualPrompt()
	}

	reply, err := g.llm.GenerateText(ctx, prompt+request)
	if err != nil {
		return models.TicketBreakdown{}, fmt.Errorf("failed to generate breakdown: %w", err)
	}

	bd := BuildBreakdown(reply, request, g.now())
	if IsFallback(bd) {
		g.log.Warnf("Could not parse breakdown reply, using fallback: %s", common.TruncateForLogging(reply))
	} else {
		g.log.Infof("Generated breakdown with %d tickets (parent: %t)", len(bd.Tickets), bd.ParentTicket != nil)
	}
	return bd, nil
}

// GenerateEnrichedBreakdown generates a breakdown and, when search is enabled,
// appends related wiki pages and issues to every description.
func (g *Generator) GenerateEnrichedBreakdown(ctx context.Context, request string, opts EnrichOptions) (models.EnrichedTicketBreakdown, error) {
	lang := resolveLanguage(opts.Language, request)
	bilingual := DetectBilingualRequest(request)

	promptLang := lang
	if bilingual {
		promptLang = models.LanguageBilingual
	}
	bd, err := g.GenerateBreakdown(ctx, request, promptLang)
	if err != nil {
		return models.EnrichedTicketBreakdown{}, err
	}

	resources := []models.RelatedResource{}
	if opts.EnableSearch && g.resources != nil {
		summaries := make([]string, 0, len(bd.Tickets)+1)
		for _, t := range bd.Tickets {
			summaries = append(summaries, t.Summary)
		}
		if bd.ParentTicket != nil {
			summaries = append(summaries, bd.ParentTicket.Summary)
		}
		keywords := ExtractSearchKeywords(request, summaries)
		g.log.Debugf("Searching related resources for %q", keywords)
		resources = g.resources.SearchRelatedResources(ctx, keywords)
	}

	detected := lang
	if bilingual {
		detected = models.LanguageBilingual
	}
	return models.EnrichedTicketBreakdown{
		TicketBreakdown:  Enrich(bd, resources, lang),
		RelatedResources: resources,
		DetectedLanguage: detected,
	}, nil
}

func resolveLanguage(setting, request string) models.Language {
	switch models.Language(setting) {
	case models.LanguageEnglish, models.LanguageJapanese:
		return models.Language(setting)
	default:
		return DetectLanguage(request)
	}
}
