package services

import (
	"regexp"
	"strings"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/logger"
)

// SafetyTier selects how aggressively the guard screens input.
type SafetyTier string

// Screening tiers.
const (
	TierStrict   SafetyTier = "strict"
	TierModerate SafetyTier = "moderate"
	TierRelaxed  SafetyTier = "relaxed"
)

// Block reason codes consumed by callers to pick a refusal message.
const (
	ReasonPromptInjection = "prompt_injection"
	ReasonCodeRequest     = "code_request"
	ReasonAbusiveContent  = "abusive_content"
)

// ScreenResult is the outcome of a safety check.
type ScreenResult struct {
	// Allowed is false when the input must be refused.
	Allowed bool

	// Reason is the machine-readable block reason, empty when allowed.
	Reason string
}

// SafetyGuard screens queries and assembled prompts with deterministic
// pattern matching - no model call, cheap and synchronous. On block the
// caller produces a neutral refusal rather than failing silently.
type SafetyGuard struct {
	tier          SafetyTier
	blockCode     bool
	extraDenylist []string
}

// SafetyOption configures the guard.
type SafetyOption func(*SafetyGuard)

// WithTier sets the screening tier. Defaults to moderate.
func WithTier(t SafetyTier) SafetyOption {
	return func(g *SafetyGuard) {
		g.tier = t
	}
}

// WithCodeBlocking toggles refusal of executable-code requests.
func WithCodeBlocking(block bool) SafetyOption {
	return func(g *SafetyGuard) {
		g.blockCode = block
	}
}

// WithDenylist adds extra blocked phrases to the abuse category.
func WithDenylist(phrases []string) SafetyOption {
	return func(g *SafetyGuard) {
		g.extraDenylist = phrases
	}
}

// NewSafetyGuard creates a guard at the moderate tier with code
// blocking enabled unless configured otherwise.
func NewSafetyGuard(opts ...SafetyOption) *SafetyGuard {
	g := &SafetyGuard{
		tier:      TierModerate,
		blockCode: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// injectionPatterns match known prompt-injection phrasings.
// The category list ships as a default; operators extend it through
// configuration rather than code.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+|any\s+)?(previous|prior|above|earlier|your)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|your)\s+(you|previous|instructions?|rules?)`),
	regexp.MustCompile(`(?i)reveal\s+(your\s+)?(system\s+)?prompt`),
	regexp.MustCompile(`(?i)(print|show|repeat|output)\s+(your\s+)?(system\s+)?(prompt|instructions)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|in)\s`),
	regexp.MustCompile(`(?i)pretend\s+(you\s+are|to\s+be)\s`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+you|a\s+different)`),
	regexp.MustCompile(`(?i)jailbreak`),
	regexp.MustCompile(`(?i)\bDAN\s+mode\b`),
	regexp.MustCompile(`(?i)developer\s+mode`),
}

// strictInjectionPatterns are additionally applied at the strict tier.
var strictInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)system\s*:`),
	regexp.MustCompile(`(?i)<\s*/?\s*(system|instructions?)\s*>`),
	regexp.MustCompile(`(?i)\boverride\b.*\b(settings?|rules?|instructions?)\b`),
}

// codePatterns match requests to generate executable code or scripts.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)write\s+(me\s+)?(a\s+|some\s+)?(script|code|program|malware|virus|exploit)`),
	regexp.MustCompile(`(?i)generate\s+(a\s+|some\s+)?(script|code|program|sql|shell)`),
	regexp.MustCompile(`(?i)\b(sql|shell|command)\s+injection\b`),
	regexp.MustCompile("(?s)```"),
}

// abusePatterns match a denylist of abusive content categories.
var abusePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(kill|hurt|harm)\s+(yourself|myself|someone)\b`),
	regexp.MustCompile(`(?i)how\s+to\s+(make|build)\s+(a\s+)?(bomb|weapon|explosive)`),
	regexp.MustCompile(`(?i)\b(credit\s+card|ssn|social\s+security)\s+(numbers?|generator)\b`),
	regexp.MustCompile(`(?i)\bchild\s+(porn|abuse)\b`),
}

// ScreenQuery checks an incoming shopper query before any retrieval or
// generation work is spent on it.
func (g *SafetyGuard) ScreenQuery(text string) ScreenResult {
	if g.tier == TierRelaxed {
		// Relaxed still refuses the abuse denylist.
		return g.check(text, false, false)
	}
	return g.check(text, true, g.blockCode)
}

// ScreenPrompt checks the fully assembled envelope right before
// generation. Indexed content can itself carry injection attempts, so
// the strict tier also scans the context chunks.
func (g *SafetyGuard) ScreenPrompt(envelope domain.PromptEnvelope) ScreenResult {
	if res := g.ScreenQuery(envelope.UserQuery); !res.Allowed {
		return res
	}

	if g.tier == TierStrict {
		for _, chunk := range envelope.ContextChunks {
			if matchAny(injectionPatterns, chunk.Text) || matchAny(strictInjectionPatterns, chunk.Text) {
				logger.Warn("Safety: injection pattern in indexed chunk %s", chunk.ID)
				return ScreenResult{Allowed: false, Reason: ReasonPromptInjection}
			}
		}
	}

	return ScreenResult{Allowed: true}
}

// check runs the configured pattern categories against the text.
func (g *SafetyGuard) check(text string, injection, code bool) ScreenResult {
	if matchAny(abusePatterns, text) || g.matchDenylist(text) {
		logger.Info("Safety: blocked abusive content")
		return ScreenResult{Allowed: false, Reason: ReasonAbusiveContent}
	}

	if injection {
		if matchAny(injectionPatterns, text) {
			logger.Info("Safety: blocked prompt injection")
			return ScreenResult{Allowed: false, Reason: ReasonPromptInjection}
		}
		if g.tier == TierStrict && matchAny(strictInjectionPatterns, text) {
			logger.Info("Safety: blocked prompt injection (strict)")
			return ScreenResult{Allowed: false, Reason: ReasonPromptInjection}
		}
	}

	if code && matchAny(codePatterns, text) {
		logger.Info("Safety: blocked code generation request")
		return ScreenResult{Allowed: false, Reason: ReasonCodeRequest}
	}

	return ScreenResult{Allowed: true}
}

func (g *SafetyGuard) matchDenylist(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range g.extraDenylist {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
