// Package prompts is the externalized, language-tagged prompt registry the
// semantic pre-filter, unified analyzer, and summary generator read from.
// Because upstream model behavior is prompt-conditioned, every (role,
// language, has_image) combination the pipeline actually issues is looked up
// here rather than built ad hoc at the call site.
package prompts

import "fmt"

// Role names the pipeline stage a prompt is used by.
type Role string

const (
	RoleSemanticPrefilter Role = "semantic_prefilter"
	RoleUnifiedAnalysis   Role = "unified_analysis"
	RoleExecutiveSummary  Role = "executive_summary"
	RoleVisualSummary     Role = "visual_summary"
)

// key identifies one prompt variant.
type key struct {
	role     Role
	language string
	hasImage bool
}

// fallbackLanguage is used when a (role, language) pair has no dedicated
// entry; "en" is always populated for every role.
const fallbackLanguage = "en"

var registry = map[key]string{
	{RoleSemanticPrefilter, "en", false}: semanticPrefilterEN,
	{RoleSemanticPrefilter, "pl", false}: semanticPrefilterPL,

	{RoleUnifiedAnalysis, "en", true}:  unifiedAnalysisImageEN,
	{RoleUnifiedAnalysis, "en", false}: unifiedAnalysisTextEN,
	{RoleUnifiedAnalysis, "pl", true}:  unifiedAnalysisImagePL,
	{RoleUnifiedAnalysis, "pl", false}: unifiedAnalysisTextPL,

	{RoleExecutiveSummary, "en", false}: executiveSummaryEN,
	{RoleExecutiveSummary, "pl", false}: executiveSummaryPL,

	{RoleVisualSummary, "en", false}: visualSummaryEN,
	{RoleVisualSummary, "pl", false}: visualSummaryPL,
}

// Get returns the prompt string for (role, language, hasImage), falling back
// to English when the requested language has no dedicated entry for that
// role, and to the image-capable variant's text-only sibling when hasImage
// is requested but unavailable.
func Get(role Role, language string, hasImage bool) (string, error) {
	if p, ok := registry[key{role, language, hasImage}]; ok {
		return p, nil
	}
	if p, ok := registry[key{role, fallbackLanguage, hasImage}]; ok {
		return p, nil
	}
	if p, ok := registry[key{role, language, false}]; ok {
		return p, nil
	}
	if p, ok := registry[key{role, fallbackLanguage, false}]; ok {
		return p, nil
	}
	return "", fmt.Errorf("prompts: no prompt registered for role %q", role)
}

const semanticPrefilterEN = `You are reviewing a timestamped transcript of spoken commentary on a screen recording. Read every segment below, each prefixed with its [start_s - end_s] time range. Identify every point where the speaker raises a bug, a requested change, a UI/UX observation, a performance concern, or an accessibility concern.

Be liberal: prefer to flag a borderline moment rather than omit it. Recall matters more than precision here — a later stage filters and verifies.

Respond with strictly valid JSON: an array of objects, each with fields start, end, category (one of bug, change, ui, performance, accessibility, other), confidence (0 to 1), reasoning (one sentence), excerpt (the relevant transcript text). Do not include any text outside the JSON array.

Transcript:
{{.Segments}}`

const semanticPrefilterPL = `Przeglądasz transkrypcję komentarza głosowego nagrany podczas przeglądu ekranu. Przeczytaj każdy fragment poniżej, oznaczony zakresem czasu [start_s - end_s]. Zidentyfikuj każdy moment, w którym mówiący zgłasza błąd, prośbę o zmianę, uwagę dotyczącą UI/UX, problem z wydajnością lub dostępnością.

Bądź liberalny: wolimy oznaczyć graniczny moment niż go pominąć.

Odpowiedz wyłącznie poprawnym JSON-em: tablicą obiektów z polami start, end, category (jedna z: bug, change, ui, performance, accessibility, other), confidence (0 do 1), reasoning (jedno zdanie), excerpt (odpowiedni fragment transkrypcji). Nie dodawaj żadnego tekstu poza tablicą JSON.

Transkrypcja:
{{.Segments}}`

const unifiedAnalysisImageEN = `You are a senior product reviewer. You are shown a single frame from a screen recording at timestamp {{.Timestamp}}s, together with the surrounding spoken commentary. Analyze both the image and the transcript context together and produce a single structured finding.

Surrounding transcript:
{{.Context}}

Respond with strictly valid JSON with fields: category, is_issue (bool), sentiment (problem|positive|neutral), severity (critical|high|medium|low|none), summary, action_items (array of strings), affected_components (array of strings), suggested_fix, ui_elements (array of strings), issues_detected (array of strings), accessibility_notes, design_feedback, technical_observations. If is_issue is false, action_items must be empty and severity must be low or none.`

const unifiedAnalysisTextEN = `You are a senior product reviewer. No screenshot is available for this moment (timestamp {{.Timestamp}}s) — base your analysis on the spoken commentary alone.

Surrounding transcript:
{{.Context}}

Respond with strictly valid JSON with fields: category, is_issue (bool), sentiment (problem|positive|neutral), severity (critical|high|medium|low|none), summary, action_items (array of strings), affected_components (array of strings), suggested_fix, ui_elements (array of strings), issues_detected (array of strings), accessibility_notes, design_feedback, technical_observations. Visual fields should be empty arrays/strings since no image was provided. If is_issue is false, action_items must be empty and severity must be low or none.`

const unifiedAnalysisImagePL = `Jesteś starszym recenzentem produktu. Widzisz pojedynczą klatkę z nagrania ekranu w chwili {{.Timestamp}}s, wraz z towarzyszącym komentarzem głosowym. Przeanalizuj razem obraz i kontekst transkrypcji i wygeneruj jedno ustrukturyzowane odkrycie.

Otaczająca transkrypcja:
{{.Context}}

Odpowiedz wyłącznie poprawnym JSON-em z polami: category, is_issue (bool), sentiment (problem|positive|neutral), severity (critical|high|medium|low|none), summary, action_items (tablica), affected_components (tablica), suggested_fix, ui_elements (tablica), issues_detected (tablica), accessibility_notes, design_feedback, technical_observations. Jeśli is_issue jest false, action_items musi być puste, a severity musi być low lub none.`

const unifiedAnalysisTextPL = `Jesteś starszym recenzentem produktu. Brak zrzutu ekranu dla tej chwili ({{.Timestamp}}s) — oprzyj analizę wyłącznie na komentarzu głosowym.

Otaczająca transkrypcja:
{{.Context}}

Odpowiedz wyłącznie poprawnym JSON-em z polami: category, is_issue (bool), sentiment (problem|positive|neutral), severity (critical|high|medium|low|none), summary, action_items (tablica), affected_components (tablica), suggested_fix, ui_elements (tablica), issues_detected (tablica), accessibility_notes, design_feedback, technical_observations. Pola wizualne powinny być puste, ponieważ nie podano obrazu. Jeśli is_issue jest false, action_items musi być puste, a severity musi być low lub none.`

const executiveSummaryEN = `You are preparing an executive summary of a product review session. Given the list of findings below (category, severity, summary), write a concise executive summary (3-6 sentences) highlighting the most important issues and overall health of the reviewed product.

Findings:
{{.Findings}}`

const executiveSummaryPL = `Przygotowujesz podsumowanie wykonawcze sesji przeglądu produktu. Na podstawie poniższej listy odkryć (kategoria, istotność, podsumowanie) napisz zwięzłe podsumowanie wykonawcze (3-6 zdań) podkreślające najważniejsze problemy i ogólną kondycję ocenianego produktu.

Odkrycia:
{{.Findings}}`

const visualSummaryEN = `Given the following visual/UI findings from a product review, summarize the overall visual and UX quality issues in 2-4 sentences, focusing on patterns across findings rather than restating each one.

Findings:
{{.Findings}}`

const visualSummaryPL = `Na podstawie poniższych wizualnych/UX odkryć z przeglądu produktu, podsumuj ogólne problemy z jakością wizualną i UX w 2-4 zdaniach, skupiając się na wzorcach, a nie powtarzaniu każdego odkrycia.

Odkrycia:
{{.Findings}}`
