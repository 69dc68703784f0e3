// internal/sequencer/sequencer.go
// The GoalSequencer turns one raw natural-language instruction into an
// ordered GoalSequence. Detection and segmentation are a union of cheap,
// independent heuristics: real instructions arrive with collapsed spacing,
// missing punctuation and run-on sentences, and a single strong pattern
// misses too many of them. Over-splitting is the cheap failure mode here,
// under-splitting the expensive one.
package sequencer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	// MaxGoals is the hard ceiling on goals per sequence. Oversized
	// segmentations are truncated with a warning, never rejected.
	MaxGoals = 300

	// MinGoalLength drops stray fragments produced by aggressive splits.
	MinGoalLength = 5
)

// GoalSequencer holds no per-instruction state: everything below is a
// pattern compiled once at construction, so a single instance can be shared
// freely. Per-instruction state lives in the GoalSequence it returns.
type GoalSequencer struct {
	log *zap.Logger

	platformRe         *regexp.Regexp
	goToRe             *regexp.Regexp
	verbRes            []*regexp.Regexp
	conditionalHintRe  *regexp.Regexp
	conditionalParseRe *regexp.Regexp
	elseSplitRe        *regexp.Regexp
	sentenceVerbRe     *regexp.Regexp
	sentencePlatformRe *regexp.Regexp
	numberedItemRe     *regexp.Regexp
	connectorRe        *regexp.Regexp
	andSplitRe         *regexp.Regexp
	commaRe            *regexp.Regexp
}

// NewGoalSequencer compiles the matcher set. The compile-once contract
// matters: Parse runs on every instruction and some patterns alternate over
// fifty-odd platform names.
func NewGoalSequencer(logger *zap.Logger) *GoalSequencer {
	platformAlt := platformAlternation()

	verbRes := make([]*regexp.Regexp, 0, len(actionVerbs))
	for _, v := range actionVerbs {
		verbRes = append(verbRes, regexp.MustCompile(`(?i)\b`+strings.ReplaceAll(regexp.QuoteMeta(v), `\ `, `\s+`)+`\b`))
	}

	return &GoalSequencer{
		log: logger.Named("sequencer"),

		platformRe: regexp.MustCompile(`(?i)\b(` + platformAlt + `)\b`),
		goToRe:     regexp.MustCompile(`(?i)\bgo\s+to\b`),
		verbRes:    verbRes,

		conditionalHintRe:  regexp.MustCompile(`(?is)\b(?:if|when|once)\b.+?\bthen\b`),
		conditionalParseRe: regexp.MustCompile(`(?is)^\s*(?:if|when|once)\s+(.+?)\s*,?\s*then\s+(.+?)\s*$`),
		elseSplitRe:        regexp.MustCompile(`(?i)\s+else\s+`),

		// Sentence boundaries tolerate zero or many spaces after the
		// period: mangled copy-paste input routinely collapses them.
		sentenceVerbRe:     regexp.MustCompile(`\.\s*((?:Go\s+[Tt]o|Navigate\s+[Tt]o|Visit|Open|Search|Find|Check|Output)\b)`),
		sentencePlatformRe: regexp.MustCompile(`(?i)\.\s*((?:` + platformAlt + `)\b)`),

		numberedItemRe: regexp.MustCompile(`\d+\.\s+`),
		connectorRe:    connectorAlternation(),
		andSplitRe:     regexp.MustCompile(`(?i)\band\s+`),
		commaRe:        regexp.MustCompile(`,`),
	}
}

// platformAlternation builds the name alternation, longest names first so
// "stack overflow" beats "stackoverflow"-style prefixes.
func platformAlternation() string {
	names := make([]string, 0, len(platformTable))
	for _, e := range platformTable {
		names = append(names, e.Name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(n), `\ `, `\s+`))
	}
	return strings.Join(quoted, "|")
}

func connectorAlternation() *regexp.Regexp {
	parts := make([]string, 0, len(sequenceConnectors))
	for _, c := range sequenceConnectors {
		p := strings.ReplaceAll(regexp.QuoteMeta(c), `\ `, `\s+`)
		if strings.HasPrefix(c, ",") {
			// ", then" carries its own left anchor; a \b before the
			// comma would never match.
			p = strings.Replace(p, `,`, `,\s*`, 1)
			parts = append(parts, p+`\b`)
		} else {
			parts = append(parts, `\b`+p+`\b`)
		}
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(parts, "|") + `)`)
}

// Parse converts a raw instruction into an executable GoalSequence. It
// never fails: the worst case is a single-goal sequence wrapping the whole
// prompt, which is always safely executable.
func (gs *GoalSequencer) Parse(prompt string) *GoalSequence {
	prompt = strings.TrimSpace(prompt)

	if !gs.IsComplexPrompt(prompt) {
		g := NewGoal(prompt, 0, classifyGoalType(prompt))
		g.IsBlocking = true
		return NewGoalSequence(prompt, []*Goal{g})
	}

	// A top-level conditional becomes one CONDITIONAL goal, optionally
	// carrying its else branch as an alternate same-index goal.
	if check, action, elseAction, ok := gs.parseConditional(prompt); ok {
		cond := gs.buildConditionalGoal(check, action, elseAction, 0)
		cond.IsBlocking = true
		return NewGoalSequence(prompt, []*Goal{cond})
	}

	chunks := gs.splitIntoGoals(prompt)
	goals := make([]*Goal, 0, len(chunks))
	for i, chunk := range chunks {
		var g *Goal
		if check, action, elseAction, ok := gs.parseConditional(chunk); ok {
			g = gs.buildConditionalGoal(check, action, elseAction, i)
			// Embedded conditionals never halt the whole sequence on a
			// false branch.
			g.IsBlocking = false
		} else {
			g = NewGoal(chunk, i, classifyGoalType(chunk))
		}
		if i > 0 {
			// Sequential dependency on the previous goal. Stored, not
			// enforced; Advance runs on index order.
			g.DependsOn = []int{i - 1}
		}
		goals = append(goals, g)
	}

	// A "sequence" of one behaves like a blocking atomic action. Longer
	// sequences keep per-goal failures non-blocking so partial progress
	// survives and gets reported.
	if len(goals) == 1 {
		goals[0].IsBlocking = true
	}

	return NewGoalSequence(prompt, goals)
}

// IsComplexPrompt decides single-goal versus multi-goal. The rules run in a
// fixed priority order, first match wins.
func (gs *GoalSequencer) IsComplexPrompt(prompt string) bool {
	// 1. Two or more distinct known platforms mentioned.
	if len(gs.distinctPlatforms(prompt)) >= 2 {
		return true
	}
	// 2. "go to" appearing twice.
	if len(gs.goToRe.FindAllStringIndex(prompt, -1)) >= 2 {
		return true
	}
	// 3. Three or more action-verb occurrences overall.
	if gs.countActionVerbs(prompt) >= 3 {
		return true
	}
	// 4. Conditional language: "if/when/once ... then ...".
	if gs.conditionalHintRe.MatchString(prompt) {
		return true
	}
	// 5. Sentence boundary followed by a capitalized action verb or a
	// platform name.
	if gs.matchOutsideQuotes(gs.sentenceVerbRe, prompt) || gs.matchOutsideQuotes(gs.sentencePlatformRe, prompt) {
		return true
	}
	// 6. Explicit sequence connectors.
	if gs.matchOutsideQuotes(gs.connectorRe, prompt) {
		return true
	}
	// 7. Multiple verbs plus a comma. Quoted commas are literal text, not
	// clause boundaries.
	if gs.countActionVerbs(prompt) >= 2 && gs.matchOutsideQuotes(gs.commaRe, prompt) {
		return true
	}
	return false
}

// distinctPlatforms returns the deduplicated known platform names mentioned.
func (gs *GoalSequencer) distinctPlatforms(prompt string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range gs.platformRe.FindAllString(prompt, -1) {
		key := strings.Join(strings.Fields(strings.ToLower(m)), " ")
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

func (gs *GoalSequencer) countActionVerbs(prompt string) int {
	n := 0
	for _, re := range gs.verbRes {
		n += len(re.FindAllStringIndex(prompt, -1))
	}
	return n
}

// splitIntoGoals segments a complex prompt into goal descriptions. The
// strategies are layered: each is attempted in order and the first one that
// produces at least two cleaned chunks wins. The result is never empty.
func (gs *GoalSequencer) splitIntoGoals(prompt string) []string {
	strategies := []func(string) []string{
		gs.splitOnGoTo,
		gs.splitOnNumberedList,
		func(p string) []string { return gs.splitOnSentenceBoundary(gs.sentenceVerbRe, p) },
		func(p string) []string { return gs.splitOnSentenceBoundary(gs.sentencePlatformRe, p) },
		gs.splitOnConnectors,
	}

	for _, strategy := range strategies {
		chunks := cleanChunks(strategy(prompt))
		if len(chunks) >= 2 {
			return gs.capGoals(chunks, prompt)
		}
	}
	return []string{prompt}
}

func (gs *GoalSequencer) capGoals(chunks []string, prompt string) []string {
	if len(chunks) <= MaxGoals {
		return chunks
	}
	gs.log.Warn("Instruction segmented into more goals than the cap, truncating",
		zap.Int("segments", len(chunks)),
		zap.Int("cap", MaxGoals),
		zap.String("prompt_prefix", truncateHard(prompt, 80)),
	)
	return chunks[:MaxGoals]
}

// splitOnGoTo cuts the prompt at every "go to", each chunk spanning up to
// the next "go to" or end of string. Only used when two or more exist.
func (gs *GoalSequencer) splitOnGoTo(prompt string) []string {
	starts := gs.indexesOutsideQuotes(gs.goToRe, prompt)
	if len(starts) < 2 {
		return nil
	}
	var chunks []string
	for i, loc := range starts {
		end := len(prompt)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		chunks = append(chunks, prompt[loc[0]:end])
	}
	return chunks
}

// splitOnNumberedList handles "1. ... 2. ..." formats, inline or multiline.
func (gs *GoalSequencer) splitOnNumberedList(prompt string) []string {
	marks := gs.indexesOutsideQuotes(gs.numberedItemRe, prompt)
	if len(marks) < 2 {
		return nil
	}
	var chunks []string
	for i, loc := range marks {
		end := len(prompt)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		chunks = append(chunks, prompt[loc[1]:end])
	}
	return chunks
}

// splitOnSentenceBoundary splits on ". <Verb>" or ". <platform>" while
// re-attaching the trigger word to the start of the following chunk, so
// "Go to X. Go to Y." becomes ["Go to X", "Go to Y."].
func (gs *GoalSequencer) splitOnSentenceBoundary(re *regexp.Regexp, prompt string) []string {
	mask := quoteMask(prompt)
	var chunks []string
	prev := 0
	for _, loc := range re.FindAllStringSubmatchIndex(prompt, -1) {
		if mask[loc[0]] {
			continue
		}
		// loc[0] is the period, loc[2] the start of the captured trigger.
		chunks = append(chunks, prompt[prev:loc[0]])
		prev = loc[2]
	}
	if len(chunks) == 0 {
		return nil
	}
	chunks = append(chunks, prompt[prev:])
	return chunks
}

// splitOnConnectors is the fallback strategy: cut at sequence connectors,
// then within each piece attempt verb-gated comma and "and" splits. The verb
// gate keeps noun phrases like "chips and salsa" in one piece.
func (gs *GoalSequencer) splitOnConnectors(prompt string) []string {
	pieces := gs.splitAtConnectors(prompt)
	var chunks []string
	for _, piece := range pieces {
		chunks = append(chunks, gs.splitOnCommaAnd(piece)...)
	}
	return chunks
}

// splitAtConnectors cuts the text at every connector outside quotes,
// dropping the connector itself. A "then" that closes an open "if/when/once"
// in the current segment is part of that conditional, not a goal separator,
// so it is left alone and picked apart later by parseConditional.
func (gs *GoalSequencer) splitAtConnectors(text string) []string {
	locs := gs.indexesOutsideQuotes(gs.connectorRe, text)
	if len(locs) == 0 {
		return []string{text}
	}
	var out []string
	prev := 0
	for _, loc := range locs {
		matched := strings.ToLower(strings.TrimSpace(strings.Trim(text[loc[0]:loc[1]], ", \t")))
		if matched == "then" {
			segment := text[prev:loc[0]]
			opens := len(conditionalOpenRe.FindAllStringIndex(segment, -1))
			closes := len(thenWordRe.FindAllStringIndex(segment, -1))
			if opens > closes {
				continue
			}
		}
		out = append(out, text[prev:loc[0]])
		prev = loc[1]
	}
	out = append(out, text[prev:])
	return out
}

var (
	conditionalOpenRe = regexp.MustCompile(`(?i)\b(?:if|when|once)\b`)
	thenWordRe        = regexp.MustCompile(`(?i)\bthen\b`)
)

// splitOnCommaAnd splits a chunk at commas and "and" only when the text
// immediately after the separator starts with a recognized action verb, and
// only when the chunk holds more than one verb to begin with.
func (gs *GoalSequencer) splitOnCommaAnd(chunk string) []string {
	if gs.countActionVerbs(chunk) < 2 {
		return []string{chunk}
	}

	mask := quoteMask(chunk)
	var cuts []int // byte offsets where the next goal starts; separator removed
	starts := []int{0}

	for i := 0; i < len(chunk); i++ {
		if mask[i] {
			continue
		}
		if chunk[i] == ',' {
			rest := chunk[i+1:]
			after := strings.TrimLeft(rest, " ")
			trimmed := strings.TrimPrefix(after, "and ")
			if gs.startsWithActionVerb(trimmed) {
				cuts = append(cuts, i)
				starts = append(starts, i+1+(len(rest)-len(trimmed)))
			}
			continue
		}
		if chunk[i] != 'a' && chunk[i] != 'A' {
			continue
		}
		if loc := gs.andSplitRe.FindStringIndex(chunk[i:]); loc != nil && loc[0] == 0 && wordBoundaryBefore(chunk, i) {
			rest := chunk[i+loc[1]:]
			if gs.startsWithActionVerb(rest) {
				cuts = append(cuts, i)
				starts = append(starts, i+loc[1])
				i += loc[1] - 1
			}
		}
	}

	if len(cuts) == 0 {
		return []string{chunk}
	}
	var out []string
	for idx, start := range starts {
		end := len(chunk)
		if idx < len(cuts) {
			end = cuts[idx]
		}
		out = append(out, chunk[start:end])
	}
	return out
}

func (gs *GoalSequencer) startsWithActionVerb(s string) bool {
	s = strings.TrimSpace(s)
	for _, re := range gs.verbRes {
		if loc := re.FindStringIndex(s); loc != nil && loc[0] == 0 {
			return true
		}
	}
	return false
}

// parseConditional recognizes "if/when/once COND then ACTION [else ELSE]"
// and returns its parts. The else split is quote-aware.
func (gs *GoalSequencer) parseConditional(text string) (check, action, elseAction string, ok bool) {
	m := gs.conditionalParseRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", "", false
	}
	check = strings.TrimSpace(m[1])
	rest := strings.TrimSpace(m[2])

	mask := quoteMask(rest)
	if loc := gs.elseSplitRe.FindStringIndex(rest); loc != nil && !mask[loc[0]] {
		action = strings.TrimSpace(rest[:loc[0]])
		elseAction = strings.TrimSpace(rest[loc[1]:])
	} else {
		action = rest
	}
	if check == "" || action == "" {
		return "", "", "", false
	}
	return check, action, elseAction, true
}

// buildConditionalGoal assembles a CONDITIONAL goal, peeling a leading
// "not" off the check into the Negate flag and attaching the else branch as
// a non-blocking alternate goal with the same index.
func (gs *GoalSequencer) buildConditionalGoal(check, action, elseAction string, index int) *Goal {
	negate := false
	lower := strings.ToLower(check)
	if strings.HasPrefix(lower, "not ") {
		negate = true
		check = strings.TrimSpace(check[4:])
	}

	g := NewGoal(action, index, TypeConditional)
	g.Condition = &Condition{Check: check, Negate: negate}

	if elseAction != "" {
		elseGoal := NewGoal(elseAction, index, classifyGoalType(elseAction))
		elseGoal.IsBlocking = false
		g.ElseGoal = elseGoal
	}
	return g
}

// classifyGoalType assigns ASSERTION/EXTRACTION/ACTION from the leading verb.
func classifyGoalType(description string) GoalType {
	lower := strings.ToLower(strings.TrimSpace(description))
	for _, v := range []string{"verify", "assert", "ensure", "confirm", "make sure"} {
		if strings.HasPrefix(lower, v+" ") {
			return TypeAssertion
		}
	}
	for _, v := range []string{"extract", "scrape", "copy", "list", "output", "read", "collect"} {
		if strings.HasPrefix(lower, v+" ") {
			return TypeExtraction
		}
	}
	return TypeAction
}

// -- helpers --

// indexesOutsideQuotes returns match locations of re whose start does not
// fall inside a quoted span.
func (gs *GoalSequencer) indexesOutsideQuotes(re *regexp.Regexp, text string) [][]int {
	mask := quoteMask(text)
	var out [][]int
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if !mask[loc[0]] {
			out = append(out, loc)
		}
	}
	return out
}

func (gs *GoalSequencer) matchOutsideQuotes(re *regexp.Regexp, text string) bool {
	return len(gs.indexesOutsideQuotes(re, text)) > 0
}

// quoteMask marks every byte that sits inside a single- or double-quoted
// span. Unterminated quotes mask through to the end of the string, which is
// the conservative choice for split suppression.
func quoteMask(text string) []bool {
	mask := make([]bool, len(text)+1)
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote == 0 {
			if c == '"' || c == '\'' {
				// Apostrophes inside words ("don't") are not quotes.
				if c == '\'' && i > 0 && isWordByte(text[i-1]) {
					continue
				}
				quote = c
				mask[i] = true
			}
			continue
		}
		mask[i] = true
		if c == quote {
			quote = 0
		}
	}
	return mask
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func wordBoundaryBefore(s string, i int) bool {
	return i == 0 || !isWordByte(s[i-1])
}

// cleanChunks trims, strips leading conjunctions and drops fragments below
// the minimum length.
func cleanChunks(chunks []string) []string {
	var out []string
	for _, c := range chunks {
		c = strings.Trim(c, " \t\n.,;:")
		c = stripLeadingConjunction(c)
		if len([]rune(c)) < MinGoalLength {
			continue
		}
		out = append(out, c)
	}
	return out
}

func stripLeadingConjunction(s string) string {
	lower := strings.ToLower(s)
	for _, conj := range leadingConjunctions {
		if strings.HasPrefix(lower, conj+" ") {
			return strings.TrimSpace(s[len(conj)+1:])
		}
	}
	return s
}

// String implements fmt.Stringer for debugging convenience.
func (gs *GoalSequencer) String() string {
	return fmt.Sprintf("GoalSequencer(platforms=%d, verbs=%d)", len(platformTable), len(actionVerbs))
}
