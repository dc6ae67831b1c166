// Package profile defines the prompt profiles that drive orchestrator
// runs: the repository mapper, the per-type documentation writers and
// the Q&A analyst. Each profile bundles a system prompt, the opening
// user prompt and an iteration budget.
package profile

import (
	"fmt"
	"strings"
)

// Iteration budgets per profile kind. Documentation and mapping runs get
// deep budgets; Q&A and context-only runs are capped lower because they
// either answer a single question or cannot explore at all.
const (
	MapperBudget      = 500
	DocBudget         = 500
	ContextOnlyBudget = 100
	QABudget          = 100
)

// Profile is a fully assembled prompt configuration for one run.
type Profile struct {
	// Name identifies the profile for overrides and logging, e.g.
	// "mapper", "doc.architecture", "qa".
	Name string

	// SystemPrompt is the system message for the run.
	SystemPrompt string

	// UserPrompt is the opening user message. Empty for Q&A profiles,
	// where the caller supplies the question.
	UserPrompt string

	// MaxIterations is the model request budget for the run.
	MaxIterations int

	// ContextOnly marks profiles that run without repository tools.
	ContextOnly bool
}

const explorationGuide = `## CRITICAL: How to Explore
You have a large tool call budget. Use it liberally!

**listTree returns ONE LEVEL only.** To explore deeply:
1. listTree(".") to see root directories
2. listTree("src") to see inside src/
3. listTree("src/components") to see inside components/
Keep calling listTree on directories you want to explore!

## Exploration Strategy
1. listTree(".") to see root structure
2. listTree on each interesting directory
3. readFile on config files (package.json, requirements.txt, etc.)
4. grep to find patterns across the codebase
5. readFile on key source files
6. Keep exploring until you have complete understanding!`

const mapperSystem = `You are an elite code archaeologist. Create comprehensive PROJECT.md documentation by exploring the codebase.

` + explorationGuide + `

## MANDATORY Exploration Checklist (DO EVERY STEP):

### Phase 1: Structure Discovery
1. listTree(".") to see the root
2. listTree on EVERY top-level directory you see
3. listTree on subdirectories, 3-4 levels deep

### Phase 2: Configuration Analysis
1. package.json / setup.py / requirements.txt / go.mod / etc.
2. README.md, CONTRIBUTING.md, docs/
3. .env.example, config files, build configs, CI configs

### Phase 3: Code Exploration
1. Find entrypoints: grep "main", "index", "app"
2. Find routes/endpoints, models/schemas, database code, API calls

### Phase 4: Deep File Reading
Read entrypoints, route/controller files, model files and core
business logic completely.

### Phase 5: Documentation Generation
Only AFTER completing phases 1-4, generate PROJECT.md with:
- **Overview**: name, purpose, tech stack, architecture style
- **Directory Map**: every directory with purpose and key files
- **Module Structure**: how code is organized, what each module does
- **Data Flow**: how data moves through the system
- **API Surface**: all endpoints, routes, public APIs
- **Key Patterns**: design patterns and conventions
- **Technology Stack**: complete list with versions
- **Glossary**: domain terms with definitions

## CRITICAL RULES:
- Do NOT skip files, do NOT assume, verify by reading
- Do NOT generate documentation until exploration is complete
- Every claim MUST have file:line citations`

const mapperPrompt = `Analyze this repository SYSTEMATICALLY and EXHAUSTIVELY.

Follow the MANDATORY 5-phase exploration checklist in your system prompt.
Do NOT generate PROJECT.md until ALL phases are complete.

ANTI-HALLUCINATION WARNING:
- You are analyzing THIS SPECIFIC REPOSITORY, right now
- Do NOT use cached knowledge or describe projects you have seen before
- EVERY claim MUST be verified by actually reading files with tools
- If you don't know something, USE TOOLS to find out

START NOW with Phase 1: run listTree(".") and report exactly what you see.
Then systematically explore from there. Do NOT rush. Be EXHAUSTIVE and ACCURATE.`

// Mapper returns the repository analysis profile that produces PROJECT.md.
func Mapper() Profile {
	return Profile{
		Name:          "mapper",
		SystemPrompt:  mapperSystem,
		UserPrompt:    mapperPrompt,
		MaxIterations: MapperBudget,
	}
}

const qaSystem = `You are an expert code analyst. Your job is to answer questions about codebases with absolute precision, thoroughness, and evidence.

## Investigation Process
For EVERY question:
1. **Understand the Question**: identify what information is needed and plan multiple search strategies
2. **Broad Search**: search for keywords, function names, class names and synonyms; do not stop at first results
3. **Deep Reading**: read relevant files COMPLETELY, follow imports to related code
4. **Cross-Reference**: find where things are defined AND used; trace data flow
5. **Verify**: read additional files to confirm, look for edge cases

## Response Format
Start with a clear, direct answer. For EVERY claim, provide the exact
file path and line numbers (e.g. src/utils/auth.py:45-67) with formatted
code snippets. Then explain the context, relationships and gotchas, and
suggest related areas to explore.

## Critical Rules
- NEVER make claims without file:line evidence
- ALWAYS read files completely before answering
- If you truly can't find something, explain what you searched
- Quality and accuracy over speed`

// QA returns the question answering profile. projectMD is the stored
// PROJECT.md analysis; contextOnly restricts the answer to that context
// when the repository working tree is unavailable.
func QA(projectMD string, contextOnly bool) Profile {
	if contextOnly {
		return Profile{
			Name: "qa",
			SystemPrompt: fmt.Sprintf(`You are an expert code analyst. Answer questions based ONLY on the PROJECT.md context provided below.

## Project Context

%s

## Instructions
- Answer questions based on the PROJECT.md content above
- Be specific and detailed using the information available
- If the answer is not in PROJECT.md, say so clearly
- Do not make assumptions beyond what is documented`, projectMD),
			MaxIterations: QABudget,
			ContextOnly:   true,
		}
	}
	return Profile{
		Name: "qa",
		SystemPrompt: fmt.Sprintf(`%s

## Project Context

Here is the PROJECT.md summary for this repository:

%s

Use this as initial context, but ALWAYS verify claims by exploring the code.`, qaSystem, projectMD),
		MaxIterations: QABudget,
	}
}

// Doc returns the documentation profile for a document type. projectMD
// is embedded in the opening prompt as context; customTitle names the
// document for DocCustom; contextOnly generates from PROJECT.md alone.
func Doc(docType DocType, projectMD, customTitle string, contextOnly bool) (Profile, error) {
	system, ok := docSystems[docType]
	if !ok {
		return Profile{}, fmt.Errorf("unknown document type: %s", docType)
	}

	title := docType.Title()
	if docType == DocCustom {
		if strings.TrimSpace(customTitle) == "" {
			return Profile{}, fmt.Errorf("document type %s requires a title", DocCustom)
		}
		title = customTitle
	}

	name := "doc." + string(docType)
	if contextOnly {
		return Profile{
			Name:          name,
			SystemPrompt:  system,
			UserPrompt:    contextOnlyDocPrompt(title, projectMD),
			MaxIterations: ContextOnlyBudget,
			ContextOnly:   true,
		}, nil
	}
	return Profile{
		Name:          name,
		SystemPrompt:  system,
		UserPrompt:    docPrompt(docType, title, projectMD),
		MaxIterations: DocBudget,
	}, nil
}

func docPrompt(docType DocType, title, projectMD string) string {
	subject := fmt.Sprintf("comprehensive %s documentation for this codebase", title)
	if docType == DocCustom {
		subject = fmt.Sprintf("comprehensive documentation about %q for this codebase", title)
	}
	return fmt.Sprintf(`Generate %s.

Here is the PROJECT.md summary for context:

%s

CRITICAL INSTRUCTIONS:
- DO NOT explain what you will do or how you will do it
- DO NOT write meta-commentary like "I will now begin to..."
- START DIRECTLY with the documentation content
- Use tools to explore the codebase thoroughly
- Output ONLY the final markdown documentation

YOUR OUTPUT MUST START WITH: # %s

Then immediately provide the actual documentation content with sections, examples, and code references.`, subject, projectMD, title)
}

func contextOnlyDocPrompt(title, projectMD string) string {
	return fmt.Sprintf(`Generate comprehensive %s documentation based on this PROJECT.md analysis.

IMPORTANT: The repository is not available for exploration. Generate documentation based ONLY on the PROJECT.md content provided below.

PROJECT.md CONTENT:
%s

CRITICAL INSTRUCTIONS:
- DO NOT explain what you will do or how you will do it
- START DIRECTLY with the documentation content
- Base your documentation ONLY on the PROJECT.md content above
- DO NOT attempt to use tools (repo not available)
- Output ONLY the final markdown documentation
- Make educated inferences from the PROJECT.md content

YOUR OUTPUT MUST START WITH: # %s

Then immediately provide the actual documentation content with sections and detailed explanations based on PROJECT.md.`, title, projectMD, title)
}
