package llm

import (
	"fmt"
	"strings"

	"github.com/BetterCallFirewall/CertiAudit/internal/models"
)

// DefaultIntent is used when the user does not describe what the contract should do.
const DefaultIntent = "The user did not describe the intended behaviour. Infer it from the code, names and comments."

// NoBestPracticesContext is used when no best-practice reference could be loaded.
const NoBestPracticesContext = "No security best-practice context is available."

// SecuritySystemPrompt sets up the auditor persona.
const SecuritySystemPrompt = "You are an experienced blockchain security audit engineer. Your task is to analyze " +
	"smart contract code together with the findings of static analysis tools and produce an audit report that " +
	"strictly conforms to the given JSON Schema.\n" +
	"Principles: stick to the facts, be evidence-driven, never invent findings. Respond with a single JSON object only."

// GasSystemPrompt sets up the gas optimization persona.
const GasSystemPrompt = "You are a gas optimization expert with deep knowledge of EVM internals. Your task is to " +
	"analyze smart contract code and find every place where gas can be saved, including but not limited to storage " +
	"reads and writes, loops, data type packing and unchecked arithmetic. Respond with a single JSON object only."

// PoCInstruction is appended to the reasoning steps when proof-of-concept generation is enabled.
var PoCInstruction = "5. **Proof of concept**: for every " + pocSeverities() + " finding, write an exploit test in " +
	"Foundry or Hardhat style and put it in the `poc_code` field."

func pocSeverities() string {
	var names []string
	for _, s := range models.Severities {
		if s.NeedsPoC() {
			names = append(names, string(s))
		}
	}
	return strings.Join(names, " or ")
}

// PromptInput carries everything that goes into a user prompt.
type PromptInput struct {
	Intent         string
	BestPractices  string
	StaticAnalysis string
	Schema         models.SchemaDescriptor
	Code           string
	GeneratePoC    bool
}

// BuildPrompts returns the system and user prompt for mode.
func BuildPrompts(mode models.AnalysisMode, in PromptInput) (string, string) {
	if mode == models.ModeGas {
		return GasSystemPrompt, BuildGasPrompt(in)
	}
	return SecuritySystemPrompt, BuildSecurityPrompt(in)
}

// BuildSecurityPrompt creates the hybrid audit prompt: intent, best practices,
// static analysis, reasoning steps, schema and flattened code.
func BuildSecurityPrompt(in PromptInput) string {
	intent := strings.TrimSpace(in.Intent)
	if intent == "" {
		intent = DefaultIntent
	}
	bestPractices := in.BestPractices
	if strings.TrimSpace(bestPractices) == "" {
		bestPractices = NoBestPracticesContext
	}
	pocInstruction := ""
	if in.GeneratePoC {
		pocInstruction = PoCInstruction
	}

	return fmt.Sprintf(`
Analyze the provided code strictly following the steps below.

### Step 1: Context enrichment and fact checking

**A. User intent:**
%s

**B. Security best practices:**
%s

**C. Static analysis report (tool output):**
*This result was produced by a deterministic algorithm. If it reports a vulnerability, you must include it in your analysis and explain its root cause.*
---
%s
---

### Step 2: Vulnerability identification and reasoning (hybrid analysis)
1. **Correlate**: confirm the locations reported by static analysis and explain their cause in the context of the code.
2. **Semantic review**: look for logic flaws the tool cannot detect, such as access control or business flow defects.
3. **Intent check**: verify whether the code violates the user's intent.
4. **Fixes**: produce fixed code for every finding.
%s

### Step 3: Structured output
Return the final audit result strictly in the following JSON Schema format.
---
%s
---

Code to analyze (imports flattened):
---
%s
---
`, intent, bestPractices, strings.TrimSpace(in.StaticAnalysis), pocInstruction, in.Schema.JSON(), in.Code)
}

// BuildGasPrompt creates the gas optimization prompt. It carries only the
// code and the schema.
func BuildGasPrompt(in PromptInput) string {
	return fmt.Sprintf(`
Analyze the gas consumption of the following code.

Code to analyze:
---
%s
---

Find every gas optimization opportunity and return it in the JSON Schema format below.
Set the "severity" field to "Gas" for every item.%s

Schema:
%s
`, in.Code, gasPoCNote(in.Schema), in.Schema.JSON())
}

func gasPoCNote(schema models.SchemaDescriptor) string {
	for _, f := range schema.VulnerabilityFields() {
		if f == "poc_code" {
			return "\nThe \"poc_code\" field may be left out."
		}
	}
	return ""
}
