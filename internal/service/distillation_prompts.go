package service

import "strings"

// Placeholders are written as {{name}} and filled by renderPrompt.

const filterStandardsPrompt = `You help maintain a team's coding standards.

A developer captured the following technical decision:

Title: {{topicTitle}}

{{topicContent}}

Code examples:
{{codeExamples}}

Existing standards (id | name | summary):
{{candidates}}

Select the standards this decision is relevant to, at most {{limit}}.
Answer with a JSON object {"ids": ["<standard id>", ...]}. Use an empty list
when none apply. Only use ids from the list above.`

const filterRecipesPrompt = `You help maintain a team's implementation recipes.

A developer captured the following technical decision:

Title: {{topicTitle}}

{{topicContent}}

Code examples:
{{codeExamples}}

Existing recipes (id | name | first lines):
{{candidates}}

Select the recipes this decision is relevant to, at most {{limit}}.
Answer with a JSON object {"ids": ["<recipe id>", ...]}. Use an empty list
when none apply. Only use ids from the list above.`

const analyzeStandardPrompt = `You decide how a technical decision changes a coding standard.

Decision title: {{topicTitle}}

{{topicContent}}

Code examples:
{{codeExamples}}

Standard: {{standardName}}
Description: {{standardDescription}}

Current rules ([rule id] content):
{{rules}}

Decide one of:
- "addRule": the decision introduces a rule the standard does not have yet
- "updateRule": the decision changes one existing rule; set targetRuleId to its id
- "noMatch": the standard should not change

Answer with a JSON object:
{"action": "addRule" | "updateRule" | "noMatch", "targetRuleId": "<rule id or empty>", "content": "<full rule text>", "rationale": "<one sentence>"}`

const analyzeRecipePrompt = `You decide how a technical decision changes an implementation recipe.

Decision title: {{topicTitle}}

{{topicContent}}

Code examples:
{{codeExamples}}

Recipe: {{recipeName}}

{{recipeContent}}

Decide one of:
- "addSteps": append new steps to the recipe; content holds only the new steps
- "updateSteps": rewrite the recipe; content holds the complete new recipe body
- "noMatch": the recipe should not change

Answer with a JSON object:
{"action": "addSteps" | "updateSteps" | "noMatch", "content": "<markdown>", "rationale": "<one sentence>"}`

const newArtifactPrompt = `No existing standard or recipe covers the following technical decision.

Title: {{topicTitle}}

{{topicContent}}

Code examples:
{{codeExamples}}

Decide whether it deserves a new coding standard (short imperative rules),
a new recipe (ordered implementation steps), both, or neither.

Answer with a JSON object:
{"createStandard": true | false,
 "createRecipe": true | false,
 "standard": {"name": "", "description": "", "rules": [""], "scope": "<glob or empty>"} | null,
 "recipe": {"name": "", "content": "<markdown steps>"} | null,
 "rationale": "<one sentence>"}`

// renderPrompt fills every {{key}} occurrence of the template
func renderPrompt(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
