package agent

import (
	"strings"
)

// reactTemplate is the ReAct prompt. {tools} and {tool_names} are filled once
// at construction; {input} and {agent_scratchpad} per call.
const reactTemplate = `Answer the following questions as best you can. You have access to the following tools:

{tools}

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{tool_names}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Begin!

Question: {input}
Thought:{agent_scratchpad}`

// stopSequence cuts the model off before it invents an observation.
const stopSequence = "\nObservation"

func renderTools(tools []Tool) (descriptions, names string) {
	desc := make([]string, len(tools))
	list := make([]string, len(tools))
	for i, t := range tools {
		desc[i] = t.Name + ": " + t.Description
		list[i] = t.Name
	}
	return strings.Join(desc, "\n"), strings.Join(list, ", ")
}

// basePrompt fills the tool placeholders.
func basePrompt(tools []Tool) string {
	descriptions, names := renderTools(tools)
	return strings.NewReplacer("{tools}", descriptions, "{tool_names}", names).Replace(reactTemplate)
}

// renderPrompt fills the per-call placeholders.
func renderPrompt(base, input, scratchpad string) string {
	return strings.NewReplacer("{input}", input, "{agent_scratchpad}", scratchpad).Replace(base)
}
