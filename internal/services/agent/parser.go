package agent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const finalAnswerMarker = "Final Answer:"

var (
	actionPattern     = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyPattern = regexp.MustCompile(`Action\s*\d*\s*:`)
)

// ErrOutputParse is returned when the model's reply is neither an action nor a final answer.
var ErrOutputParse = errors.New("could not parse LLM output")

// action is one tool call requested by the model.
type action struct {
	Tool  string
	Input string
	Log   string // full model output for this step
}

// parseOutput reads a model reply. Exactly one of the returned action or
// final answer is set on success.
func parseOutput(text string) (*action, string, bool, error) {
	hasFinal := strings.Contains(text, finalAnswerMarker)

	if m := actionPattern.FindStringSubmatch(text); m != nil {
		if hasFinal {
			return nil, "", false, fmt.Errorf("%w: produced both a final answer and a parse-able action: %s", ErrOutputParse, text)
		}
		input := strings.Trim(strings.TrimSpace(m[2]), `"`)
		input = strings.TrimSpace(input)
		return &action{Tool: strings.TrimSpace(m[1]), Input: input, Log: text}, "", false, nil
	}

	if hasFinal {
		parts := strings.Split(text, finalAnswerMarker)
		return nil, strings.TrimSpace(parts[len(parts)-1]), true, nil
	}

	if !actionOnlyPattern.MatchString(text) {
		return nil, "", false, fmt.Errorf("%w: missing 'Action:' after 'Thought:': %s", ErrOutputParse, text)
	}
	return nil, "", false, fmt.Errorf("%w: missing 'Action Input:' after 'Action:': %s", ErrOutputParse, text)
}
