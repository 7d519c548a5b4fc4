package room

import (
	"embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"cogniview/internal/model"
)

//go:embed prompts/interviewer.yaml
var promptFS embed.FS

// Script is the assistant configuration handed to the conversation engine.
type Script struct {
	SystemInstruction string
	FirstMessage      string
	EndMessage        string
	EndCallFunction   string
	Voice             string
	QuestionCount     int
}

type scriptTemplate struct {
	Voice             string `yaml:"voice"`
	EndCallFunction   string `yaml:"end_call_function"`
	FirstMessage      string `yaml:"first_message"`
	EndMessage        string `yaml:"end_message"`
	SystemInstruction string `yaml:"system_instruction"`
}

var defaultTemplate = mustLoadTemplate()

func mustLoadTemplate() scriptTemplate {
	data, err := promptFS.ReadFile("prompts/interviewer.yaml")
	if err != nil {
		panic(fmt.Errorf("failed to read interviewer prompt: %w", err))
	}
	var tpl scriptTemplate
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		panic(fmt.Errorf("failed to parse interviewer prompt: %w", err))
	}
	return tpl
}

// BuildScript fills the interviewer template. Only canonical question text is used.
func BuildScript(interview *model.Interview, candidateName string) (Script, error) {
	if interview == nil || len(interview.Questions) == 0 {
		return Script{}, fmt.Errorf("%w: interview has no questions", model.ErrInvalidInput)
	}
	if strings.TrimSpace(candidateName) == "" {
		candidateName = "the candidate"
	}

	var list strings.Builder
	for i, q := range interview.Questions {
		fmt.Fprintf(&list, "   %d. %s\n", i+1, strings.TrimSpace(q.Text))
	}

	tpl := defaultTemplate
	slots := strings.NewReplacer(
		"{{candidate_name}}", candidateName,
		"{{job_role}}", interview.JobRole,
		"{{company_name}}", interview.CompanyName,
		"{{question_count}}", strconv.Itoa(len(interview.Questions)),
		"{{question_list}}", strings.TrimRight(list.String(), "\n"),
		"{{end_call_function}}", tpl.EndCallFunction,
	)

	first := slots.Replace(tpl.FirstMessage)
	end := slots.Replace(tpl.EndMessage)
	instruction := slots.Replace(tpl.SystemInstruction)
	instruction = strings.NewReplacer("{{first_message}}", first, "{{end_message}}", end).Replace(instruction)

	return Script{
		SystemInstruction: instruction,
		FirstMessage:      first,
		EndMessage:        end,
		EndCallFunction:   tpl.EndCallFunction,
		Voice:             tpl.Voice,
		QuestionCount:     len(interview.Questions),
	}, nil
}
