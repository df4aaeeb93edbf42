package council

import (
	"fmt"
	"strings"
)

// titlePromptRunes is how much of the opening message the title prompt quotes.
const titlePromptRunes = 100

func evaluationPrompt(question string, labels LabelMap, shuffled []Stage1Response) string {
	blocks := make([]string, len(shuffled))
	for k, resp := range shuffled {
		blocks[k] = labels.labels[k] + ":\n" + resp.Content
	}

	var b strings.Builder
	b.WriteString("You are a member of an LLM council tasked with evaluating responses to a user's question. ")
	fmt.Fprintf(&b, "The user's original question was: \"%s\".\n\n", question)
	b.WriteString("Here are the anonymized responses from your fellow council members:\n\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\n")
	b.WriteString("Your task is to act as an impartial judge. Please evaluate the quality of each response ")
	b.WriteString("based on accuracy, clarity, and insight. Provide a brief evaluation for each response, ")
	b.WriteString("and then provide a final ranking in a specific format.\n\n")
	b.WriteString("Instructions:\n")
	b.WriteString("1. Write a short critique for each response (e.g., \"Response A is good but misses a key point...\").\n")
	b.WriteString("2. After your evaluations, you MUST include a section that starts with the header '" + RankingHeader + "'.\n")
	b.WriteString("3. In this section, list the responses in order from best to worst. ")
	b.WriteString("For example: \"1. Response C\", \"2. Response A\", \"3. Response B\".\n")
	b.WriteString("4. Do not add any text after the final ranking list.")
	return b.String()
}

func synthesisPrompt(question string, stage1 []Stage1Response, stage2 []Evaluation) string {
	answers := make([]string, len(stage1))
	for i, resp := range stage1 {
		answers[i] = resp.Model + ":\n" + resp.Content
	}
	critiques := make([]string, len(stage2))
	for i, ev := range stage2 {
		critiques[i] = "Evaluator: " + ev.Model + "\nCritique: " + ev.EvaluationText
	}

	var b strings.Builder
	b.WriteString("You are the Chairman of an LLM council. Your task is to synthesize a final, ")
	b.WriteString("high-quality answer to a user's question based on the submissions and peer reviews ")
	b.WriteString("from the council members.\n\n")
	fmt.Fprintf(&b, "The user's original question was: \"%s\".\n\n", question)
	b.WriteString("--- STAGE 1 ---\n")
	b.WriteString("Here are the initial responses from the council members:\n\n")
	b.WriteString(strings.Join(answers, "\n\n"))
	b.WriteString("\n\n")
	b.WriteString("--- STAGE 2 ---\n")
	b.WriteString("Here are the peer evaluations of those responses:\n\n")
	b.WriteString(strings.Join(critiques, "\n\n"))
	b.WriteString("\n\n")
	b.WriteString("--- Your Task ---\n")
	b.WriteString("Synthesize all of this information into a single, comprehensive, and well-written ")
	b.WriteString("final answer for the user. Your answer should be the definitive response, drawing on ")
	b.WriteString("the strengths of the best submissions and correcting any identified flaws. ")
	b.WriteString("Do not refer to the stages or the council directly in your final output. ")
	b.WriteString("Simply provide the best possible answer to the user's question.")
	return b.String()
}

func titlePrompt(opening string) string {
	if runes := []rune(opening); len(runes) > titlePromptRunes {
		opening = string(runes[:titlePromptRunes])
	}
	return fmt.Sprintf("Generate a very brief (5-8 words) title for a conversation that starts with: \"%s...\"\n\n"+
		"Just the title, nothing else.", opening)
}
