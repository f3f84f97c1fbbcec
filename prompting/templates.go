package prompting

import "fmt"

func quoted(context string) string {
	return `"""` + context + `"""`
}

func zeroShot(context, question, _ string) (string, string) {
	system := "You are a concise AI assistant. " +
		"Answer ONLY using the provided context. " +
		"Give a SHORT, DIRECT answer in 2-3 sentences maximum. " +
		"Do NOT use bullet points or numbered lists. Write in plain prose only."

	user := fmt.Sprintf(`Context:
%s

Question: %s

Give a short direct answer in 2-3 sentences:`, quoted(context), question)
	return system, user
}

const fewShotExamples = `Here are two examples of the EXACT format you must follow:

Example 1:
Context: "The heart pumps blood through the body. It has four chambers. It beats about 100,000 times a day."
Question: What does the heart do?
Answer:
• Pumps blood continuously throughout the entire body
• Contains four chambers that work together
• Beats approximately 100,000 times every day
• Essential for delivering oxygen to all organs

Example 2:
Context: "Solar panels convert sunlight into electricity. They use photovoltaic cells. They work best in direct sunlight."
Question: How do solar panels work?
Answer:
• Convert sunlight directly into electrical energy
• Use photovoltaic cells as the core technology
• Perform best under direct sunlight conditions
• Provide a renewable source of electricity`

func fewShot(context, question, _ string) (string, string) {
	system := "You are a structured AI assistant. " +
		"You ALWAYS answer in bullet points, never in paragraphs. " +
		"Each bullet must be a complete, specific point from the context. " +
		"Use exactly 4-6 bullet points. Start each bullet with •"

	user := fmt.Sprintf(`%s

Now answer using the SAME bullet format:

Context:
%s

Question: %s
Answer:`, fewShotExamples, quoted(context), question)
	return system, user
}

func chainOfThought(context, question, _ string) (string, string) {
	system := "You are an analytical AI assistant. " +
		"You MUST show your reasoning process before answering. " +
		"Always follow this EXACT structure:\n" +
		"STEP 1 - IDENTIFY: State which parts of the context are relevant\n" +
		"STEP 2 - ANALYZE: What do those parts tell us?\n" +
		"STEP 3 - CONNECT: How do they relate to the question?\n" +
		"FINAL ANSWER: Your conclusion based on the above steps\n" +
		"Never skip steps. Never merge steps."

	user := fmt.Sprintf(`Context:
%s

Question: %s

Work through this step by step:

STEP 1 - IDENTIFY (which parts of the context relate to the question?):
STEP 2 - ANALYZE (what do those parts tell us?):
STEP 3 - CONNECT (how does this answer the question?):
FINAL ANSWER:`, quoted(context), question)
	return system, user
}

func roleBased(context, question, role string) (string, string) {
	system := fmt.Sprintf("You are a senior %s with 15+ years of experience. ", role) +
		"You speak with authority and use technical/professional language appropriate to your field. " +
		"Structure your answer as: 1) Expert Overview, 2) Key Technical Details, 3) Professional Recommendation. " +
		"Use domain-specific terminology. Be detailed and thorough, minimum 4-5 sentences."

	user := fmt.Sprintf(`As a senior %s, provide an expert analysis based strictly on this document:

Document:
%s

Question: %s

Provide your expert analysis with: Overview, Key Details, and Professional Recommendation:`, role, quoted(context), question)
	return system, user
}
