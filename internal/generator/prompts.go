package generator

// generateRequest is the user turn sent alongside the system instruction.
const generateRequest = "Generate one new question now."

// jsonModeSuffix adapts the line-oriented instruction for providers running in JSON schema mode.
const jsonModeSuffix = `

Return the same content as a JSON object with the keys "question", "options" (four strings without the A)-D) labels), "correct" (the letter) and "explanation".`
