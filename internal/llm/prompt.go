package llm

// ExtractionInstruction is sent verbatim with every image.
const ExtractionInstruction = `You are reading a photo of handwritten study notes.
Return ONLY a JSON object with exactly these keys and no surrounding prose:
{"title": string, "subject": string, "preview": string, "tags": [string]}
- title: a short title for the notes.
- subject: the academic subject (e.g. "Math", "Biology").
- preview: a one or two sentence summary, at most 200 characters.
- tags: a few short lowercase keywords.
Do not wrap the JSON in markdown.`
