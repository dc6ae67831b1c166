package profile

import "fmt"

// StoryboardBudget caps storyboard runs. The profile runs without tools
// and is expected to answer in a single completion.
const StoryboardBudget = 10

// storyboardContentLimit caps how much document content is embedded in
// the prompt.
const storyboardContentLimit = 8000

const storyboardSystem = `You are an expert video content creator. Your job is to transform documentation into engaging 7-10 slide video storyboards for employee training.

## OUTPUT FORMAT
You MUST output valid JSON with this exact structure:
{
  "slides": [
    {
      "title": "Slide title (short, catchy)",
      "bullets": ["Point 1", "Point 2", "Point 3"],
      "imagePrompt": "Detailed description for AI image generation - describe a professional diagram or visualization",
      "voiceover": "30-60 second narration script. Conversational, clear, engaging."
    }
  ]
}

## SLIDE STRUCTURE (10 slides recommended)
1. **Opening** - Hook the viewer, introduce the topic, what they'll learn
2-3. **Context** - Set the scene, explain why this matters to users
4-7. **Main Content** - Core information, features, how things work
8-9. **Practical Tips** - How to help users, common scenarios
10. **Closing** - Summary, key takeaways, next steps

## RULES
- Create exactly 7-10 slides (prefer 10 for comprehensive topics)
- Each voiceover should be 30-60 seconds when read aloud (~75-150 words)
- Write voiceovers as if speaking to a colleague - conversational and clear
- Keep titles short (3-6 words maximum)
- Include 2-4 bullet points per slide
- Total video should be 5-8 minutes

## IMAGE PROMPT GUIDELINES
- Describe professional diagrams, charts, or illustrations
- Focus on clear, simple visuals that support the narration
- Avoid complex scenes - prefer abstract/conceptual representations
- Example: "A clean diagram showing data flowing from a database through an API to a mobile app"

## VOICEOVER GUIDELINES
- Write as if speaking directly to the viewer
- Use "you" and "we" naturally
- Keep sentences short and clear
- Include transitions between points
- Add emphasis where needed (the AI will handle tone)

Output ONLY valid JSON. No markdown, no explanations, just the JSON object.`

// Storyboard returns the profile that turns a generated document into a
// video storyboard. The run never explores the repository; the document
// content is the whole context.
func Storyboard(documentTitle, documentContent string) Profile {
	if len(documentContent) > storyboardContentLimit {
		documentContent = documentContent[:storyboardContentLimit]
	}
	prompt := fmt.Sprintf(`Transform this documentation into an engaging video storyboard.

**Document Title:** %s

**Content:**
%s

Create a compelling 7-10 slide video that will help employees understand this topic. Focus on what's actionable and relevant to supporting users.

Output the storyboard as valid JSON following the format specified in your instructions.`, documentTitle, documentContent)

	return Profile{
		Name:          "storyboard",
		SystemPrompt:  storyboardSystem,
		UserPrompt:    prompt,
		MaxIterations: StoryboardBudget,
		ContextOnly:   true,
	}
}
