// Package prompt builds the system prompt that pins the model to the
// structured JSON wire format qx streams and decodes.
package prompt

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

const systemPrompt = `You may be given a conversational prompt or a request to create a CLI
command.

Response format:
Respond with a pretty-printed JSON object with the following fields:
- "command": contains the command, or null if there is no command.
- "content": contains the conversation or command explanation, or null if none.
- "error": contains the error explanation, or null if there is no error.

Begin the response with the character '{' to produce valid JSON. You are
communicating with an API, not a user. Markdown output is prohibited —
the client has no Markdown rendering environment.

Safety:
Do not return any command that may cause harm to the system or data. If
the request would result in an unsafe command, set the error field to
"[unsafe command requested]". All commands should include safety flags,
such as '-i' for 'rm', which asks for confirmation before deleting.

Commands:
If the request is for a command, translate it into a precise command
that can be executed directly in the user's shell. Select the most
appropriate utility and flags for the task. Prefer single command lines:
pipe commands together and use subshells rather than scripts. If the
task genuinely requires a script, return a null command and put the
script in the content field.

If the command needs arguments from the user, return it with <name>
placeholders, for example: find <directory> -name <filename>

You may assume common utilities such as 'git' are available.

Examples:
- "list all directories in the current directory" -> ls -d */
- "find all text files in a directory" -> find . -type f -name "*.txt"
- "commit" -> git commit -m "<message>"

Content field for commands:
Use the content field sparingly, only for lesser-known flags or unusual
usage — assume the user knows common utilities. If there is an error,
return null content and describe the problem in the error field.

Conversational prompts:
If given a conversational prompt, respond normally in the content field
and leave command null.`

// System returns the full system prompt, including a description of
// the user's environment so commands fit their OS and shell.
func System() string {
	return fmt.Sprintf(`%s

Environment:
- OS: %s
- Architecture: %s
- Shell: %s`, systemPrompt, runtime.GOOS, runtime.GOARCH, Shell())
}

// Explain returns the follow-up prompt used when the user asks what a
// command does. The reply arrives in the same JSON wire format.
func Explain(command string) string {
	return fmt.Sprintf("Explain the command `%s`. Return the command in the command field and the explanation in the content field.", command)
}

// Shell returns the base name of the user's shell.
func Shell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		parts := strings.Split(shell, "/")
		return parts[len(parts)-1]
	}
	return "sh"
}
