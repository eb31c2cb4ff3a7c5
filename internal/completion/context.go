package completion

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"botcursor/internal/workspace"
)

// buildContext assembles the user turn: project tree, instruction, path
// rules, then either the requested files or the discovered main files.
func (c *Client) buildContext(instruction string, relevantFiles []string) string {
	name := c.ws.Name()

	tree, err := c.ws.Tree()
	if err != nil {
		tree = fmt.Sprintf("(failed to list project: %v)", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PROJECT STRUCTURE (working directory: %s):\n%s\n", name, tree)
	fmt.Fprintf(&b, "\nUSER INSTRUCTION:\n%s\n", instruction)
	b.WriteString("\nFILE PATH RULES:\n")
	b.WriteString("- Paths always start directly with a file name or a subdirectory\n")
	b.WriteString("- Correct: 'index.html', 'style.css', 'src/app.py', 'assets/logo.png'\n")
	fmt.Fprintf(&b, "- Wrong: '%s/index.html', '%s/%s/index.html'\n", name, name, name)
	fmt.Fprintf(&b, "- If '%s' appears at the start of a path, drop that prefix\n", name)
	b.WriteString("- Create and modify files at the workspace root or in regular subdirectories\n")

	if len(relevantFiles) > 0 {
		b.WriteString("\nRELEVANT FILES:\n")
		for _, p := range relevantFiles {
			c.writeFile(&b, p)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	mainFiles, err := c.ws.MainFiles(c.maxMainFiles)
	if err != nil {
		return strings.TrimRight(b.String(), "\n")
	}
	if len(mainFiles) > 0 {
		b.WriteString("\nMAIN PROJECT FILES:\n")
		for _, p := range mainFiles {
			c.writeFile(&b, p)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Client) writeFile(b *strings.Builder, p string) {
	content, err := c.ws.ReadFile(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		fmt.Fprintf(b, "\n%s: file not found\n", p)
	case errors.Is(err, workspace.ErrUnsafePath):
		fmt.Fprintf(b, "\n%s: skipped (%v)\n", p, err)
	case err != nil:
		fmt.Fprintf(b, "\n%s: unreadable (%v)\n", p, err)
	default:
		fmt.Fprintf(b, "\n%s:\n```\n%s\n```\n", p, workspace.Truncate(content, c.maxFileChars))
	}
}
