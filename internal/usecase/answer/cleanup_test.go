package answer

import (
	"strings"
	"testing"
)

func TestCleanup_StripsThinkBlocks(t *testing.T) {
	in := "<think>reasoning about the context\nmore reasoning</think>The answer is 42."
	if got := Cleanup(in); got != "The answer is 42." {
		t.Errorf("got %q", got)
	}
}

func TestCleanup_StripsAnswerLabel(t *testing.T) {
	if got := Cleanup("Answer: restart the service."); got != "restart the service." {
		t.Errorf("got %q", got)
	}
}

func TestCleanup_UnwrapsFullFence(t *testing.T) {
	in := "```markdown\nUse the backup command. [Source 1]\n```"
	got := Cleanup(in)
	if strings.Contains(got, "```") {
		t.Errorf("fence not removed: %q", got)
	}
	if !strings.Contains(got, "Use the backup command.") {
		t.Errorf("content lost: %q", got)
	}
}

func TestCleanup_KeepsInlineCodeFences(t *testing.T) {
	in := "Run this:\n```sh\nsystemctl restart app\n```\nThen check logs."
	got := Cleanup(in)
	if !strings.Contains(got, "```sh") {
		t.Errorf("inline fence wrongly removed: %q", got)
	}
}

func TestCleanup_CollapsesBlankLines(t *testing.T) {
	got := Cleanup("First.\n\n\n\n\nSecond.")
	if got != "First.\n\nSecond." {
		t.Errorf("got %q", got)
	}
}

func TestCleanup_TrimsWhitespace(t *testing.T) {
	if got := Cleanup("  \n answer text \n  "); got != "answer text" {
		t.Errorf("got %q", got)
	}
}
