package answer

import (
	"testing"

	"github.com/groundkit/groundkit/internal/domain"
)

func testCandidates() []domain.Candidate {
	return []domain.Candidate{
		{ChunkID: "c1", Content: "To restart the database service, run the restart command from the admin console. The operation takes about two minutes."},
		{ChunkID: "c2", Content: "Backups are written every night at midnight and retained for thirty days."},
	}
}

func TestVerify_GroundedAnswer(t *testing.T) {
	text := "Restart the database service from the admin console [Source 1]. The operation takes about two minutes."
	if !Verify(text, testCandidates()) {
		t.Error("expected grounded answer to verify")
	}
}

func TestVerify_FabricatedClaim(t *testing.T) {
	text := "Increase the kernel semaphore limits and recompile the storage engine with jumbo frames enabled."
	if Verify(text, testCandidates()) {
		t.Error("expected fabricated answer to fail verification")
	}
}

func TestVerify_MixedAnswerFails(t *testing.T) {
	text := "Restart the database service from the admin console. " +
		"Afterwards, upgrade your quantum flux capacitor firmware to release channel gamma."
	if Verify(text, testCandidates()) {
		t.Error("expected partially fabricated answer to fail verification")
	}
}

func TestVerify_ShortConnectiveSentencesSkipped(t *testing.T) {
	text := "Yes. Restart the database service from the admin console."
	if !Verify(text, testCandidates()) {
		t.Error("expected short connective sentence to be skipped")
	}
}

func TestVerify_EmptyContextFails(t *testing.T) {
	if Verify("Any answer at all goes here today.", nil) {
		t.Error("expected verification to fail without context")
	}
}
