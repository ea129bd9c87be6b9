package service

import (
	"context"
	"testing"

	"relay_bot/internal/slack/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newReactionFixture() (*ReactionServiceImpl, *fakeRelayRecordRepository, *fakeChatClient) {
	repo := &fakeRelayRecordRepository{records: []*models.RelayRecord{{
		ID:          primitive.NewObjectID(),
		DMTS:        "100.1",
		DMChannel:   "D100",
		SelectionTS: "200.1",
		ForwardedTS: "300.1",
	}}}
	chat := newFakeChatClient()
	return NewReactionService(repo, chat), repo, chat
}

func TestResolutionMarkerAddedRemovesPending(t *testing.T) {
	svc, _, chat := newReactionFixture()

	err := svc.HandleAdded(context.Background(), &ReactionAdded{
		Channel: testReportChannel, ItemTS: "300.1", User: "U2", Reaction: markerApproved,
	})
	if err != nil {
		t.Fatalf("HandleAdded returned error: %v", err)
	}

	if len(chat.reactionsRemoved) != 1 || chat.reactionsRemoved[0].Name != markerPending {
		t.Fatalf("expected pending marker removal, got %v", chat.reactionsRemoved)
	}
}

func TestIrrelevantReactionIgnored(t *testing.T) {
	svc, _, chat := newReactionFixture()

	err := svc.HandleAdded(context.Background(), &ReactionAdded{
		Channel: testReportChannel, ItemTS: "300.1", User: "U2", Reaction: "thumbsup",
	})
	if err != nil {
		t.Fatalf("HandleAdded returned error: %v", err)
	}
	if len(chat.reactionsRemoved) != 0 {
		t.Errorf("non-resolution reactions must be ignored, got %v", chat.reactionsRemoved)
	}
}

func TestReactionOnUntrackedMessageIgnored(t *testing.T) {
	svc, _, chat := newReactionFixture()

	err := svc.HandleAdded(context.Background(), &ReactionAdded{
		Channel: testReportChannel, ItemTS: "999.9", User: "U2", Reaction: markerRejected,
	})
	if err != nil {
		t.Fatalf("HandleAdded returned error: %v", err)
	}
	if len(chat.reactionsRemoved) != 0 {
		t.Errorf("untracked messages must be ignored, got %v", chat.reactionsRemoved)
	}
}

func TestLastResolutionMarkerRemovedRestoresPending(t *testing.T) {
	svc, _, chat := newReactionFixture()
	chat.counts = map[string]int{markerApproved: 0, markerRejected: 0}

	err := svc.HandleRemoved(context.Background(), &ReactionRemoved{
		Channel: testReportChannel, ItemTS: "300.1", User: "U2", Reaction: markerApproved,
	})
	if err != nil {
		t.Fatalf("HandleRemoved returned error: %v", err)
	}

	if len(chat.reactionsAdded) != 1 || chat.reactionsAdded[0].Name != markerPending {
		t.Fatalf("expected pending marker restored, got %v", chat.reactionsAdded)
	}
}

func TestResolutionMarkerRemovedWhileOthersRemain(t *testing.T) {
	svc, _, chat := newReactionFixture()
	// 另一位参与者的 x 仍在，报告仍算已处理
	chat.counts = map[string]int{markerApproved: 0, markerRejected: 1}

	err := svc.HandleRemoved(context.Background(), &ReactionRemoved{
		Channel: testReportChannel, ItemTS: "300.1", User: "U2", Reaction: markerApproved,
	})
	if err != nil {
		t.Fatalf("HandleRemoved returned error: %v", err)
	}
	if len(chat.reactionsAdded) != 0 {
		t.Errorf("pending marker must not return while a resolution remains, got %v", chat.reactionsAdded)
	}
}

func TestRemoveFailureDoesNotPropagate(t *testing.T) {
	svc, _, chat := newReactionFixture()
	chat.removeErr = errTransport

	err := svc.HandleAdded(context.Background(), &ReactionAdded{
		Channel: testReportChannel, ItemTS: "300.1", User: "U2", Reaction: markerApproved,
	})
	if err != nil {
		t.Fatalf("marker removal failure must be swallowed, got %v", err)
	}
}
