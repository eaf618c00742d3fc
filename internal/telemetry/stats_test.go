package telemetry

import "testing"

func TestStatsSnapshotReadsCurrentValues(t *testing.T) {
	var s Stats
	s.DetectionsProcessed.Add(5)
	s.ClustersFormed.Add(2)
	s.TracksCreated.Add(1)
	s.RecordQueueDrop(StageCluster)
	s.RecordQueueDrop(StageCluster)

	snap := s.Snapshot()
	if snap.DetectionsProcessed != 5 {
		t.Fatalf("expected DetectionsProcessed=5, got %d", snap.DetectionsProcessed)
	}
	if snap.ClustersFormed != 2 {
		t.Fatalf("expected ClustersFormed=2, got %d", snap.ClustersFormed)
	}
	if snap.QueueDrops["cluster"] != 2 {
		t.Fatalf("expected 2 queue drops recorded for cluster stage, got %d", snap.QueueDrops["cluster"])
	}
	if snap.QueueDrops["decode"] != 0 {
		t.Fatalf("expected 0 queue drops for decode stage, got %d", snap.QueueDrops["decode"])
	}
}

func TestRecordQueueDropIgnoresOutOfRangeStage(t *testing.T) {
	var s Stats
	s.RecordQueueDrop(Stage(-1))
	s.RecordQueueDrop(Stage(999))
	snap := s.Snapshot()
	for stage, count := range snap.QueueDrops {
		if count != 0 {
			t.Fatalf("expected no drops recorded for any stage, got %d for %s", count, stage)
		}
	}
}

func TestMirrorDoesNotPanic(t *testing.T) {
	var s Stats
	s.DetectionsProcessed.Add(10)
	Mirror(s.Snapshot(), 3, true)
	Mirror(s.Snapshot(), 3, false)
}
