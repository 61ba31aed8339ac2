package state

import "testing"

func TestLookupSpecialistReturnsEmptyWhenUnmapped(t *testing.T) {
	s := NewTopicMappingStore(t.TempDir())
	if got := s.LookupSpecialist("chat1", "thread1"); got != "" {
		t.Fatalf("expected empty lookup, got %q", got)
	}
}

func TestSetMappingThenLookupReturnsSpecialist(t *testing.T) {
	s := NewTopicMappingStore(t.TempDir())
	if err := s.SetMapping("chat1", "thread1", "researcher"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	if got := s.LookupSpecialist("chat1", "thread1"); got != "researcher" {
		t.Fatalf("LookupSpecialist() = %q, want researcher", got)
	}
}

func TestSetMappingOverwritesExistingMapping(t *testing.T) {
	s := NewTopicMappingStore(t.TempDir())
	if err := s.SetMapping("chat1", "thread1", "researcher"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	if err := s.SetMapping("chat1", "thread1", "historian"); err != nil {
		t.Fatalf("SetMapping (overwrite): %v", err)
	}
	if got := s.LookupSpecialist("chat1", "thread1"); got != "historian" {
		t.Fatalf("expected overwritten mapping, got %q", got)
	}
	if len(s.Mappings) != 1 {
		t.Fatalf("expected one mapping after overwrite, got %d", len(s.Mappings))
	}
}

func TestRemoveMappingClearsLookup(t *testing.T) {
	s := NewTopicMappingStore(t.TempDir())
	s.SetMapping("chat1", "thread1", "researcher")

	if err := s.RemoveMapping("chat1", "thread1"); err != nil {
		t.Fatalf("RemoveMapping: %v", err)
	}
	if got := s.LookupSpecialist("chat1", "thread1"); got != "" {
		t.Fatalf("expected mapping removed, got %q", got)
	}
}

func TestRemoveMappingMissingIsNotAnError(t *testing.T) {
	s := NewTopicMappingStore(t.TempDir())
	if err := s.RemoveMapping("chat1", "thread1"); err != nil {
		t.Fatalf("expected no error removing a nonexistent mapping, got %v", err)
	}
}

func TestTopicMappingStorePersistsAcrossRestart(t *testing.T) {
	workspace := t.TempDir()
	s := NewTopicMappingStore(workspace)
	if err := s.SetMapping("chat1", "thread1", "researcher"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}

	reloaded := NewTopicMappingStore(workspace)
	if got := reloaded.LookupSpecialist("chat1", "thread1"); got != "researcher" {
		t.Fatalf("expected persisted mapping after restart, got %q", got)
	}
}

func TestDistinctThreadsInSameChatAreIndependentMappings(t *testing.T) {
	s := NewTopicMappingStore(t.TempDir())
	s.SetMapping("chat1", "thread1", "researcher")
	s.SetMapping("chat1", "thread2", "historian")

	if got := s.LookupSpecialist("chat1", "thread1"); got != "researcher" {
		t.Fatalf("thread1 lookup = %q, want researcher", got)
	}
	if got := s.LookupSpecialist("chat1", "thread2"); got != "historian" {
		t.Fatalf("thread2 lookup = %q, want historian", got)
	}
}
