package rept

import "testing"

func TestSimulationManager_CreateAndGet(t *testing.T) {
	sm := NewSimulationManager()

	engine, err := sm.CreateSimulation("alpha", testConfig(), testRuntime())
	if err != nil {
		t.Fatalf("CreateSimulation failed: %v", err)
	}
	if engine == nil {
		t.Fatal("Expected an engine")
	}

	got, exists := sm.GetSimulation("alpha")
	if !exists || got != engine {
		t.Error("GetSimulation did not return the created engine")
	}
}

func TestSimulationManager_DuplicateID(t *testing.T) {
	sm := NewSimulationManager()
	if _, err := sm.CreateSimulation("alpha", testConfig(), testRuntime()); err != nil {
		t.Fatalf("CreateSimulation failed: %v", err)
	}
	if _, err := sm.CreateSimulation("alpha", testConfig(), testRuntime()); err == nil {
		t.Error("Expected error for duplicate simulation ID")
	}
}

func TestSimulationManager_InvalidConfig(t *testing.T) {
	sm := NewSimulationManager()
	cfg := testConfig()
	cfg.ChainLength = 0
	if _, err := sm.CreateSimulation("alpha", cfg, testRuntime()); err == nil {
		t.Error("Expected error for invalid config")
	}
	if _, exists := sm.GetSimulation("alpha"); exists {
		t.Error("Failed creation must not register an engine")
	}
}

func TestSimulationManager_Delete(t *testing.T) {
	sm := NewSimulationManager()
	sm.CreateSimulation("alpha", testConfig(), testRuntime())

	if err := sm.DeleteSimulation("alpha"); err != nil {
		t.Fatalf("DeleteSimulation failed: %v", err)
	}
	if _, exists := sm.GetSimulation("alpha"); exists {
		t.Error("Engine still registered after delete")
	}
	if err := sm.DeleteSimulation("alpha"); err == nil {
		t.Error("Expected error deleting a missing simulation")
	}
}

func TestSimulationManager_List(t *testing.T) {
	sm := NewSimulationManager()
	sm.CreateSimulation("alpha", testConfig(), testRuntime())
	sm.CreateSimulation("beta", testConfig(), testRuntime())

	ids := sm.ListSimulations()
	if len(ids) != 2 {
		t.Fatalf("Expected 2 simulations, got %d", len(ids))
	}
	seen := map[SimulationID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["alpha"] || !seen["beta"] {
		t.Errorf("Unexpected ID list: %v", ids)
	}
}
