package usecase

import (
    "testing"
    "time"

    "OppScan/internal/domain/models"
)

func TestBudgetFloorApplies(t *testing.T) {
    b := ComputeBudget(&models.ScanHandle{PollingIntervalSeconds: 3, EstimatedCompletionSeconds: 60})
    if b.PollInterval != 3*time.Second {
        t.Fatalf("poll interval = %v", b.PollInterval)
    }
    // 60s * 1.5 = 90s < 120s floor
    if b.MaxWait != 120*time.Second {
        t.Fatalf("max wait = %v", b.MaxWait)
    }
    if b.MaxAttempts != 40 {
        t.Fatalf("attempts = %d", b.MaxAttempts)
    }
}

func TestBudgetScalesForLongJobs(t *testing.T) {
    b := ComputeBudget(&models.ScanHandle{PollingIntervalSeconds: 2, EstimatedCompletionSeconds: 600})
    if b.MaxWait != 900*time.Second {
        t.Fatalf("max wait = %v", b.MaxWait)
    }
    if b.MaxAttempts != 450 {
        t.Fatalf("attempts = %d", b.MaxAttempts)
    }
}

func TestBudgetDefaultsWhenAbsent(t *testing.T) {
    b := ComputeBudget(&models.ScanHandle{})
    if b.PollInterval != 3*time.Second {
        t.Fatalf("default interval = %v", b.PollInterval)
    }
    // 120s estimate * 1.5 = 180s
    if b.MaxWait != 180*time.Second {
        t.Fatalf("default max wait = %v", b.MaxWait)
    }
    if b.MaxAttempts != 60 {
        t.Fatalf("default attempts = %d", b.MaxAttempts)
    }
}

func TestBudgetSubSecondIntervalClamped(t *testing.T) {
    b := ComputeBudget(&models.ScanHandle{PollingIntervalSeconds: 0.1, EstimatedCompletionSeconds: 60})
    // attempts divide by the 1s floor, not the raw 100ms interval
    if b.MaxAttempts != 120 {
        t.Fatalf("attempts = %d", b.MaxAttempts)
    }
}
