package snapshot

import (
	"context"
	"time"
)

// Job wraps Service.CreateAndUpload so it can be registered with
// internal/scheduler (grounded on the teacher's HourlyBackupJob/
// DailyBackupJob wrappers).
type Job struct {
	svc *Service
}

// NewJob returns a scheduler.Job that runs one snapshot per invocation.
func NewJob(svc *Service) *Job {
	return &Job{svc: svc}
}

func (j *Job) Run() error {
	return j.svc.CreateAndUpload(context.Background())
}

func (j *Job) Name() string {
	return "snapshot_upload"
}

// RotationJob wraps Service.RotateOld so retention sweeps can run on
// their own, looser cron schedule.
type RotationJob struct {
	svc       *Service
	retention time.Duration
	minKeep   int
}

// NewRotationJob returns a scheduler.Job that deletes archives older
// than retention, always keeping at least minKeep.
func NewRotationJob(svc *Service, retention time.Duration, minKeep int) *RotationJob {
	return &RotationJob{svc: svc, retention: retention, minKeep: minKeep}
}

func (j *RotationJob) Run() error {
	return j.svc.RotateOld(context.Background(), j.retention, j.minKeep)
}

func (j *RotationJob) Name() string {
	return "snapshot_rotation"
}
